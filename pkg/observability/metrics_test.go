package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/seed"
)

// counter returns the value of the counter series name{label=value}.
func counter(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
			if label == "" {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	_, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a")),
	}, loom.WithHooks(m.Hooks()))
	require.NoError(t, err)

	_, err = loom.From([]seed.Field{seed.F("n", 1)}, loom.WithHooks(m.Hooks()))
	require.Error(t, err)

	_, err = loom.From([]seed.Field{
		seed.F("a", seed.Text("x")),
		seed.F("a", seed.Text("y")),
	}, loom.WithHooks(m.Hooks()))
	require.Error(t, err)

	const name = "loom_document_constructions_total"
	assert.Equal(t, 1.0, counter(t, reg, name, "result", "ok"))
	assert.Equal(t, 1.0, counter(t, reg, name, "result", "shape"))
	assert.Equal(t, 1.0, counter(t, reg, name, "result", "precondition"))
}

func TestMetrics_ObserveUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	d, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a")),
	}, loom.WithOrigin("seed"), loom.WithObserver(m.ObserveUpdate))
	require.NoError(t, err)

	require.NoError(t, d.Transact(func() error {
		tags, err := d.GetArray("tags")
		if err != nil {
			return err
		}
		return tags.Push("b")
	}))

	assert.Equal(t, 2.0, counter(t, reg, "loom_runtime_commits_total", "origin", "seed"))
	assert.Equal(t, 3.0, counter(t, reg, "loom_runtime_changed_roots_total", "", ""))
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	m.RecordHTTPRequest("GET", "/docs", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/docs", 200, 7*time.Millisecond)
	m.RecordHTTPRequest("POST", "/docs", 422, time.Millisecond)

	assert.Equal(t, 2.0, counter(t, reg, "loom_http_requests_total", "status", "200"))
	assert.Equal(t, 1.0, counter(t, reg, "loom_http_requests_total", "status", "422"))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.New(reg)
	assert.Panics(t, func() { observability.New(reg) })
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "ok", observability.Classify(nil))
	assert.Equal(t, "shape", observability.Classify(domain.ErrKindMismatch))
	assert.Equal(t, "precondition", observability.Classify(&domain.PreconditionError{Op: "from", Err: domain.ErrDuplicateName}))
	assert.Equal(t, "error", observability.Classify(errors.New("io")))
}
