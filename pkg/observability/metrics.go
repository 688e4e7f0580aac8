package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// Namespace prefixes every metric name.
const Namespace = "loom"

// Metrics groups the collectors for one registry.
type Metrics struct {
	constructions *prometheus.CounterVec
	duration      prometheus.Histogram
	entries       prometheus.Histogram
	commits       *prometheus.CounterVec
	changedRoots  prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		constructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "document",
				Name:      "constructions_total",
				Help:      "Document construction attempts by result.",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "document",
			Name:      "construction_duration_seconds",
			Help:      "Duration of document construction.",
			Buckets:   prometheus.DefBuckets,
		}),
		entries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "document",
			Name:      "entries",
			Help:      "Top-level entries per construction.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "runtime",
				Name:      "commits_total",
				Help:      "Committed transactions by origin.",
			},
			[]string{"origin"},
		),
		changedRoots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "runtime",
			Name:      "changed_roots_total",
			Help:      "Top-level containers touched by committed transactions.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	reg.MustRegister(m.constructions, m.duration, m.entries, m.commits, m.changedRoots, m.httpRequests, m.httpDuration)
	return m
}

// Hooks returns construction hooks that feed m.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnConstructed: func(_ context.Context, e *domain.ConstructEvent) {
			m.recordConstruction("ok", e)
		},
		OnConstructFailed: func(_ context.Context, e *domain.ConstructEvent) {
			m.recordConstruction(Classify(e.Err), e)
		},
	}
}

func (m *Metrics) recordConstruction(result string, e *domain.ConstructEvent) {
	m.constructions.WithLabelValues(result).Inc()
	m.duration.Observe(e.Duration.Seconds())
	m.entries.Observe(float64(e.Entries))
}

// ObserveUpdate is a ports.Update observer.
func (m *Metrics) ObserveUpdate(u ports.Update) {
	origin := "none"
	if s, ok := u.Origin.(string); ok && s != "" {
		origin = s
	}
	m.commits.WithLabelValues(origin).Inc()
	m.changedRoots.Add(float64(len(u.Changed)))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// Classify names the error family of err for metric labels.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrShapeViolation):
		return "shape"
	case errors.Is(err, domain.ErrPrecondition):
		return "precondition"
	default:
		return "error"
	}
}
