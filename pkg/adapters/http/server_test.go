package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/session"
)

const boardBody = `{
  "id": "board",
  "schema": "{title:text,tags:list<string>,meta:map{done:bool}}",
  "entries": [
    {"name": "title", "seed": {"kind": "text", "text": "hello"}},
    {"name": "tags", "seed": {"kind": "list", "items": [{"kind": "plain", "value": "a"}, {"kind": "plain", "value": "b"}]}},
    {"name": "meta", "seed": {"kind": "map", "fields": [{"key": "done", "seed": {"kind": "plain", "value": false}}]}}
  ]
}`

func newTestServer(t *testing.T, opts ...Option) (http.Handler, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(memory.NewStore())
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewHandler(mgr, opts...), mgr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, "GET", "/info", "")
	info := decode[map[string]string](t, w)
	assert.Equal(t, "loom-http", info["app"])
	assert.NotEmpty(t, info["version"])
}

func TestDocumentLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, "POST", "/docs", boardBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := decode[domain.Snapshot](t, w)
	assert.Equal(t, "board", snap.DocID)
	assert.Equal(t, map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}, snap.Data)

	w = do(t, h, "POST", "/docs", boardBody)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "GET", "/docs", "")
	assert.JSONEq(t, `{"ids":["board"]}`, w.Body.String())

	w = do(t, h, "GET", "/docs/board", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", decode[domain.Snapshot](t, w).Data["title"])

	w = do(t, h, "DELETE", "/docs/board", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/docs/board", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDocument_Rejections(t *testing.T) {
	h, _ := newTestServer(t)

	cases := map[string]struct {
		body   string
		status int
	}{
		"malformed json": {`{`, http.StatusBadRequest},
		"bad schema":     {`{"schema":"{x:textual}","entries":[]}`, http.StatusBadRequest},
		"plain root": {
			`{"entries":[{"name":"n","seed":{"kind":"plain","value":1}}]}`,
			http.StatusUnprocessableEntity,
		},
		"schema mismatch": {
			`{"schema":"{tags:text}","entries":[{"name":"tags","seed":{"kind":"list","items":[]}}]}`,
			http.StatusUnprocessableEntity,
		},
		"duplicate name": {
			`{"entries":[{"name":"a","seed":{"kind":"text","text":"x"}},{"name":"a","seed":{"kind":"text","text":"y"}}]}`,
			http.StatusConflict,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, "POST", "/docs", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestApplyMutations(t *testing.T) {
	h, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/docs", boardBody).Code)

	w := do(t, h, "POST", "/docs/board/mutations", `{"mutations":[
		{"op":"list.push","name":"tags","value":"c"},
		{"op":"map.set","name":"meta","key":"done","value":true}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[domain.Snapshot](t, w)
	assert.Equal(t, []any{"a", "b", "c"}, snap.Data["tags"])
	assert.Equal(t, map[string]any{"done": true}, snap.Data["meta"])

	// Wrong element type: whole batch rejected.
	w = do(t, h, "POST", "/docs/board/mutations", `{"mutations":[
		{"op":"list.push","name":"tags","value":"d"},
		{"op":"list.push","name":"tags","value":42}
	]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "GET", "/docs/board", "")
	assert.Equal(t, []any{"a", "b", "c"}, decode[domain.Snapshot](t, w).Data["tags"])

	w = do(t, h, "POST", "/docs/missing/mutations", `{"mutations":[]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscribeEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/docs", boardBody).Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe with a filter that ignores meta-only changes.
	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/docs/board/events?watch=tags", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	do(t, srv, "POST", "/docs/board/mutations", `{"mutations":[{"op":"map.set","name":"meta","key":"done","value":true}]}`)
	do(t, srv, "POST", "/docs/board/mutations", `{"mutations":[{"op":"list.push","name":"tags","value":"c"}]}`)

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, "event: patch")
	assert.Contains(t, output, `"tags":["a","b","c"]`)
	assert.NotContains(t, output, `"done":true`)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, _ := newTestServer(t, WithMetrics(observability.New(reg), reg))

	do(t, h, "GET", "/health", "")
	do(t, h, "GET", "/docs/nope", "")

	w := do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `loom_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `status="404"`)
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("doc")
	defer cancel()
	assert.Equal(t, 1, sm.Subscribers("doc"))

	for i := 0; i < 20; i++ {
		sm.Broadcast("doc", Event{Seq: uint64(i)})
	}
	assert.Len(t, ch, cap(ch))

	_, cancelOther := sm.Subscribe("other")
	cancelOther()
	assert.Equal(t, 0, sm.Subscribers("other"))
}

func TestEvent_Touches(t *testing.T) {
	ev := Event{Changed: []string{"title", "tags"}}
	assert.True(t, ev.Touches(nil))
	assert.True(t, ev.Touches([]string{"meta", "tags"}))
	assert.False(t, ev.Touches([]string{"meta"}))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(bytes.ErrTooLarge))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(domain.ErrKindMismatch))
	assert.Equal(t, http.StatusConflict, StatusFor(domain.ErrRequiredKey))
}
