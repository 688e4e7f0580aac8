package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
	"github.com/aretw0/loom/pkg/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Server exposes a session.Manager over HTTP.
type Server struct {
	Manager *session.Manager
	Streams *StreamManager

	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics records request metrics into m and serves g on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request logger. Defaults to JSON on stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the manager.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Manager: mgr,
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	s.Streams.logger = s.logger
	return s.Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/docs", func(r chi.Router) {
		r.Get("/", s.ListDocuments)
		r.Post("/", s.CreateDocument)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetDocument)
			r.Delete("/", s.DeleteDocument)
			r.Post("/mutations", s.ApplyMutations)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "loom-http",
		"version": strings.TrimSpace(loom.Version),
	})
}

// ListDocuments handles the GET /docs request.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.writeError(w, "ListDocuments", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// CreateRequest is the body of POST /docs: a seed document in envelope form
// with an optional ID and record.
type CreateRequest struct {
	ID      string          `json:"id,omitempty"`
	Schema  string          `json:"schema,omitempty"`
	Entries json.RawMessage `json:"entries"`
}

// CreateDocument handles the POST /docs request.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateDocument: Invalid request body", "err", err)
		return
	}

	raw, err := json.Marshal(map[string]json.RawMessage{"entries": body.Entries})
	if err != nil {
		s.writeError(w, "CreateDocument", err)
		return
	}
	entries, err := seed.UnmarshalDocument(raw)
	if err != nil {
		s.writeError(w, "CreateDocument", err)
		return
	}

	opts := []loom.Option{loom.WithSanitizer(), loom.WithOrigin("http")}
	if body.Schema != "" {
		rec, err := schema.ParseRecord(body.Schema)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid schema: %v", err), http.StatusBadRequest)
			return
		}
		opts = append(opts, loom.WithSchema(rec))
	}

	d, err := s.Manager.Create(r.Context(), body.ID, entries, opts...)
	if err != nil {
		s.writeError(w, "CreateDocument", err)
		return
	}
	snap, err := d.Snapshot()
	if err != nil {
		s.writeError(w, "CreateDocument", err)
		return
	}
	if body.ID != "" {
		snap.DocID = body.ID
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

// GetDocument handles the GET /docs/{id} request.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Manager.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetDocument", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteDocument handles the DELETE /docs/{id} request.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, "DeleteDocument", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MutationsRequest is the body of POST /docs/{id}/mutations.
type MutationsRequest struct {
	Mutations []loom.Mutation `json:"mutations"`
}

// ApplyMutations handles the POST /docs/{id}/mutations request. The batch is
// applied atomically and its merge patch is broadcast to event subscribers.
func (s *Server) ApplyMutations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body MutationsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("ApplyMutations: Invalid request body", "err", err)
		return
	}

	var update *ports.Update
	var stop func()
	snap, err := s.Manager.Update(r.Context(), id, func(d *loom.Document) error {
		cancel, err := d.Observe(func(u ports.Update) { update = &u })
		if err != nil {
			return err
		}
		stop = cancel
		return d.Apply(body.Mutations...)
	})
	if stop != nil {
		stop()
	}
	if err != nil {
		s.writeError(w, "ApplyMutations", err)
		return
	}

	if update != nil {
		s.logger.Debug("ApplyMutations: Patch committed", "doc_id", id, "seq", update.Seq, "changed", update.Changed)
		s.Streams.Broadcast(id, Event{Seq: update.Seq, Changed: update.Changed, Patch: update.Patch})
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// SubscribeEvents handles the GET /docs/{id}/events request (SSE).
// The optional "watch" query parameter is a comma separated list of
// top-level names; events touching none of them are skipped.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	var watchList []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, name := range strings.Split(v, ",") {
			watchList = append(watchList, strings.TrimSpace(name))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to document updates", "doc_id", id)
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "doc_id", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !ev.Touches(watchList) {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: patch\ndata: %s\n\n", ev.Seq, ev.Patch)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= 500 {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"class": observability.Classify(err),
	})
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrShapeViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
