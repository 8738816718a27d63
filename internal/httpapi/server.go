// Package httpapi exposes the orchestrator to HTTP callers: submit a run,
// poll or stream its progress, and read persisted OneSheets.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
	"github.com/dusk-indust/onesheet/internal/store"
)

// maxRequestBytes caps the size of a submitted GenerationRequest.
const maxRequestBytes = 1 << 20

// Runner starts and reports on generation runs. *orchestrator.Orchestrator
// satisfies it.
type Runner interface {
	Start(ctx context.Context, req orchestrator.GenerationRequest) (string, error)
	Snapshot(runID string) (orchestrator.RunStatus, error)
}

// Reader reads persisted OneSheets. store.Store satisfies it.
type Reader interface {
	Load(ctx context.Context, targetID string) (creative.AggregateResult, error)
	HooksForConcept(ctx context.Context, targetID, conceptID string) ([]store.ConceptHook, error)
}

// Server is the caller-facing HTTP API.
type Server struct {
	runner Runner
	reader Reader
	logger *slog.Logger
	poll   time.Duration

	// runCtx bounds runs submitted through the API.
	runCtx context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPollInterval sets how often event streams check for progress.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.poll = d }
}

// New returns a Server backed by runner and reader.
func New(runner Runner, reader Reader, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		reader: reader,
		logger: slog.Default(),
		poll:   250 * time.Millisecond,
		runCtx: context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the API routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", s.handleStartRun)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /v1/onesheets/{targetId}", s.handleGetOneSheet)
	mux.HandleFunc("GET /v1/onesheets/{targetId}/concepts/{conceptId}/hooks", s.handleConceptHooks)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logRequests(mux)
}

// Serve accepts connections on ln until ctx is canceled. Runs started
// through the API are canceled with ctx, after their current stage.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.runCtx = ctx
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	s.logger.Info("httpapi: listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.GenerationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	runID, err := s.runner.Start(s.runCtx, req)
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, orchestrator.ErrPreconditionFailed):
		writeError(w, http.StatusUnprocessableEntity, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.Header().Set("Location", "/v1/runs/"+runID)
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st, err := s.runner.Snapshot(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleRunEvents streams a "snapshot" event whenever the run's status
// changes and a final "done" event once it has finished.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.runner.Snapshot(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sw := newSSEWriter(w)
	sw.init()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var last []byte
	for {
		cur, err := json.Marshal(st)
		if err != nil {
			s.logger.Error("httpapi: encode snapshot", "run", id, "err", err)
			return
		}
		if !bytes.Equal(cur, last) {
			if err := sw.event("snapshot", st); err != nil {
				return
			}
			last = cur
		}
		if st.Finished {
			_ = sw.event("done", st)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		if st, err = s.runner.Snapshot(id); err != nil {
			_ = sw.event("error", map[string]string{"error": err.Error()})
			return
		}
	}
}

func (s *Server) handleGetOneSheet(w http.ResponseWriter, r *http.Request) {
	agg, err := s.reader.Load(r.Context(), r.PathValue("targetId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleConceptHooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.reader.HooksForConcept(r.Context(), r.PathValue("targetId"), r.PathValue("conceptId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hooks": hooks})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownRun), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "httpapi: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
