// Package server exposes the assistant over HTTP.
//
// The main surface is POST /assistant, which accepts a JSON body of the form
// {"query": "..."} and responds with {"result": "..."}. Operational routes
// (/healthz, /readyz, /metrics) are mounted alongside it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pcancela/agentic-tasks-template/internal/health"
	"github.com/pcancela/agentic-tasks-template/internal/observe"
	"github.com/pcancela/agentic-tasks-template/internal/task"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// QueryRunner processes one natural-language query end to end. Implemented by
// [orchestrator.Orchestrator].
type QueryRunner interface {
	Run(ctx context.Context, query string) (*task.Result, error)
}

// Config holds the dependencies and settings for a [Server].
type Config struct {
	// Port is the TCP port to listen on. Must be non-zero.
	Port int

	// Runner processes assistant queries. Must not be nil.
	Runner QueryRunner

	// Health serves the liveness and readiness routes. Nil means a handler
	// with no readiness checks.
	Health *health.Handler

	// Metrics instruments the HTTP middleware. Nil means
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server is the assistant's HTTP front end.
type Server struct {
	port    int
	runner  QueryRunner
	handler http.Handler
}

// queryRequest is the POST /assistant request body.
type queryRequest struct {
	Query string `json:"query"`
}

// queryResponse is the POST /assistant success body.
type queryResponse struct {
	Result string `json:"result"`
}

// errorResponse is the body for all error statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// New creates a Server. The returned server is inert until [Server.Run] is
// called; [Server.Handler] exposes the routes for testing.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("server: invalid port %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, errors.New("server: Runner must not be nil")
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}

	s := &Server{port: cfg.Port, runner: cfg.Runner}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /assistant", s.handleAssistant)
	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	s.handler = observe.Middleware(m)(mux)
	return s, nil
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully. It
// returns nil on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

// handleAssistant serves POST /assistant.
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	var req queryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query must not be empty"})
		return
	}

	log.Info("processing query", slog.Int("query_length", len(req.Query)))

	result, err := s.runner.Run(ctx, req.Query)
	if err != nil {
		log.Error("query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Result: result.Raw})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", slog.String("error", err.Error()))
	}
}
