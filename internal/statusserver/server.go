// Package statusserver exposes a small read-only HTTP surface for a running session:
// liveness, Prometheus metrics and the published progress snapshot.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"interviewsim/pkg/logx"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/version"
)

// SnapshotSource yields the latest progress snapshot, nil before the first publish.
type SnapshotSource interface {
	Snapshot() *orchestrator.ProgressSnapshot
}

// Server serves the status endpoints.
type Server struct {
	source   SnapshotSource
	gatherer prometheus.Gatherer
	logger   *logx.Logger
	addr     string
}

// New creates a server. A nil gatherer serves the default registry.
func New(source SnapshotSource, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{source: source, gatherer: gatherer, logger: logx.NewLogger("status")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Get("/progress/activity", s.handleActivity)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start binds addr and serves until ctx is cancelled. Bind errors are returned; serve
// errors are logged.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("status server listening on http://%s", s.addr)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // parent is cancelled
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("status server shutdown failed: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "session has not started", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleActivity(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "session has not started", http.StatusServiceUnavailable)
		return
	}
	activity := snap.Activity
	if activity == nil {
		activity = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (s *Server) snapshot() *orchestrator.ProgressSnapshot {
	if s.source == nil {
		return nil
	}
	return s.source.Snapshot()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}
