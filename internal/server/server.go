// Package server hosts an HTTP handler with health probes, a Prometheus
// endpoint, and graceful shutdown. "eventctl stub-server" runs on it.
package server

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

	"github.com/felixgeelhaar/eventctl/internal/health"
	"github.com/felixgeelhaar/eventctl/internal/metrics"
)

// Probe and metrics routes.
const (
	LivePath    = "/health/live"
	ReadyPath   = "/health/ready"
	MetricsPath = "/metrics"
)

// Config holds server timeouts. Zero values take defaults.
type Config struct {
	// ShutdownTimeout bounds connection draining. Defaults to 5 seconds.
	ShutdownTimeout time.Duration
	// ReadHeaderTimeout defaults to 10 seconds.
	ReadHeaderTimeout time.Duration
	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration
}

// Server provides HTTP server functionality with health endpoints.
type Server struct {
	httpServer      *http.Server
	probeManager    *health.ProbeManager
	shutdownTimeout time.Duration
}

// NewServer wraps app. Probe routes and, when gatherer is non-nil, the
// metrics route take precedence; everything else reaches app.
func NewServer(app http.Handler, pm *health.ProbeManager, gatherer prometheus.Gatherer, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		probeManager:    pm,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(LivePath, s.handleLiveness)
	r.Get(ReadyPath, s.handleReadiness)
	if gatherer != nil {
		r.Handle(MetricsPath, metrics.HandlerFor(gatherer))
	}
	r.Mount("/", app)

	s.httpServer = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the composed router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		if err := s.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Shutdown fails readiness, stops keep-alives, and drains connections for
// at most the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.probeManager.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusUnhealthy {
		w.WriteHeader(unhealthyStatus)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(result)
}

// handleLiveness always answers 200, even during shutdown.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckLiveness(r.Context()), http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}
