package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"soilsense/internal/api/health"
	"soilsense/internal/metrics"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port           int
	ServiceName    string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds the route table. Only /api routes are rate limited.
func NewRouter(cfg ServerConfig, predictions *Handlers, healthHandler *health.Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	mux.Handle("GET /metrics", metrics.Handler())

	limiter := NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	api := func(route string, h http.HandlerFunc) http.Handler {
		return instrument(route, log, limiter.Middleware(h))
	}
	mux.Handle("POST /api/predict", api("/api/predict", predictions.HandlePredict))
	mux.Handle("GET /api/clusters", api("/api/clusters", predictions.HandleClusters))
	mux.Handle("GET /api/model", api("/api/model", predictions.HandleModel))

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	return mux
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, predictions *Handlers, healthHandler *health.Handler, log *logger.Logger) *Server {
	log = log.With("component", "http")

	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(cfg, predictions, healthHandler, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
