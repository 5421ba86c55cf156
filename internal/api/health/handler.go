package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"soilsense/internal/ml/bundle"
	"soilsense/internal/workers"
	"soilsense/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Check pings one backend
type Check func(ctx context.Context) error

// PostgresCheck pings the training database
func PostgresCheck(db *sqlx.DB) Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

// ClickHouseCheck pings the prediction log store
func ClickHouseCheck(conn driver.Conn) Check {
	return func(ctx context.Context) error { return conn.Ping(ctx) }
}

// RedisCheck pings the bundle store / lock server
func RedisCheck(client *redis.Client) Check {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// ModelSource exposes the live bundle
type ModelSource interface {
	Current() *bundle.Bundle
}

// WorkerSource exposes background worker health
type WorkerSource interface {
	Health() map[string]workers.WorkerHealth
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Check
	model       ModelSource
	workers     WorkerSource
	startTime   time.Time
	serviceName string
	version     string
}

// Option configures a Handler
type Option func(*Handler)

// WithCheck registers a backend check under name
func WithCheck(name string, check Check) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

// WithWorkers includes scheduler health in /health
func WithWorkers(w WorkerSource) Option {
	return func(h *Handler) { h.workers = w }
}

// New creates a new health check handler. Readiness requires a live model.
func New(log *logger.Logger, model ModelSource, serviceName, version string, opts ...Option) *Handler {
	h := &Handler{
		log:         log.With("component", "health"),
		checks:      make(map[string]Check),
		model:       model,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                          `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                          `json:"service"`
	Version   string                          `json:"version"`
	Uptime    string                          `json:"uptime"`
	Timestamp string                          `json:"timestamp"`
	Model     *ModelStatus                    `json:"model"`
	Checks    map[string]ComponentHealth      `json:"checks"`
	Workers   map[string]workers.WorkerHealth `json:"workers,omitempty"`
}

// ModelStatus describes the live bundle
type ModelStatus struct {
	Version   string    `json:"version"`
	K         int       `json:"k"`
	CreatedAt time.Time `json:"created_at"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness returns 200 only with a live model and every backend reachable
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.status(ctx)
	ready := status.Model != nil
	for _, c := range status.Checks {
		if c.Status != statusHealthy {
			ready = false
		}
	}

	code := http.StatusOK
	if !ready {
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "model_loaded", status.Model != nil, "checks", status.Checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth returns detailed health status including worker runs.
// Degraded backends still answer 200; a missing model is unhealthy.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.status(ctx)
	if h.workers != nil {
		status.Workers = h.workers.Health()
	}

	code := http.StatusOK
	if status.Model == nil {
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) status(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    statusHealthy,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentHealth, len(h.checks)),
	}

	if b := h.model.Current(); b != nil {
		status.Model = &ModelStatus{Version: b.Version, K: b.K(), CreatedAt: b.CreatedAt}
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := h.run(ctx, name, h.checks[name])
		status.Checks[name] = c
		if c.Status != statusHealthy {
			status.Status = statusDegraded
		}
	}
	return status
}

func (h *Handler) run(ctx context.Context, name string, check Check) ComponentHealth {
	start := time.Now()
	err := check(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "backend", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       statusUnhealthy,
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       statusHealthy,
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
