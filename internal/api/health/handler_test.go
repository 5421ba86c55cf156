package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/internal/ml/bundle"
	"soilsense/internal/testsupport"
	"soilsense/internal/workers"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

type staticModel struct {
	b *bundle.Bundle
}

func (m staticModel) Current() *bundle.Bundle { return m.b }

type staticWorkers map[string]workers.WorkerHealth

func (w staticWorkers) Health() map[string]workers.WorkerHealth { return w }

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return status
}

func TestHandleReadiness(t *testing.T) {
	b := testsupport.NewTwoClusterBundle(t)

	tests := []struct {
		name  string
		model *bundle.Bundle
		check Check
		want  int
	}{
		{"model and backends", b, ok, http.StatusOK},
		{"no model", nil, ok, http.StatusServiceUnavailable},
		{"backend down", b, failing, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.NewNop(), staticModel{tt.model}, "soilsense", "test", WithCheck("redis", tt.check))

			rec := httptest.NewRecorder()
			h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decode(t, rec).Checks, "redis")
		})
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	b := testsupport.NewTwoClusterBundle(t)
	h := New(logger.NewNop(), staticModel{b}, "soilsense", "test",
		WithCheck("postgres", ok),
		WithCheck("clickhouse", failing),
		WithCheck("kafka", nil),
		WithWorkers(staticWorkers{"bundle_reload": {RunCount: 3, LastRun: time.Now()}}),
	)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode(t, rec)
	assert.Equal(t, statusDegraded, status.Status)
	assert.Equal(t, statusHealthy, status.Checks["postgres"].Status)
	assert.Equal(t, "connection refused", status.Checks["clickhouse"].Error)
	assert.NotContains(t, status.Checks, "kafka")
	require.NotNil(t, status.Model)
	assert.Equal(t, b.Version, status.Model.Version)
	assert.Equal(t, 2, status.Model.K)
	assert.Equal(t, int64(3), status.Workers["bundle_reload"].RunCount)
}

func TestHandleLiveness(t *testing.T) {
	h := New(logger.NewNop(), staticModel{}, "soilsense", "test")

	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
