package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/internal/adapters/config"
	errnoop "soilsense/internal/adapters/errors/noop"
	"soilsense/internal/adapters/errors/sentry"
	"soilsense/internal/domain/soil"
	"soilsense/internal/ml/bundle"
	chbatch "soilsense/pkg/clickhouse"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

func TestProvideBundleStore(t *testing.T) {
	store, err := provideBundleStore(config.ModelConfig{Store: "file", ArtifactDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &bundle.FileStore{}, store)

	_, err = provideBundleStore(config.ModelConfig{Store: "redis"}, nil)
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "MODEL_STORE", verr.Field)

	_, err = provideBundleStore(config.ModelConfig{Store: "s3"}, nil)
	require.Error(t, err)
}

func TestProvideErrorTracker(t *testing.T) {
	log := logger.NewNop()

	cfg := &config.Config{}
	cfg.App.Version = "1.2.3"
	assert.IsType(t, &errnoop.Tracker{}, provideErrorTracker(cfg, log))

	cfg.ErrorTracking = config.ErrorTrackingConfig{Enabled: true, SentryDSN: "https://public@example.com/1", Environment: "test"}
	assert.IsType(t, &sentry.Tracker{}, provideErrorTracker(cfg, log))

	cfg.ErrorTracking.SentryDSN = "not a dsn"
	assert.IsType(t, &errnoop.Tracker{}, provideErrorTracker(cfg, log))
}

func TestPredictionSinks(t *testing.T) {
	c := NewContainer()
	defer c.Cancel()
	assert.Empty(t, c.predictionSinks())

	var flushed []soil.PredictionRecord
	c.Adapters.PredictionWriter = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[soil.PredictionRecord]{
		FlushFunc: func(_ context.Context, batch []soil.PredictionRecord) error {
			flushed = append(flushed, batch...)
			return nil
		},
		MaxBatchSize: 1,
	})

	sinks := c.predictionSinks()
	require.Len(t, sinks, 1)
	require.NoError(t, sinks[0].Add(context.Background(), soil.PredictionRecord{ModelVersion: "v1"}))
	require.Len(t, flushed, 1)
	assert.Equal(t, "v1", flushed[0].ModelVersion)
}

func TestLifecycle_CloseDatabasesWithoutBackends(t *testing.T) {
	NewLifecycle().closeDatabases(nil, nil, nil, logger.NewNop())
}
