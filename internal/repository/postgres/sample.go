package postgres

import (
	"context"
	"time"

	"soilsense/internal/domain/soil"
	"soilsense/internal/metrics"
	"soilsense/pkg/errors"
)

// Compile-time check
var _ soil.SampleRepository = (*SampleRepository)(nil)

// SampleRepository implements soil.SampleRepository over the soil_samples table
type SampleRepository struct {
	db DBTX
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(db DBTX) *SampleRepository {
	return &SampleRepository{db: db}
}

// List returns every sample in insertion order
func (r *SampleRepository) List(ctx context.Context) ([]soil.Sample, error) {
	start := time.Now()
	var samples []soil.Sample

	query := `
		SELECT id, n, p, k, temperature, humidity, ph, rainfall, collected_at
		FROM soil_samples
		ORDER BY id`

	err := r.db.SelectContext(ctx, &samples, query)
	metrics.RecordDBQuery("postgres", "list_samples", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list samples")
	}

	return samples, nil
}

// Count returns the number of samples
func (r *SampleRepository) Count(ctx context.Context) (int, error) {
	start := time.Now()
	var count int

	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM soil_samples`)
	metrics.RecordDBQuery("postgres", "count_samples", time.Since(start), err)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count samples")
	}

	return count, nil
}

// Insert adds samples in one statement
func (r *SampleRepository) Insert(ctx context.Context, samples []soil.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	for i := range samples {
		if samples[i].CollectedAt.IsZero() {
			samples[i].CollectedAt = time.Now().UTC()
		}
	}

	query := `
		INSERT INTO soil_samples (n, p, k, temperature, humidity, ph, rainfall, collected_at)
		VALUES (:n, :p, :k, :temperature, :humidity, :ph, :rainfall, :collected_at)`

	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, query, samples)
	metrics.RecordDBQuery("postgres", "insert_samples", time.Since(start), err)
	if err != nil {
		return errors.Wrapf(err, "failed to insert %d samples", len(samples))
	}

	return nil
}
