package clickhouse

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"soilsense/internal/domain/soil"
	"soilsense/internal/metrics"
	"soilsense/pkg/errors"
)

// PredictionsTable is the default prediction log table
const PredictionsTable = "predictions"

//go:embed schema.sql
var predictionsSchema string

// Compile-time check
var _ soil.PredictionRepository = (*PredictionRepository)(nil)

// PredictionRepository implements soil.PredictionRepository using ClickHouse
type PredictionRepository struct {
	conn  driver.Conn
	table string
}

// NewPredictionRepository creates a repository over the predictions table
func NewPredictionRepository(conn driver.Conn) *PredictionRepository {
	return NewPredictionRepositoryForTable(conn, PredictionsTable)
}

// NewPredictionRepositoryForTable creates a repository over a custom table name
func NewPredictionRepositoryForTable(conn driver.Conn, table string) *PredictionRepository {
	return &PredictionRepository{conn: conn, table: table}
}

// CreatePredictionsTableSQL returns the CREATE statement template with one %s placeholder for the table name
func CreatePredictionsTableSQL() string {
	return predictionsSchema
}

// Migrate creates the predictions table if it does not exist
func (r *PredictionRepository) Migrate(ctx context.Context) error {
	if err := r.conn.Exec(ctx, fmt.Sprintf(predictionsSchema, r.table)); err != nil {
		return errors.Wrapf(err, "create table %s", r.table)
	}
	return nil
}

// Store inserts prediction records in one batch
func (r *PredictionRepository) Store(ctx context.Context, records []soil.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	err := r.store(ctx, records)
	metrics.RecordDBQuery("clickhouse", "store_predictions", time.Since(start), err)
	return err
}

func (r *PredictionRepository) store(ctx context.Context, records []soil.PredictionRecord) error {
	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, timestamp, model_version, cluster_id, distance_to_center,
			fertility_score, fertility_category, extrapolated,
			n, p, k, temperature, humidity, ph, rainfall
		)
	`, r.table))
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, rec := range records {
		err := batch.Append(
			rec.ID, rec.Timestamp, rec.ModelVersion, rec.ClusterID, rec.DistanceToCenter,
			rec.FertilityScore, rec.FertilityCategory, rec.Extrapolated,
			rec.N, rec.P, rec.K, rec.Temperature, rec.Humidity, rec.PH, rec.Rainfall,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append prediction")
		}
	}

	return errors.Wrapf(batch.Send(), "failed to send %d predictions", len(records))
}

// CountByCluster returns prediction counts per cluster for one model version since a point in time
func (r *PredictionRepository) CountByCluster(ctx context.Context, modelVersion string, since time.Time) ([]soil.ClusterCount, error) {
	var counts []soil.ClusterCount

	query := fmt.Sprintf(`
		SELECT cluster_id, count() AS count
		FROM %s
		WHERE model_version = $1 AND timestamp >= $2
		GROUP BY cluster_id
		ORDER BY cluster_id`, r.table)

	start := time.Now()
	err := r.conn.Select(ctx, &counts, query, modelVersion, since)
	metrics.RecordDBQuery("clickhouse", "count_by_cluster", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count predictions by cluster")
	}

	return counts, nil
}
