package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"soilsense/internal/domain/soil"
	"soilsense/internal/metrics"
	"soilsense/pkg/errors"
)

// Compile-time check
var _ soil.TrainingRunRepository = (*TrainingRunRepository)(nil)

// TrainingRunRepository stores run summaries and original-scale centers.
// Centers live in a pgvector column so they can be queried by distance.
type TrainingRunRepository struct {
	db DBTX
}

// NewTrainingRunRepository creates a new training run repository.
// When db is a *sqlx.DB each Store runs in its own transaction; a *sqlx.Tx is used as is.
func NewTrainingRunRepository(db DBTX) *TrainingRunRepository {
	return &TrainingRunRepository{db: db}
}

type centerRow struct {
	RunID     uuid.UUID       `db:"run_id"`
	ClusterID int             `db:"cluster_id"`
	Size      int             `db:"size"`
	Center    pgvector.Vector `db:"center"`
}

// Store writes a run and its centers in one transaction
func (r *TrainingRunRepository) Store(ctx context.Context, run *soil.TrainingRun, centers []soil.ClusterCenter) error {
	start := time.Now()
	err := r.store(ctx, run, centers)
	metrics.RecordDBQuery("postgres", "store_training_run", time.Since(start), err)
	return err
}

func (r *TrainingRunRepository) store(ctx context.Context, run *soil.TrainingRun, centers []soil.ClusterCenter) error {
	db, ok := r.db.(*sqlx.DB)
	if !ok {
		return insertRun(ctx, r.db, run, centers)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(ctx, tx, run, centers); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit training run")
}

func insertRun(ctx context.Context, tx DBTX, run *soil.TrainingRun, centers []soil.ClusterCenter) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO training_runs (
			id, selected_k, silhouette, davies_bouldin, inertia, sample_count, seed, created_at
		) VALUES (
			:id, :selected_k, :silhouette, :davies_bouldin, :inertia, :sample_count, :seed, :created_at
		)`, run)
	if err != nil {
		return errors.Wrap(err, "failed to insert training run")
	}

	for _, c := range centers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_centers (run_id, cluster_id, size, center)
			VALUES ($1, $2, $3, $4)`,
			run.ID, c.ClusterID, c.Size, toVector(c.Center),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert center %d", c.ClusterID)
		}
	}

	return nil
}

// GetLatest returns the most recent run
func (r *TrainingRunRepository) GetLatest(ctx context.Context) (*soil.TrainingRun, error) {
	var run soil.TrainingRun

	err := r.db.GetContext(ctx, &run, `
		SELECT id, selected_k, silhouette, davies_bouldin, inertia, sample_count, seed, created_at
		FROM training_runs
		ORDER BY created_at DESC
		LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get latest training run")
	}

	return &run, nil
}

// GetCenters returns the centers of one run ordered by cluster id
func (r *TrainingRunRepository) GetCenters(ctx context.Context, runID string) ([]soil.ClusterCenter, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, errors.NewValidationError("run_id", "must be a uuid", runID)
	}

	var rows []centerRow
	err = r.db.SelectContext(ctx, &rows, `
		SELECT run_id, cluster_id, size, center
		FROM cluster_centers
		WHERE run_id = $1
		ORDER BY cluster_id`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get cluster centers")
	}

	out := make([]soil.ClusterCenter, 0, len(rows))
	for _, row := range rows {
		center, err := fromVector(row.Center)
		if err != nil {
			return nil, errors.Wrapf(err, "center %d", row.ClusterID)
		}
		out = append(out, soil.ClusterCenter{
			RunID:     row.RunID,
			ClusterID: row.ClusterID,
			Size:      row.Size,
			Center:    center,
		})
	}
	return out, nil
}

func toVector(fv soil.FeatureVector) pgvector.Vector {
	values := fv.ToSlice()
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return pgvector.NewVector(out)
}

func fromVector(v pgvector.Vector) (soil.FeatureVector, error) {
	values := v.Slice()
	out := make([]float64, len(values))
	for i, x := range values {
		out[i] = float64(x)
	}
	return soil.FromSlice(out)
}
