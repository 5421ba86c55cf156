package soil

import (
	"context"
	"time"
)

// SampleRepository provides the training table
type SampleRepository interface {
	List(ctx context.Context) ([]Sample, error)
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, samples []Sample) error
}

// TrainingRunRepository keeps run summaries and original-scale centers for inspection
type TrainingRunRepository interface {
	Store(ctx context.Context, run *TrainingRun, centers []ClusterCenter) error
	GetLatest(ctx context.Context) (*TrainingRun, error)
	GetCenters(ctx context.Context, runID string) ([]ClusterCenter, error)
}

// PredictionRepository stores served predictions
type PredictionRepository interface {
	Store(ctx context.Context, records []PredictionRecord) error
	CountByCluster(ctx context.Context, modelVersion string, since time.Time) ([]ClusterCount, error)
}
