package soil

import (
	"time"

	"github.com/google/uuid"
)

// Sample is one historical, unlabeled soil reading used for training
type Sample struct {
	ID int64 `db:"id"`
	FeatureVector
	CollectedAt time.Time `db:"collected_at"`
}

// PredictionRecord is one served prediction, kept for analytics
type PredictionRecord struct {
	ID                uuid.UUID `ch:"id" json:"id"`
	Timestamp         time.Time `ch:"timestamp" json:"timestamp"`
	ModelVersion      string    `ch:"model_version" json:"model_version"`
	ClusterID         int32     `ch:"cluster_id" json:"cluster_id"`
	DistanceToCenter  float64   `ch:"distance_to_center" json:"distance_to_center"`
	FertilityScore    float64   `ch:"fertility_score" json:"fertility_score"`
	FertilityCategory string    `ch:"fertility_category" json:"fertility_category"`
	Extrapolated      bool      `ch:"extrapolated" json:"extrapolated"`
	FeatureVector
}

// ClusterCount is the number of predictions assigned to one cluster
type ClusterCount struct {
	ClusterID int32  `ch:"cluster_id" json:"cluster_id"`
	Count     uint64 `ch:"count" json:"count"`
}

// TrainingRun summarizes one completed training run
type TrainingRun struct {
	ID            uuid.UUID `db:"id"`
	SelectedK     int       `db:"selected_k"`
	Silhouette    float64   `db:"silhouette"`
	DaviesBouldin float64   `db:"davies_bouldin"`
	Inertia       float64   `db:"inertia"`
	SampleCount   int       `db:"sample_count"`
	Seed          int64     `db:"seed"`
	CreatedAt     time.Time `db:"created_at"`
}

// ClusterCenter is one cluster center in original feature scale
type ClusterCenter struct {
	RunID     uuid.UUID
	ClusterID int
	Size      int
	Center    FeatureVector
}
