package events

import (
	"time"

	"github.com/google/uuid"

	"soilsense/internal/domain/soil"
)

// Event types
const (
	TypeModelTrained = "model.trained"
	TypePrediction   = "prediction.served"
)

// BaseEvent is the envelope shared by every event
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a new base event with defaults
func NewBaseEvent(eventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Version:   "1.0",
	}
}

// ModelTrainedEvent announces a newly published bundle
type ModelTrainedEvent struct {
	BaseEvent
	ModelVersion string  `json:"model_version"`
	K            int     `json:"k"`
	Silhouette   float64 `json:"silhouette"`
	Samples      int     `json:"samples"`
	Store        string  `json:"store"` // file|redis
}

// PredictionEvent carries one served prediction
type PredictionEvent struct {
	BaseEvent
	Prediction soil.PredictionRecord `json:"prediction"`
}
