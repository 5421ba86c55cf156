package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"soilsense/internal/domain/soil"
	"soilsense/internal/metrics"
	"soilsense/internal/ml/selection"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Sink receives every successfully served prediction.
// *clickhouse.BatchWriter[soil.PredictionRecord] satisfies it directly.
type Sink interface {
	Add(ctx context.Context, record soil.PredictionRecord) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, record soil.PredictionRecord) error

// Add calls f
func (f SinkFunc) Add(ctx context.Context, record soil.PredictionRecord) error {
	return f(ctx, record)
}

// Service serves predictions from the registry's live bundle
type Service struct {
	registry *Registry
	policy   Policy
	sinks    []Sink
	tracker  errors.Tracker
	log      *logger.Logger
}

// NewService creates a new prediction service
func NewService(registry *Registry, policy Policy, tracker errors.Tracker, log *logger.Logger, sinks ...Sink) *Service {
	return &Service{
		registry: registry,
		policy:   policy,
		sinks:    sinks,
		tracker:  tracker,
		log:      log.With("component", "prediction_service"),
	}
}

// Predict validates a loosely typed request mapping and assigns it to a cluster
func (s *Service) Predict(ctx context.Context, raw map[string]any) (*Result, error) {
	start := time.Now()

	fv, err := soil.ParseFeatureVector(raw)
	if err != nil {
		metrics.RecordPrediction("invalid_input", 0, "", false, time.Since(start))
		return nil, err
	}

	return s.predict(ctx, fv, start)
}

// PredictVector assigns an already typed feature vector
func (s *Service) PredictVector(ctx context.Context, fv soil.FeatureVector) (*Result, error) {
	start := time.Now()

	if err := fv.Validate(); err != nil {
		metrics.RecordPrediction("invalid_input", 0, "", false, time.Since(start))
		return nil, err
	}

	return s.predict(ctx, fv, start)
}

func (s *Service) predict(ctx context.Context, fv soil.FeatureVector, start time.Time) (*Result, error) {
	// one bundle for the whole call, even if a reload swaps it meanwhile
	b := s.registry.Current()
	if b == nil {
		metrics.RecordPrediction("no_model", 0, "", false, time.Since(start))
		return nil, errors.ErrNoModel
	}

	result, err := Predict(fv, b, s.policy)
	if err != nil {
		metrics.RecordPrediction("error", 0, "", false, time.Since(start))
		if !errors.Is(err, errors.ErrInputShape) {
			_ = s.tracker.CaptureError(ctx, err, map[string]string{
				"component":     "prediction_service",
				"model_version": b.Version,
			})
		}
		return nil, err
	}

	extrapolated := len(result.OutOfRange) > 0
	metrics.RecordPrediction("success", result.ClusterID, result.FertilityCategory, extrapolated, time.Since(start))

	if extrapolated {
		s.log.Debugw("Sample outside documented ranges",
			"fields", result.OutOfRange,
			"cluster", result.ClusterID,
		)
	}

	s.emit(ctx, soil.PredictionRecord{
		ID:                uuid.New(),
		Timestamp:         time.Now().UTC(),
		ModelVersion:      result.ModelVersion,
		ClusterID:         int32(result.ClusterID),
		DistanceToCenter:  result.Distance,
		FertilityScore:    result.Fertility.InexactFloat64(),
		FertilityCategory: result.FertilityCategory,
		Extrapolated:      extrapolated,
		FeatureVector:     fv,
	})

	return result, nil
}

// emit hands the record to every sink. Sink failures never fail the prediction.
func (s *Service) emit(ctx context.Context, record soil.PredictionRecord) {
	for _, sink := range s.sinks {
		if err := sink.Add(ctx, record); err != nil {
			s.log.Warnw("Failed to record prediction",
				"prediction_id", record.ID,
				"error", err,
			)
		}
	}
}

// ClusterView describes one cluster of the live model
type ClusterView struct {
	ClusterID       int                `json:"cluster"`
	Name            string             `json:"cluster_name"`
	Size            int                `json:"size"`
	Characteristics map[string]float64 `json:"characteristics"`
	Center          map[string]float64 `json:"center"`
	Description     string             `json:"description"`
}

// Clusters lists every cluster of the live bundle with its original-scale center
func (s *Service) Clusters() ([]ClusterView, error) {
	b := s.registry.Current()
	if b == nil {
		return nil, errors.ErrNoModel
	}

	centers, err := b.CentersOriginal()
	if err != nil {
		return nil, err
	}

	out := make([]ClusterView, 0, b.K())
	for c, p := range b.Profiles.Profiles {
		center := make(map[string]float64, len(b.Features))
		for j, name := range b.Features {
			center[name] = round(centers[c][j], 4)
		}
		out = append(out, ClusterView{
			ClusterID:       c,
			Name:            ClusterName(c),
			Size:            p.Size,
			Characteristics: p.Characteristics,
			Center:          center,
			Description:     Describe(c, p, s.policy),
		})
	}
	return out, nil
}

// ModelView is the metadata of the live bundle
type ModelView struct {
	Version          string            `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	K                int               `json:"k"`
	Features         []string          `json:"features"`
	ConstantFeatures []string          `json:"constant_features,omitempty"`
	Inertia          float64           `json:"inertia"`
	Iterations       int               `json:"iterations"`
	Converged        bool              `json:"converged"`
	Report           *selection.Report `json:"report,omitempty"`
}

// Model returns the metadata and selection report of the live bundle
func (s *Service) Model() (*ModelView, error) {
	b := s.registry.Current()
	if b == nil {
		return nil, errors.ErrNoModel
	}

	return &ModelView{
		Version:          b.Version,
		CreatedAt:        b.CreatedAt,
		K:                b.K(),
		Features:         b.Features,
		ConstantFeatures: b.Scaler.ConstantFeatures,
		Inertia:          b.Model.Inertia,
		Iterations:       b.Model.Iterations,
		Converged:        b.Model.Converged,
		Report:           b.Report,
	}, nil
}
