// Package training runs the clustering pipeline and publishes the resulting bundle.
package training

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"soilsense/internal/domain/soil"
	"soilsense/internal/events"
	"soilsense/internal/metrics"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/scaler"
	"soilsense/internal/ml/selection"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// SampleSource provides the training table. soil.SampleRepository and CSVSource satisfy it.
type SampleSource interface {
	List(ctx context.Context) ([]soil.Sample, error)
}

// EventPublisher announces published bundles
type EventPublisher interface {
	PublishModelTrained(ctx context.Context, event events.ModelTrainedEvent) error
}

// Outcome is the result of one training run
type Outcome struct {
	Bundle   *bundle.Bundle
	Summary  []FeatureSummary
	Duration time.Duration
	// Failures holds one error per K that could not be fitted, nil when every K succeeded
	Failures error
}

// Service runs training and publishes bundles
type Service struct {
	store     bundle.Store
	storeKind string
	opts      selection.Options
	runs      soil.TrainingRunRepository
	publisher EventPublisher
	tracker   errors.Tracker
	log       *logger.Logger
}

// Option configures optional collaborators
type Option func(*Service)

// WithRunRepository records each run and its centers
func WithRunRepository(runs soil.TrainingRunRepository) Option {
	return func(s *Service) { s.runs = runs }
}

// WithPublisher announces each published bundle
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTracker reports training failures
func WithTracker(t errors.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// NewService creates a training service. storeKind names the bundle store in events.
func NewService(store bundle.Store, storeKind string, opts selection.Options, log *logger.Logger, options ...Option) *Service {
	s := &Service{
		store:     store,
		storeKind: storeKind,
		opts:      opts,
		log:       log.With("component", "training_service"),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// TrainFrom reads the table from source and trains on it
func (s *Service) TrainFrom(ctx context.Context, source SampleSource) (*Outcome, error) {
	samples, err := source.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load training table")
	}
	return s.Train(ctx, samples)
}

// Train standardizes samples, selects K, profiles the clusters and publishes the bundle.
// Recording the run and announcing it are best effort once the bundle is saved.
func (s *Service) Train(ctx context.Context, samples []soil.Sample) (*Outcome, error) {
	start := time.Now()
	outcome, err := s.train(ctx, samples)
	duration := time.Since(start)
	metrics.RecordTrainingRun(duration, err)

	if err != nil {
		s.log.Errorw("Training failed", "samples", len(samples), "error", err)
		s.capture(ctx, err, "train")
		return nil, err
	}

	outcome.Duration = duration
	s.log.Infow("Training completed",
		"version", outcome.Bundle.Version,
		"k", outcome.Bundle.K(),
		"samples", len(samples),
		"duration", duration,
	)
	return outcome, nil
}

func (s *Service) train(ctx context.Context, samples []soil.Sample) (*Outcome, error) {
	n := len(samples)
	if n < s.opts.KMax {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%d samples for k up to %d", n, s.opts.KMax)
	}

	X := mat.NewDense(n, soil.NumFeatures, nil)
	for i, sample := range samples {
		if err := sample.Validate(); err != nil {
			return nil, errors.Wrapf(err, "sample %d", sample.ID)
		}
		X.SetRow(i, sample.ToSlice())
	}
	summary := Summarize(X, soil.FeatureNames)

	sc, err := scaler.Fit(X, soil.FeatureNames)
	if err != nil {
		return nil, errors.Wrap(err, "fit scaler")
	}
	if len(sc.ConstantFeatures) > 0 {
		s.log.Warnw("Constant features carry no distance information", "features", sc.ConstantFeatures)
		s.warn(ctx, "constant features carry no distance information: "+strings.Join(sc.ConstantFeatures, ","))
	}
	s.breadcrumb(ctx, "scaler fitted", map[string]interface{}{
		"samples":           n,
		"constant_features": sc.ConstantFeatures,
	})

	Z, err := sc.TransformMatrix(X)
	if err != nil {
		return nil, errors.Wrap(err, "standardize training table")
	}

	sel, err := selection.SelectK(ctx, Z, s.opts)
	if err != nil {
		return nil, err
	}
	for _, c := range sel.Report.Candidates {
		if !c.Failed {
			metrics.RecordCandidate(c.K, c.Silhouette, c.Inertia)
		}
	}
	if sel.Failures != nil {
		s.log.Warnw("Some cluster counts could not be fitted", "error", sel.Failures)
		s.warn(ctx, "some cluster counts could not be fitted: "+sel.Failures.Error())
	}

	k := sel.Report.SelectedK
	selected, _ := sel.Report.Selected()
	s.breadcrumb(ctx, "cluster count selected", map[string]interface{}{
		"k":          k,
		"silhouette": selected.Silhouette,
	})
	profiles, err := profile.Build(X, sel.Best.Labels, k, soil.FeatureNames)
	if err != nil {
		return nil, errors.Wrap(err, "profile clusters")
	}

	b, err := bundle.New(sc, sel.Best.Model, profiles, sel.Report)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "publish bundle")
	}
	s.breadcrumb(ctx, "bundle saved", map[string]interface{}{"version": b.Version, "store": s.storeKind})

	s.record(ctx, b)
	s.announce(ctx, b)

	return &Outcome{
		Bundle:   b,
		Summary:  summary,
		Failures: sel.Failures,
	}, nil
}

func (s *Service) record(ctx context.Context, b *bundle.Bundle) {
	if s.runs == nil {
		return
	}

	run, centers, err := runFromBundle(b)
	if err == nil {
		err = s.runs.Store(ctx, run, centers)
	}
	if err != nil {
		s.log.Warnw("Failed to record training run", "version", b.Version, "error", err)
		s.capture(ctx, err, "record_run")
	}
}

func (s *Service) announce(ctx context.Context, b *bundle.Bundle) {
	if s.publisher == nil {
		return
	}

	selected, _ := b.Report.Selected()
	err := s.publisher.PublishModelTrained(ctx, events.ModelTrainedEvent{
		ModelVersion: b.Version,
		K:            b.K(),
		Silhouette:   selected.Silhouette,
		Samples:      b.Report.Samples,
		Store:        s.storeKind,
	})
	if err != nil {
		s.log.Warnw("Failed to announce bundle", "version", b.Version, "error", err)
	}
}

func (s *Service) capture(ctx context.Context, err error, stage string) {
	if s.tracker == nil {
		return
	}
	_ = s.tracker.CaptureError(ctx, err, map[string]string{
		"component": "training_service",
		"stage":     stage,
	})
}

func (s *Service) breadcrumb(ctx context.Context, message string, data map[string]interface{}) {
	if s.tracker != nil {
		s.tracker.AddBreadcrumb(ctx, message, "training", errors.LevelInfo, data)
	}
}

func (s *Service) warn(ctx context.Context, message string) {
	if s.tracker == nil {
		return
	}
	_ = s.tracker.CaptureMessage(ctx, message, errors.LevelWarning, map[string]string{
		"component": "training_service",
	})
}

// runFromBundle derives the run summary and original-scale centers stored for inspection
func runFromBundle(b *bundle.Bundle) (*soil.TrainingRun, []soil.ClusterCenter, error) {
	id, err := uuid.Parse(b.Version)
	if err != nil {
		return nil, nil, errors.Wrap(err, "bundle version is not a uuid")
	}

	selected, _ := b.Report.Selected()
	run := &soil.TrainingRun{
		ID:            id,
		SelectedK:     b.K(),
		Silhouette:    selected.Silhouette,
		DaviesBouldin: selected.DaviesBouldin,
		Inertia:       b.Model.Inertia,
		SampleCount:   b.Report.Samples,
		Seed:          int64(b.Report.Seed),
		CreatedAt:     b.CreatedAt,
	}

	original, err := b.CentersOriginal()
	if err != nil {
		return nil, nil, err
	}
	centers := make([]soil.ClusterCenter, b.K())
	for c, values := range original {
		fv, err := soil.FromSlice(values)
		if err != nil {
			return nil, nil, err
		}
		centers[c] = soil.ClusterCenter{
			RunID:     id,
			ClusterID: c,
			Size:      b.Profiles.Profiles[c].Size,
			Center:    fv,
		}
	}
	return run, centers, nil
}
