package workers

import (
	"context"
	"sync/atomic"
	"time"

	"soilsense/internal/domain/soil"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/services/training"
	"soilsense/pkg/errors"
)

const retrainLockKey = "soilsense:retrain"

// Locker guards a section across instances. The Redis client implements it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Trainer runs one training pass over a sample source
type Trainer interface {
	TrainFrom(ctx context.Context, source training.SampleSource) (*training.Outcome, error)
}

// LiveModel exposes the bundle being served. prediction.Registry implements it.
type LiveModel interface {
	Current() *bundle.Bundle
}

// RetrainWorker retrains when the sample table no longer matches the latest model.
// The live bundle's sample count is checked first since the run record is best effort.
type RetrainWorker struct {
	*BaseWorker
	samples soil.SampleRepository
	runs    soil.TrainingRunRepository
	live    LiveModel // nil skips the live bundle check
	trainer Trainer
	locker  Locker // nil runs without a lock
	lockTTL time.Duration

	trainedCount atomic.Int64 // sample count of this worker's last successful retrain, -1 before
}

// NewRetrainWorker creates a new retrain worker
func NewRetrainWorker(
	samples soil.SampleRepository,
	runs soil.TrainingRunRepository,
	live LiveModel,
	trainer Trainer,
	locker Locker,
	interval time.Duration,
	enabled bool,
) *RetrainWorker {
	w := &RetrainWorker{
		BaseWorker: NewBaseWorker("retrain", interval, enabled),
		samples:    samples,
		runs:       runs,
		live:       live,
		trainer:    trainer,
		locker:     locker,
		lockTTL:    30 * time.Minute,
	}
	w.trainedCount.Store(-1)
	return w
}

// Run retrains if the sample count differs from the one the current model was trained on
func (w *RetrainWorker) Run(ctx context.Context) error {
	count, err := w.samples.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count samples")
	}

	upToDate, err := w.upToDate(ctx, count)
	if err != nil {
		return err
	}
	if upToDate {
		w.Log().Debugw("Training table unchanged", "samples", count)
		return nil
	}

	if w.locker != nil {
		ok, err := w.locker.AcquireLock(ctx, retrainLockKey, w.lockTTL)
		if err != nil {
			return errors.Wrap(err, "acquire retrain lock")
		}
		if !ok {
			w.Log().Info("Another instance is retraining")
			return nil
		}
		defer func() {
			if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), retrainLockKey); err != nil {
				w.Log().Warnw("Failed to release retrain lock", "error", err)
			}
		}()
	}

	w.Log().Infow("Training table changed, retraining", "samples", count)
	outcome, err := w.trainer.TrainFrom(ctx, w.samples)
	if err != nil {
		return errors.Wrap(err, "retrain")
	}

	w.trainedCount.Store(int64(outcome.Bundle.Report.Samples))
	w.Log().Infow("Retrained", "version", outcome.Bundle.Version, "k", outcome.Bundle.K())
	return nil
}

func (w *RetrainWorker) upToDate(ctx context.Context, count int) (bool, error) {
	if w.trainedCount.Load() == int64(count) {
		return true, nil
	}

	liveMatches := false
	if w.live != nil {
		if b := w.live.Current(); b != nil && b.Report.Samples == count {
			liveMatches = true
		}
	}

	latest, err := w.runs.GetLatest(ctx)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		if liveMatches {
			w.Log().Warnw("Live bundle has no training run record", "samples", count)
		}
		return liveMatches, nil
	case err != nil:
		return false, errors.Wrap(err, "get latest training run")
	case latest.SampleCount == count:
		return true, nil
	case liveMatches:
		w.Log().Warnw("Latest training run record lags the live bundle",
			"run_samples", latest.SampleCount,
			"live_samples", count,
		)
		return true, nil
	}
	return false, nil
}
