package workers

import (
	"context"
	"time"

	"soilsense/internal/services/prediction"
	"soilsense/pkg/errors"
)

// Reloader swaps in the store's current bundle when it changes
type Reloader interface {
	Reload(ctx context.Context, trigger string) (bool, error)
}

// BundleReloadWorker polls the bundle store so every serving instance picks up new training runs
type BundleReloadWorker struct {
	*BaseWorker
	registry Reloader
}

// NewBundleReloadWorker creates a new reload worker
func NewBundleReloadWorker(registry Reloader, interval time.Duration, enabled bool) *BundleReloadWorker {
	return &BundleReloadWorker{
		BaseWorker: NewBaseWorker("bundle_reload", interval, enabled),
		registry:   registry,
	}
}

// Run reloads once. An empty store is not an error: serving waits for the first training run.
func (w *BundleReloadWorker) Run(ctx context.Context) error {
	changed, err := w.registry.Reload(ctx, prediction.TriggerPoll)
	if err != nil {
		if errors.Is(err, errors.ErrNoModel) {
			w.Log().Debug("No bundle published yet")
			return nil
		}
		return err
	}

	if changed {
		w.Log().Info("Picked up new bundle")
	}
	return nil
}
