package prediction

import (
	"context"
	"sync"
	"sync/atomic"

	"soilsense/internal/metrics"
	"soilsense/internal/ml/bundle"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Reload triggers
const (
	TriggerStartup = "startup"
	TriggerPoll    = "poll"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// Registry holds the bundle used for serving. Readers never lock; a reload
// loads and validates a whole new bundle before swapping the pointer.
type Registry struct {
	store   bundle.Store
	current atomic.Pointer[bundle.Bundle]
	mu      sync.Mutex // serializes reloads
	tracker errors.Tracker
	log     *logger.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// TrackReloads leaves a breadcrumb on the tracker for every reload that swaps or fails
func TrackReloads(t errors.Tracker) RegistryOption {
	return func(r *Registry) { r.tracker = t }
}

// NewRegistry creates an empty registry over a bundle store
func NewRegistry(store bundle.Store, log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store: store,
		log:   log.With("component", "bundle_registry"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Current returns the live bundle, or nil before the first successful load
func (r *Registry) Current() *bundle.Bundle {
	return r.current.Load()
}

// Swap validates b and makes it live
func (r *Registry) Swap(b *bundle.Bundle) error {
	if b == nil {
		return errors.ErrNoModel
	}
	if err := b.Validate(); err != nil {
		return err
	}

	prev := r.current.Swap(b)
	metrics.SetActiveModel(b.Version, b.K())

	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	r.log.Infow("Bundle activated",
		"version", b.Version,
		"previous", prevVersion,
		"k", b.K(),
	)
	return nil
}

// Reload loads the store's current version if it differs from the live one.
// It reports whether the live bundle changed. On failure the live bundle is kept.
func (r *Registry) Reload(ctx context.Context, trigger string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	version, err := r.store.Current(ctx)
	if err != nil {
		err = errors.Wrap(err, "read current bundle version")
		r.reloadFailed(ctx, trigger, "", err)
		return false, err
	}

	live := r.current.Load()
	if live != nil && live.Version == version {
		metrics.RecordBundleReload(trigger, "unchanged")
		return false, nil
	}

	b, err := r.store.Load(ctx, version)
	if err != nil {
		err = errors.Wrapf(err, "load bundle %s", version)
		r.reloadFailed(ctx, trigger, version, err)
		return false, err
	}

	if err := r.Swap(b); err != nil {
		r.reloadFailed(ctx, trigger, version, err)
		return false, err
	}

	metrics.RecordBundleReload(trigger, "swapped")
	data := map[string]interface{}{"version": version, "trigger": trigger}
	if live != nil {
		data["previous"] = live.Version
	}
	r.breadcrumb(ctx, "bundle activated", errors.LevelInfo, data)
	return true, nil
}

func (r *Registry) reloadFailed(ctx context.Context, trigger, version string, err error) {
	metrics.RecordBundleReload(trigger, "error")
	r.log.Warnw("Bundle reload failed", "trigger", trigger, "version", version, "error", err)
	r.breadcrumb(ctx, "bundle reload failed", errors.LevelWarning, map[string]interface{}{
		"version": version,
		"trigger": trigger,
		"error":   err.Error(),
	})
}

func (r *Registry) breadcrumb(ctx context.Context, message string, level errors.Level, data map[string]interface{}) {
	if r.tracker != nil {
		r.tracker.AddBreadcrumb(ctx, message, "bundle_reload", level, data)
	}
}
