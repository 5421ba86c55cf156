package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"soilsense/internal/events"
	"soilsense/internal/ml/bundle"
	"soilsense/internal/services/prediction"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// BundleRegistry is the part of prediction.Registry the consumer needs
type BundleRegistry interface {
	Current() *bundle.Bundle
	Reload(ctx context.Context, trigger string) (bool, error)
}

// ModelReloadConsumer reloads the serving bundle as soon as a training run announces one,
// instead of waiting for the next poll
type ModelReloadConsumer struct {
	source   MessageSource
	registry BundleRegistry
	log      *logger.Logger
}

// NewModelReloadConsumer creates a new model reload consumer
func NewModelReloadConsumer(source MessageSource, registry BundleRegistry, log *logger.Logger) *ModelReloadConsumer {
	return &ModelReloadConsumer{
		source:   source,
		registry: registry,
		log:      log.With("component", "model_reload_consumer"),
	}
}

// Start consumes model.trained events until ctx is canceled
func (c *ModelReloadConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting model reload consumer")
	return run(ctx, c.source, c.HandleMessage, func(err error) {
		if err != nil {
			c.log.Errorw("Failed to close model reload consumer", "error", err)
			return
		}
		c.log.Info("Model reload consumer closed")
	})
}

// HandleMessage reloads when the announced version is not already live
func (c *ModelReloadConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var event events.ModelTrainedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "decode model trained event")
	}
	if event.Type != events.TypeModelTrained {
		c.log.Debugw("Skipping event", "type", event.Type)
		return nil
	}

	if live := c.registry.Current(); live != nil && live.Version == event.ModelVersion {
		return nil
	}

	changed, err := c.registry.Reload(ctx, prediction.TriggerEvent)
	if err != nil {
		return errors.Wrapf(err, "reload after model %s", event.ModelVersion)
	}

	live := c.registry.Current()
	if changed && live != nil && live.Version != event.ModelVersion {
		// a newer run was published before this event was read
		c.log.Infow("Loaded a newer bundle than announced",
			"announced", event.ModelVersion,
			"live", live.Version,
		)
	}
	return nil
}
