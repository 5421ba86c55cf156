package consumers

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"soilsense/internal/events"
	"soilsense/internal/services/prediction"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// PredictionLogConsumer copies served predictions from Kafka into the analytics store
type PredictionLogConsumer struct {
	source MessageSource
	sink   prediction.Sink
	log    *logger.Logger
}

// NewPredictionLogConsumer creates a new prediction log consumer. sink is usually the ClickHouse batch writer.
func NewPredictionLogConsumer(source MessageSource, sink prediction.Sink, log *logger.Logger) *PredictionLogConsumer {
	return &PredictionLogConsumer{
		source: source,
		sink:   sink,
		log:    log.With("component", "prediction_log_consumer"),
	}
}

// Start consumes prediction events until ctx is canceled
func (c *PredictionLogConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting prediction log consumer")
	return run(ctx, c.source, c.HandleMessage, func(err error) {
		if err != nil {
			c.log.Errorw("Failed to close prediction log consumer", "error", err)
			return
		}
		c.log.Info("Prediction log consumer closed")
	})
}

// HandleMessage decodes one prediction event and hands it to the sink
func (c *PredictionLogConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var event events.PredictionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "decode prediction event")
	}
	if event.Type != events.TypePrediction {
		return nil
	}

	return errors.Wrap(c.sink.Add(ctx, event.Prediction), "buffer prediction")
}
