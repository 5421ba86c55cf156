package events

import (
	"context"

	"soilsense/internal/adapters/kafka"
	"soilsense/internal/domain/soil"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Producer sends one JSON-encoded event to a topic
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher publishes domain events to Kafka
type Publisher struct {
	producer Producer
	source   string
	log      *logger.Logger
}

// NewPublisher creates a new event publisher. source names the emitting process.
func NewPublisher(producer Producer, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishModelTrained announces a new bundle. Keyed by model version.
func (p *Publisher) PublishModelTrained(ctx context.Context, event ModelTrainedEvent) error {
	event.BaseEvent = NewBaseEvent(TypeModelTrained, p.source)
	return p.publish(ctx, kafka.TopicModelTrained, event.ModelVersion, event)
}

// PublishPrediction emits a served prediction. Keyed by model version so one
// model's predictions stay ordered within a partition.
func (p *Publisher) PublishPrediction(ctx context.Context, record soil.PredictionRecord) error {
	event := PredictionEvent{
		BaseEvent:  NewBaseEvent(TypePrediction, p.source),
		Prediction: record,
	}
	return p.publish(ctx, kafka.TopicPredictions, record.ModelVersion, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorw("Failed to publish event",
			"topic", topic,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}
