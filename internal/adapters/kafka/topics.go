package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicModelTrained carries one event per published bundle
	TopicModelTrained = "soil.model.trained"

	// TopicPredictions carries one event per served prediction
	TopicPredictions = "soil.predictions"
)
