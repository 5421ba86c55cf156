package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"soilsense/internal/adapters/kafka"
	"soilsense/internal/domain/soil"
	"soilsense/pkg/logger"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func TestPublishModelTrained(t *testing.T) {
	producer := &mockProducer{}
	producer.On("Publish", mock.Anything, kafka.TopicModelTrained, "v1", mock.MatchedBy(func(ev ModelTrainedEvent) bool {
		return ev.Type == TypeModelTrained && ev.Source == "trainer" && ev.ID != "" && ev.K == 3
	})).Return(nil)

	p := NewPublisher(producer, "trainer", logger.NewNop())
	err := p.PublishModelTrained(context.Background(), ModelTrainedEvent{ModelVersion: "v1", K: 3})

	require.NoError(t, err)
	producer.AssertExpectations(t)
}

func TestPublishPrediction(t *testing.T) {
	producer := &mockProducer{}
	producer.On("Publish", mock.Anything, kafka.TopicPredictions, "v2", mock.AnythingOfType("events.PredictionEvent")).
		Return(errors.New("broker down"))

	p := NewPublisher(producer, "api", logger.NewNop())
	err := p.PublishPrediction(context.Background(), soil.PredictionRecord{ModelVersion: "v2", ClusterID: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	producer.AssertExpectations(t)
}
