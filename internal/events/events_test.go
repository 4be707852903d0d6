package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKafkaPublisherSendsKeyedEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig(config.Config{AppName: "revlens"}))
	defer func() { _ = producer.Close() }()

	var captured *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		captured = msg
		return nil
	})

	publisher := NewKafkaPublisher(producer, "revlens.snapshots", zap.NewNop())
	ctx := correlation.ContextWithCorrelationID(context.Background(), "01JABCDEF")

	err := publisher.Publish(ctx, Event{Type: TypeSnapshotCaptured, CompanyID: "42", Date: "2025-06-30"})
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, "revlens.snapshots", captured.Topic)
	key, err := captured.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "42", string(key))

	value, err := captured.Value.Encode()
	require.NoError(t, err)
	var decoded Event
	require.NoError(t, json.Unmarshal(value, &decoded))
	assert.Equal(t, TypeSnapshotCaptured, decoded.Type)
	assert.Equal(t, "2025-06-30", decoded.Date)
	assert.Equal(t, "01JABCDEF", decoded.CorrelationID)
	assert.False(t, decoded.OccurredAt.IsZero())

	headers := map[string]string{}
	for _, h := range captured.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	assert.Equal(t, TypeSnapshotCaptured, headers["event_type"])
	assert.Equal(t, "01JABCDEF", headers["correlation_id"])
}

func TestKafkaPublisherPropagatesFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig(config.Config{}))
	defer func() { _ = producer.Close() }()

	brokerDown := errors.New("broker down")
	producer.ExpectSendMessageAndFail(brokerDown)

	publisher := NewKafkaPublisher(producer, "revlens.snapshots", zap.NewNop())
	err := publisher.Publish(context.Background(), Event{Type: TypeSnapshotCaptured, CompanyID: "42"})
	assert.ErrorIs(t, err, brokerDown)
}

func TestKafkaPublisherRejectsIncompleteEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer func() { _ = producer.Close() }()

	publisher := NewKafkaPublisher(producer, "revlens.snapshots", zap.NewNop())
	assert.ErrorIs(t, publisher.Publish(context.Background(), Event{Type: TypeSnapshotCaptured}), ErrInvalidEvent)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NewNoopPublisher().Publish(context.Background(), Event{}))
}
