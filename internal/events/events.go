// Package events announces captured snapshots to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/smallbiznis/revlens/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	TypeSnapshotCaptured   = "snapshot.captured"
	TypeSnapshotRecomputed = "snapshot.recomputed"
)

type Event struct {
	Type          string          `json:"type"`
	CompanyID     string          `json:"company_id"`
	Date          string          `json:"snapshot_date"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

// NewKafkaPublisher publishes events keyed by company so one company's events stay ordered.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.Named("events.kafka"),
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Type) == "" || strings.TrimSpace(event.CompanyID) == "" {
		return ErrInvalidEvent
	}
	if event.CorrelationID == "" {
		event.CorrelationID = correlation.ExtractCorrelationID(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	headers := []sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte(event.Type)}}
	for key, value := range correlation.Headers(ctx) {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(event.CompanyID),
		Value:   sarama.ByteEncoder(body),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debug("event published",
		zap.String("type", event.Type),
		zap.String("company_id", event.CompanyID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher drops every event.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
