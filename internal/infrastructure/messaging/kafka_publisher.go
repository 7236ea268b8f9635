package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	transportKafka = "kafka"

	headerEventType = "event_type"
	headerEventID   = "event_id"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.ReferenceHash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: false,
	}
}

// KafkaEventPublisher writes every event to one topic, keyed by aggregate
// id so events for the same charge keep their order.
type KafkaEventPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewKafkaEventPublisher(writer MessageWriter, logger *zap.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: writer,
		logger: logger,
	}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.GetAggregateID()),
		Value: eventData,
		Time:  event.GetOccurredAt(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.GetEventType())},
			{Key: headerEventID, Value: []byte(event.GetEventID())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventPublishFailed(transportKafka)
		p.logger.Error("failed to publish event to kafka",
			zap.Error(err),
			zap.String("event_type", event.GetEventType()),
			zap.String("event_id", event.GetEventID()),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventPublished(transportKafka)
	p.logger.Debug("event published to kafka",
		zap.String("event_type", event.GetEventType()),
		zap.String("event_id", event.GetEventID()),
	)

	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
