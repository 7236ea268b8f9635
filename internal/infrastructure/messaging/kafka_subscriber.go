package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the subscriber needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
}

const (
	maxHandlerAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

type KafkaEventSubscriber struct {
	reader       MessageReader
	logger       *zap.Logger
	retryBackoff time.Duration
	mu           sync.RWMutex
	handlers     map[string]domain.EventHandler
}

func NewKafkaEventSubscriber(reader MessageReader, logger *zap.Logger) *KafkaEventSubscriber {
	return &KafkaEventSubscriber{
		reader:       reader,
		logger:       logger,
		retryBackoff: defaultRetryBackoff,
		handlers:     make(map[string]domain.EventHandler),
	}
}

func (s *KafkaEventSubscriber) Subscribe(ctx context.Context, eventType string, handler domain.EventHandler) error {
	s.mu.Lock()
	s.handlers[eventType] = handler
	s.mu.Unlock()

	s.logger.Info("subscribed to event", zap.String("event_type", eventType))
	return nil
}

// Start consumes until ctx is cancelled. A message whose handler keeps
// failing is logged and committed so the partition keeps moving.
func (s *KafkaEventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting kafka event subscriber")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				s.logger.Info("stopping kafka event subscriber")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := s.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// uncommitted; the group redelivers it after a restart
				return nil
			}
			metrics.EventConsumed(transportKafka, "dropped")
			s.logger.Error("giving up on message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
			)
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Warn("failed to commit message", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// handleWithRetry runs the handler up to maxHandlerAttempts times. Kafka
// offsets are committed in order, so a failing message cannot be skipped
// without committing past it.
func (s *KafkaEventSubscriber) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxHandlerAttempts; attempt++ {
		if err = s.handleMessage(ctx, msg); err == nil {
			return nil
		}

		s.logger.Warn("failed to handle message",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int64("offset", msg.Offset),
		)
		if attempt == maxHandlerAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func (s *KafkaEventSubscriber) handleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := header(msg, headerEventType)

	s.mu.RLock()
	handler, exists := s.handlers[eventType]
	s.mu.RUnlock()
	if !exists {
		// not ours; nothing to redeliver
		return nil
	}

	event, err := DecodeEvent(eventType, msg.Value)
	if err != nil {
		metrics.EventConsumed(transportKafka, "decode_error")
		s.logger.Warn("dropping undecodable message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset))
		return nil
	}

	if err := handler(ctx, event); err != nil {
		metrics.EventConsumed(transportKafka, "process_error")
		return err
	}

	metrics.EventConsumed(transportKafka, "success")
	return nil
}

func (s *KafkaEventSubscriber) Close() error {
	return s.reader.Close()
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
