package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/metrics"
	"go.uber.org/zap"
)

const DefaultConsumerGroup = "payment-processors"

const (
	readBatchSize = 10
	readBlock     = time.Second
)

// errUndecodable marks a stream entry no retry could ever process.
var errUndecodable = errors.New("undecodable stream entry")

// RedisEventSubscriber consumes the per-type event streams as one member of
// a consumer group. Entries whose handler fails stay in the group's pending
// list and are retried when the consumer next starts.
type RedisEventSubscriber struct {
	client       *redis.Client
	logger       *zap.Logger
	consumerName string
	groupName    string

	mu       sync.RWMutex
	handlers map[string]domain.EventHandler
}

func NewRedisEventSubscriber(client *redis.Client, logger *zap.Logger, consumerName string) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:       client,
		logger:       logger,
		consumerName: consumerName,
		groupName:    DefaultConsumerGroup,
		handlers:     make(map[string]domain.EventHandler),
	}
}

func (s *RedisEventSubscriber) Subscribe(ctx context.Context, eventType string, handler domain.EventHandler) error {
	key := streamKey(eventType)

	err := s.client.XGroupCreateMkStream(ctx, key, s.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group for %s: %w", key, err)
	}

	s.mu.Lock()
	s.handlers[eventType] = handler
	s.mu.Unlock()

	s.logger.Info("subscribed to event",
		zap.String("event_type", eventType),
		zap.String("stream", key),
		zap.String("group", s.groupName),
	)
	return nil
}

// Start replays this consumer's pending entries, then reads new ones until
// ctx is cancelled.
func (s *RedisEventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting redis event subscriber",
		zap.String("consumer", s.consumerName),
		zap.String("group", s.groupName),
	)

	if err := s.readStreams(ctx, "0", 0); err != nil && ctx.Err() == nil {
		s.logger.Warn("failed to replay pending events", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping redis event subscriber")
			return nil
		default:
		}

		if err := s.processEvents(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("error processing events", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *RedisEventSubscriber) processEvents(ctx context.Context) error {
	return s.readStreams(ctx, ">", readBlock)
}

// readStreams reads every subscribed stream in one XREADGROUP call. id ">"
// asks for new entries, "0" for entries already delivered to this consumer
// but never acknowledged.
func (s *RedisEventSubscriber) readStreams(ctx context.Context, id string, block time.Duration) error {
	keys := s.streamKeys()
	if len(keys) == 0 {
		return nil
	}

	streams := make([]string, 0, 2*len(keys))
	streams = append(streams, keys...)
	for range keys {
		streams = append(streams, id)
	}

	args := &redis.XReadGroupArgs{
		Group:    s.groupName,
		Consumer: s.consumerName,
		Streams:  streams,
		Count:    readBatchSize,
		Block:    block,
	}
	if block == 0 {
		// zero would block forever
		args.Block = -1
	}

	result, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to read from streams: %w", err)
	}

	for _, stream := range result {
		eventType := strings.TrimPrefix(stream.Stream, streamKey(""))
		for _, message := range stream.Messages {
			s.deliver(ctx, stream.Stream, eventType, message)
		}
	}
	return nil
}

func (s *RedisEventSubscriber) deliver(ctx context.Context, key, eventType string, message redis.XMessage) {
	err := s.handleMessage(ctx, eventType, message)
	if err != nil && !errors.Is(err, errUndecodable) {
		s.logger.Error("failed to handle message",
			zap.Error(err),
			zap.String("message_id", message.ID),
			zap.String("stream", key),
		)
		return
	}
	if err != nil {
		s.logger.Warn("dropping undecodable message",
			zap.Error(err),
			zap.String("message_id", message.ID),
			zap.String("stream", key),
		)
	}

	if err := s.client.XAck(ctx, key, s.groupName, message.ID).Err(); err != nil {
		s.logger.Warn("failed to ack message",
			zap.Error(err),
			zap.String("message_id", message.ID),
		)
	}
}

func (s *RedisEventSubscriber) handleMessage(ctx context.Context, eventType string, message redis.XMessage) error {
	s.mu.RLock()
	handler, exists := s.handlers[eventType]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no handler for event type: %s", eventType)
	}

	data, ok := message.Values["data"].(string)
	if !ok {
		metrics.EventConsumed(transportRedis, "decode_error")
		return fmt.Errorf("%w: missing data field", errUndecodable)
	}

	event, err := DecodeEvent(eventType, []byte(data))
	if err != nil {
		metrics.EventConsumed(transportRedis, "decode_error")
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}

	if err := handler(ctx, event); err != nil {
		metrics.EventConsumed(transportRedis, "process_error")
		return err
	}

	metrics.EventConsumed(transportRedis, "success")
	return nil
}

func (s *RedisEventSubscriber) streamKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.handlers))
	for eventType := range s.handlers {
		keys = append(keys, streamKey(eventType))
	}
	sort.Strings(keys)
	return keys
}
