package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/metrics"
	"go.uber.org/zap"
)

// streamMaxLen caps each stream at roughly this many entries.
const streamMaxLen = 100000

const transportRedis = "redis"

type RedisEventPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisEventPublisher(client *redis.Client, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{
		client: client,
		logger: logger,
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	key := streamKey(event.GetEventType())

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":     event.GetEventID(),
			"event_type":   event.GetEventType(),
			"aggregate_id": event.GetAggregateID(),
			"occurred_at":  event.GetOccurredAt().Unix(),
			"data":         string(eventData),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		metrics.EventPublishFailed(transportRedis)
		p.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("event_type", event.GetEventType()),
			zap.String("event_id", event.GetEventID()),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventPublished(transportRedis)
	p.logger.Debug("event published",
		zap.String("event_type", event.GetEventType()),
		zap.String("event_id", event.GetEventID()),
		zap.String("stream", key),
	)

	return nil
}
