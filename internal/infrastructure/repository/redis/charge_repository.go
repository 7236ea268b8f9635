package redisrepository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/restpay/payments/internal/domain"
)

var ErrCacheMiss = errors.New("charge not cached")

// RedisChargeRepository is a read-through cache for charges. MySQL stays
// the source of truth; entries expire after cacheTTL.
type RedisChargeRepository struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func NewRedisChargeRepository(client *redis.Client, cacheTTL time.Duration) *RedisChargeRepository {
	return &RedisChargeRepository{
		client:   client,
		cacheTTL: cacheTTL,
	}
}

func (r *RedisChargeRepository) FindByID(ctx context.Context, chargeID string) (*domain.Charge, error) {
	data, err := r.client.Get(ctx, r.chargeKey(chargeID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}

	var charge domain.Charge
	if err := json.Unmarshal(data, &charge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	return &charge, nil
}

func (r *RedisChargeRepository) Save(ctx context.Context, charge *domain.Charge) error {
	data, err := json.Marshal(charge)
	if err != nil {
		return fmt.Errorf("failed to marshal charge: %w", err)
	}

	if err := r.client.Set(ctx, r.chargeKey(charge.ID), data, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}

	return nil
}

func (r *RedisChargeRepository) Delete(ctx context.Context, chargeID string) error {
	if err := r.client.Del(ctx, r.chargeKey(chargeID)).Err(); err != nil {
		return fmt.Errorf("failed to delete charge: %w", err)
	}
	return nil
}

func (r *RedisChargeRepository) chargeKey(chargeID string) string {
	return fmt.Sprintf("charge:%s", chargeID)
}
