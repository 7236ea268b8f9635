package redisrepository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisIntegrationIndex maps a provider reference (integration name plus
// the provider's charge id) to the local charge id. Provider ids are
// immutable so entries never expire.
type RedisIntegrationIndex struct {
	client *redis.Client
}

func NewRedisIntegrationIndex(client *redis.Client) *RedisIntegrationIndex {
	return &RedisIntegrationIndex{
		client: client,
	}
}

// Put records the mapping. It reports false when the reference was
// already mapped, leaving the first mapping in place.
func (r *RedisIntegrationIndex) Put(ctx context.Context, integration, integrationID, chargeID string) (bool, error) {
	wasSet, err := r.client.SetNX(ctx, r.referenceKey(integration, integrationID), chargeID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to index charge: %w", err)
	}
	return wasSet, nil
}

// Lookup returns the charge id for a provider reference, or ErrCacheMiss.
func (r *RedisIntegrationIndex) Lookup(ctx context.Context, integration, integrationID string) (string, error) {
	chargeID, err := r.client.Get(ctx, r.referenceKey(integration, integrationID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to look up charge reference: %w", err)
	}
	return chargeID, nil
}

func (r *RedisIntegrationIndex) Delete(ctx context.Context, integration, integrationID string) error {
	if err := r.client.Del(ctx, r.referenceKey(integration, integrationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete charge reference: %w", err)
	}
	return nil
}

func (r *RedisIntegrationIndex) referenceKey(integration, integrationID string) string {
	return fmt.Sprintf("charge:ref:%s:%s", integration, integrationID)
}
