package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const keyPrefix = "dispatch:idempotency:"

// Cache is a read-through layer in front of the idempotency table.
// A miss returns (nil, nil).
type Cache interface {
	Get(ctx context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error)
	Put(ctx context.Context, record domain.IdempotencyRecord) error
}

// RedisCache stores committed idempotency records in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a cache; ttl <= 0 keeps entries until evicted.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(actorID, endpoint, requestID string) string {
	return keyPrefix + actorID + "|" + endpoint + "|" + requestID
}

func (c *RedisCache) Get(ctx context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error) {
	data, err := c.client.Get(ctx, cacheKey(actorID, endpoint, requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record domain.IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *RedisCache) Put(ctx context.Context, record domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(record.ActorID, record.Endpoint, record.RequestID), data, c.ttl).Err()
}
