package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCountCache stores audience counts in Redis.
type RedisCountCache struct {
	client redis.Cmdable
}

// NewRedisCountCache creates a CountCache backed by a Redis client.
func NewRedisCountCache(client redis.Cmdable) *RedisCountCache {
	return &RedisCountCache{client: client}
}

// Get returns the cached count for key; ok is false on a miss.
func (c *RedisCountCache) Get(ctx context.Context, key string) (int, bool, error) {
	count, err := c.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// Set stores count under key for ttl.
func (c *RedisCountCache) Set(ctx context.Context, key string, count int, ttl time.Duration) error {
	return c.client.Set(ctx, key, count, ttl).Err()
}
