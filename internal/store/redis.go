package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCacheConfig configures the Redis-backed report cache.
type RedisCacheConfig struct {
	Namespace string
	TTL       time.Duration
}

// RedisCache stores report payloads in Redis so replicas share one cache.
type RedisCache struct {
	client    redisCommander
	closeFn   func() error
	namespace string
	ttl       time.Duration
}

// NewRedisCache creates a Redis-backed report cache.
func NewRedisCache(client redis.UniversalClient, cfg RedisCacheConfig) *RedisCache {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newRedisCacheFromCommander(client, closeFn, cfg)
}

func newRedisCacheFromCommander(client redisCommander, closeFn func() error, cfg RedisCacheConfig) *RedisCache {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "open-cookie"
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	return &RedisCache{
		client:    client,
		closeFn:   closeFn,
		namespace: namespace,
		ttl:       cfg.TTL,
	}
}

// Get returns the cached payload for key. Expiry is enforced by Redis.
func (c *RedisCache) Get(ctx context.Context, key string, _ time.Time) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, fmt.Errorf("redis cache is not initialized")
	}

	payload, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached report: %w", err)
	}
	return payload, true, nil
}

// Set stores payload under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, _ time.Time) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("redis cache is not initialized")
	}
	if key == "" {
		return fmt.Errorf("cache key is required")
	}

	if err := c.client.Set(ctx, c.prefixed(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached report: %w", err)
	}
	return nil
}

// GC is a no-op for the Redis backend.
func (c *RedisCache) GC(_ time.Time) {}

// Close closes the underlying Redis client.
func (c *RedisCache) Close() error {
	if c == nil || c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

func (c *RedisCache) prefixed(suffix string) string {
	return c.namespace + ":" + suffix
}
