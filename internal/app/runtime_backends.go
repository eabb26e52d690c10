package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/4bhiy23/open-cookie/internal/config"
	"github.com/4bhiy23/open-cookie/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewCacheBackend selects the report cache backend from config. Redis
// initialization failures fall back to the in-memory cache so the service
// still starts.
func NewCacheBackend(cfg *config.Config, logger *zap.Logger) store.Cache {
	ttl := time.Minute
	if cfg != nil && cfg.Store.TTL > 0 {
		ttl = cfg.Store.TTL
	}

	backend := store.Cache(store.NewMemoryCache(ttl))
	if cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Store.Backend), "redis") {
		redisCache, err := newRedisCacheFromConfig(cfg, ttl)
		if err != nil {
			logger.Warn("failed to initialize redis cache; falling back to in-memory cache", zap.Error(err))
		} else {
			backend = redisCache
		}
	}
	return backend
}

func newRedisCacheFromConfig(cfg *config.Config, ttl time.Duration) (*store.RedisCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return store.NewRedisCache(redisClient, store.RedisCacheConfig{
		Namespace: "open-cookie",
		TTL:       ttl,
	}), nil
}
