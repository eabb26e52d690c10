package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores rendered report payloads keyed by repository and scope so
// repeated requests within the TTL skip the upstream crawl.
type Cache interface {
	Get(ctx context.Context, key string, now time.Time) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, now time.Time) error
	GC(now time.Time)
	Close() error
}

// PageKey builds the cache key for one listing page of a repository.
func PageKey(owner, repo string, page, perPage int) string {
	return fmt.Sprintf("report:%s/%s:page:%d:%d", owner, repo, page, perPage)
}

// FullScanKey builds the cache key for a repository's full crawl.
func FullScanKey(owner, repo string, perPage int) string {
	return fmt.Sprintf("report:%s/%s:all:%d", owner, repo, perPage)
}

type cachedPayload struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is an in-process report cache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedPayload
}

// NewMemoryCache creates a memory cache. A non-positive TTL disables
// expiry.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]cachedPayload),
	}
}

// Get returns the cached payload for key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string, now time.Time) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		return nil, false, nil
	}

	payload := make([]byte, len(entry.payload))
	copy(payload, entry.payload)
	return payload, true, nil
}

// Set stores payload under key.
func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, now time.Time) error {
	if c == nil {
		return fmt.Errorf("memory cache is not initialized")
	}
	if key == "" {
		return fmt.Errorf("cache key is required")
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	entry := cachedPayload{payload: stored}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// GC deletes expired entries.
func (c *MemoryCache) GC(now time.Time) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close is a no-op for the memory backend.
func (c *MemoryCache) Close() error {
	return nil
}
