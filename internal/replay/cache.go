package replay

import (
	"context"
	"sync"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/redis"
)

// MemoryCache is a process-lifetime snapshot cache. Safe for concurrent
// readers; writers overwrite idempotently (same key means same value),
// so a plain RWMutex suffices.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*contracts.DataSnapshot
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*contracts.DataSnapshot)}
}

// Get returns the cached snapshot for key, if present.
func (c *MemoryCache) Get(_ context.Context, key string) (*contracts.DataSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.items[key]
	return snap, ok, nil
}

// Set stores the snapshot under key.
func (c *MemoryCache) Set(_ context.Context, key string, snapshot *contracts.DataSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = snapshot
	return nil
}

// Clear drops every entry. Explicit lifecycle control for long-lived
// workers.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*contracts.DataSnapshot)
}

// Len returns the number of cached snapshots.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// RedisCache adapts the shared Redis cache helper to the snapshot
// cache contract. Keys are immutable historical tuples, so entries are
// stored without expiry.
type RedisCache struct {
	cache *redis.Cache
}

// NewRedisCache creates a Redis-backed snapshot cache.
func NewRedisCache(cache *redis.Cache) *RedisCache {
	return &RedisCache{cache: cache}
}

// Get returns the cached snapshot for key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) (*contracts.DataSnapshot, bool, error) {
	var snap contracts.DataSnapshot
	found, err := c.cache.Get(ctx, "snapshot:"+key, &snap)
	if err != nil || !found {
		return nil, false, err
	}
	return &snap, true, nil
}

// Set stores the snapshot under key.
func (c *RedisCache) Set(ctx context.Context, key string, snapshot *contracts.DataSnapshot) error {
	return c.cache.Set(ctx, "snapshot:"+key, snapshot, redis.TTLNever)
}
