package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Cache for single-instance deployments and
// tests.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates an in-process cache. cleanupInterval is how often
// expired items are purged.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns a copy of the value stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, _ := v.([]byte)
	return slices.Clone(data), true, nil
}

// Set stores a copy of value. A zero ttl keeps it until deleted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.store.Set(key, slices.Clone(value), ttl)
	return nil
}

// DeleteByPrefix removes every key starting with one of prefixes and
// returns how many were removed.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefixes ...string) (int, error) {
	deleted := 0
	for key := range c.store.Items() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				c.store.Delete(key)
				deleted++
				break
			}
		}
	}
	return deleted, nil
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }
