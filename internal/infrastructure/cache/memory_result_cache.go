package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryResultCache implements ResultCache in process memory.
// Entries are not shared between service instances.
type MemoryResultCache struct {
	store *gocache.Cache
}

// NewMemoryResultCache creates a cache whose entries default to defaultTTL and
// are purged every cleanupInterval
func NewMemoryResultCache(defaultTTL, cleanupInterval time.Duration) *MemoryResultCache {
	return &MemoryResultCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get loads a cached result. The returned value is a copy.
func (c *MemoryResultCache) Get(_ context.Context, key string) (*CachedResult, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	result := v.(CachedResult)
	return &result, true, nil
}

// Set stores a copy of result. ttl <= 0 uses the cache default.
func (c *MemoryResultCache) Set(_ context.Context, key string, result *CachedResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, *result, ttl)
	return nil
}

// Delete removes a cached result
func (c *MemoryResultCache) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet purged
func (c *MemoryResultCache) Len() int {
	return c.store.ItemCount()
}

var _ ResultCache = (*MemoryResultCache)(nil)
