package tenant

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores resolved tenants keyed by the raw identifier.
type Cache interface {
	Get(ctx context.Context, key string) (*Tenant, bool)
	Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Close() error
}

// DefaultCacheSize bounds the memory cache when NewMemoryCache gets a
// non-positive size.
const DefaultCacheSize = 1000

// memoryCache is a size-bounded LRU. Entries also carry their own deadline
// and are dropped lazily on read.
type memoryCache struct {
	lru *lru.Cache[string, cacheItem]
	now func() time.Time
}

type cacheItem struct {
	tenant    Tenant
	expiresAt time.Time
}

// NewMemoryCache returns an in-process Cache holding at most maxSize tenants.
func NewMemoryCache(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	l, err := lru.New[string, cacheItem](maxSize)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &memoryCache{lru: l, now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(item.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	t := item.tenant
	return &t, true
}

func (c *memoryCache) Set(_ context.Context, key string, tenant *Tenant, ttl time.Duration) {
	if tenant == nil || ttl <= 0 {
		return
	}
	c.lru.Add(key, cacheItem{tenant: *tenant, expiresAt: c.now().Add(ttl)})
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}

// Close drops every entry. The cache stays usable afterwards.
func (c *memoryCache) Close() error {
	c.lru.Purge()
	return nil
}

type noopCache struct{}

// NewNoopCache returns a cache that never stores anything.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (*Tenant, bool) {
	return nil, false
}

func (noopCache) Set(context.Context, string, *Tenant, time.Duration) {}

func (noopCache) Delete(context.Context, string) {}

func (noopCache) Close() error {
	return nil
}
