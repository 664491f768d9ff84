package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// RedisCache shares resolved tenants between service instances.
// Redis failures degrade to cache misses; the provider stays authoritative.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// NewRedisCache creates a cache storing JSON-encoded tenants under prefix+key.
func NewRedisCache(client redis.UniversalClient, prefix string, log *slog.Logger) *RedisCache {
	if client == nil {
		panic("tenant: redis client cannot be nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCache{client: client, prefix: prefix, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "tenant cache read failed", logger.Error(err), logger.Component("tenant_cache"))
		}
		return nil, false
	}

	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		c.log.WarnContext(ctx, "tenant cache entry corrupt", logger.Error(err), logger.Component("tenant_cache"))
		c.Delete(ctx, key)
		return nil, false
	}
	return &t, true
}

func (c *RedisCache) Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration) {
	if tenant == nil {
		return
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache write failed", logger.Error(err), logger.Component("tenant_cache"))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache delete failed", logger.Error(err), logger.Component("tenant_cache"))
	}
}

// Close is a no-op: the client is owned by the caller.
func (c *RedisCache) Close() error {
	return nil
}
