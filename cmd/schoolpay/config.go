package main

import (
	"time"

	"github.com/dmitrymomot/schoolpay/pkg/file"
	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/httpserver"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/pg"
	"github.com/dmitrymomot/schoolpay/pkg/ratelimiter"
	"github.com/dmitrymomot/schoolpay/pkg/redis"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"schoolpay"`

	// UploadsDir is metered when no bucket is configured.
	UploadsDir string `env:"UPLOADS_DIR" envDefault:"./data/uploads"`

	TenantHeader   string        `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	TenantDomain   string        `env:"TENANT_DOMAIN"` // ".schoolpay.app" enables subdomain lookup
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	// RedisEnabled moves the tenant cache and rate limit buckets to Redis.
	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`
}

type config struct {
	App       appConfig
	Log       logger.Config
	HTTP      httpserver.Config
	PG        pg.Config
	Redis     redis.Config
	S3        file.S3Config
	Gateway   gateway.Config
	Billing   billing.Config
	RateLimit ratelimiter.Config
}
