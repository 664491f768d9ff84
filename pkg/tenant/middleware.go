package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// Middleware resolves the tenant named by each request, loads it through the
// cache or provider, and stores it in the request context. Concurrent misses
// for the same identifier share one provider lookup.
func Middleware(resolver Resolver, provider Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		cacheTTL:      5 * time.Minute,
		errorHandler:  renderError,
		requireActive: true,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.cache == nil {
		cfg.cache = NewMemoryCache(DefaultCacheSize)
	}
	l := &loader{provider: provider, cache: cfg.cache, ttl: cfg.cacheTTL}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			identifier, err := resolver.Resolve(r)
			if err == nil && identifier == "" {
				if !cfg.required {
					next.ServeHTTP(w, r)
					return
				}
				err = ErrNoTenantInContext
			}

			var t *Tenant
			if err == nil {
				t, err = l.load(r.Context(), identifier)
			}
			if err == nil && cfg.requireActive && !t.Active {
				err = ErrInactiveTenant
			}
			if err != nil {
				cfg.logger.LogAttrs(r.Context(), levelFor(err), "tenant resolution failed",
					slog.String("identifier", identifier),
					logger.Error(err),
					logger.Component("tenant"),
				)
				cfg.errorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

func (c *config) skips(path string) bool {
	for _, prefix := range c.skipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

const lookupTimeout = 5 * time.Second

type loader struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	group    singleflight.Group
}

func (l *loader) load(ctx context.Context, identifier string) (*Tenant, error) {
	if t, ok := l.cache.Get(ctx, identifier); ok {
		return t, nil
	}

	v, err, _ := l.group.Do(identifier, func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		t, err := l.provider.GetByIdentifier(lctx, identifier)
		if err != nil {
			return nil, err
		}
		l.cache.Set(ctx, identifier, t, l.ttl)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*Tenant)
	return &t, nil
}

// levelFor keeps client mistakes out of error-level logs.
func levelFor(err error) slog.Level {
	if HTTPError(err).Code < http.StatusInternalServerError {
		return slog.LevelDebug
	}
	return slog.LevelError
}
