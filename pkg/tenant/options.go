package tenant

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/schoolpay/handler"
)

// ErrorHandler writes the response for a request whose tenant could not be
// established.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	cache         Cache
	cacheTTL      time.Duration
	errorHandler  ErrorHandler
	skipPaths     []string
	requireActive bool
	required      bool
	logger        *slog.Logger
}

type Option func(*config)

// WithCache replaces the default in-process LRU, e.g. with a RedisCache
// shared between instances.
func WithCache(cache Cache) Option {
	return func(c *config) {
		if cache != nil {
			c.cache = cache
		}
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithSkipPaths lets requests under these path prefixes through untouched.
func WithSkipPaths(prefixes ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, prefixes...)
	}
}

// WithRequireActive controls whether deactivated schools are refused (403).
// On by default.
func WithRequireActive(require bool) Option {
	return func(c *config) { c.requireActive = require }
}

// WithRequired refuses requests that name no tenant (400). Off by default, in
// which case such requests pass through without a tenant in context.
func WithRequired(required bool) Option {
	return func(c *config) { c.required = required }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// renderError answers with the standard JSON error envelope.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(HTTPError(err)).Render(w, r)
}
