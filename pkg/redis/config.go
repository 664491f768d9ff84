package redis

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection url")
	ErrRedisNotReady                = errors.New("redis: server did not answer ping in time")
	ErrEmptyConnectionURL           = errors.New("redis: REDIS_URL is empty")
	ErrHealthcheckFailed            = errors.New("redis: ping failed")
)

// Config is read only when REDIS_ENABLED is set.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // redis://:password@host:6379/db
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"schoolpay"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"15s"`
}

// Key joins the configured prefix and parts with ':' and appends a trailing
// ':' so callers can use the result as a namespace.
//
//	cfg.Key("tenant") == "schoolpay:tenant:"
func (c Config) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(c.KeyPrefix, ":"); p != "" {
		all = append(all, p)
	}
	for _, part := range parts {
		if part = strings.Trim(part, ":"); part != "" {
			all = append(all, part)
		}
	}
	if len(all) == 0 {
		return ""
	}
	return strings.Join(all, ":") + ":"
}
