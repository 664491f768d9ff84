package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config defines the token bucket.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_INITIATE_BURST" envDefault:"5"`      // burst size; 0 disables limiting
	RefillRate     int           `env:"RATE_LIMIT_INITIATE_REFILL" envDefault:"1"`     // tokens added per interval
	RefillInterval time.Duration `env:"RATE_LIMIT_INITIATE_INTERVAL" envDefault:"1m"` // refill period
}

// Enabled reports whether a limit is configured.
func (c Config) Enabled() bool {
	return c.Capacity > 0
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval < time.Millisecond {
		return fmt.Errorf("%w: refill interval must be at least 1ms, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// State is what a store reports after a take.
type State struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time // next refill
}

// Store keeps bucket state. Take must refill and consume atomically.
type Store interface {
	Take(ctx context.Context, key string, n int, cfg Config, now time.Time) (State, error)
	Reset(ctx context.Context, key string) error
}

// Result describes one rate limit decision.
type Result struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	Allowed    bool
	RetryAfter time.Duration // zero when allowed
}

// Bucket applies one Config to many keys.
type Bucket struct {
	store  Store
	config Config
	now    func() time.Time
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBucket(store Store, config Config, opts ...Option) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, config: config, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 || n > b.config.Capacity {
		return Result{}, fmt.Errorf("%w: need 1..%d, got %d", ErrInvalidTokenCount, b.config.Capacity, n)
	}

	now := b.now()
	st, err := b.store.Take(ctx, key, n, b.config, now)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Limit:     b.config.Capacity,
		Remaining: st.Remaining,
		ResetAt:   st.ResetAt,
		Allowed:   st.Allowed,
	}
	if !st.Allowed {
		res.RetryAfter = max(st.ResetAt.Sub(now), 0)
	}
	return res, nil
}

func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}

// refill returns the tokens after whole intervals since refilled, and the
// new refill mark. Partial intervals carry over.
func refill(tokens int, refilled, now time.Time, cfg Config) (int, time.Time) {
	if !now.After(refilled) {
		return tokens, refilled
	}
	intervals := int64(now.Sub(refilled) / cfg.RefillInterval)
	if intervals <= 0 {
		return tokens, refilled
	}
	// Past this many intervals the bucket is full anyway.
	full := int64(cfg.Capacity/cfg.RefillRate + 1)
	added := min(intervals, full) * int64(cfg.RefillRate)
	tokens = int(min(int64(tokens)+added, int64(cfg.Capacity)))
	return tokens, refilled.Add(time.Duration(intervals) * cfg.RefillInterval)
}
