package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// Observer receives one callback per provider call attempt.
type Observer func(operation string, err error, elapsed time.Duration)

// Resilient decorates a Client with per-attempt timeouts, bounded retries of
// transient failures and a circuit breaker.
type Resilient struct {
	next       Client
	timeout    time.Duration
	maxRetries int
	backoff    Backoff
	breaker    *CircuitBreaker
	logger     *slog.Logger
	observe    Observer
}

// ResilientOption configures Resilient.
type ResilientOption func(*Resilient)

func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxRetries sets retries after the first attempt. Zero disables retries.
func WithMaxRetries(n int) ResilientOption {
	return func(r *Resilient) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithBackoff(b Backoff) ResilientOption {
	return func(r *Resilient) {
		if b != nil {
			r.backoff = b
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) ResilientOption {
	return func(r *Resilient) { r.breaker = cb }
}

func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) ResilientOption {
	return func(r *Resilient) { r.observe = o }
}

// NewResilient wraps next. Defaults: 10s timeout, 2 retries, DefaultBackoff,
// breaker opening after 5 consecutive failures.
func NewResilient(next Client, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:       next,
		timeout:    10 * time.Second,
		maxRetries: 2,
		backoff:    DefaultBackoff(),
		breaker:    NewCircuitBreaker(5, 2, 30*time.Second),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) CreateIntent(ctx context.Context, intent Intent) (Checkout, error) {
	var out Checkout
	err := r.call(ctx, "create_intent", func(ctx context.Context) error {
		var err error
		out, err = r.next.CreateIntent(ctx, intent)
		return err
	})
	return out, err
}

func (r *Resilient) FetchStatus(ctx context.Context, reference string) (Confirmation, error) {
	var out Confirmation
	err := r.call(ctx, "fetch_status", func(ctx context.Context) error {
		var err error
		out, err = r.next.FetchStatus(ctx, reference)
		return err
	})
	return out, err
}

// CircuitState exposes the breaker state for health reporting.
func (r *Resilient) CircuitState() CircuitState {
	if r.breaker == nil {
		return CircuitClosed
	}
	return r.breaker.State()
}

func (r *Resilient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.WarnContext(ctx, "retrying gateway call",
				slog.String("operation", op),
				logger.RetryCount(attempt),
				slog.Duration("delay", delay),
				logger.Error(err),
				logger.Component("gateway"),
			)
			select {
			case <-ctx.Done():
				return errors.Join(ErrUnavailable, err, ctx.Err())
			case <-time.After(delay):
			}
		}

		if r.breaker != nil && !r.breaker.Allow() {
			return errors.Join(ErrUnavailable, ErrCircuitOpen)
		}

		err = r.attempt(ctx, op, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *Resilient) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := fn(actx)

	// A per-attempt deadline is a provider timeout, not caller cancellation.
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !IsRetryable(err) {
		err = errors.Join(ErrUnavailable, err)
	}

	if r.breaker != nil {
		// Definitive answers prove the provider is up.
		if err == nil || !IsRetryable(err) {
			r.breaker.RecordSuccess()
		} else {
			r.breaker.RecordFailure()
		}
	}
	if r.observe != nil {
		r.observe(op, err, time.Since(start))
	}
	return err
}
