package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/schoolpay/pkg/audit"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// Auditor records security and billing events. *audit.Logger implements it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

// Recorder receives billing metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveClaim(status string, claimed bool)
	ObserveActivation(plan string, extended bool)
	ObserveRejection(reason string)
	ObserveWebhook(result string)
	ObserveDenial(kind, name string)
}

// Audit actions.
const (
	ActionTransactionSucceeded = "billing.transaction.succeeded"
	ActionTransactionFailed    = "billing.transaction.failed"
	ActionTransactionAbandoned = "billing.transaction.abandoned"
	ActionInvalidSignature     = "billing.webhook.invalid_signature"
	ActionSubscriptionOverride = "billing.subscription.override"
	ActionSubscriptionCancel   = "billing.subscription.cancel"
)

// Option configures any billing component.
type Option func(*config)

type config struct {
	now     func() time.Time
	log     *slog.Logger
	audit   Auditor
	metrics Recorder
}

func newConfig(opts []Option) config {
	cfg := config{
		now:     time.Now,
		log:     logger.Nop(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock overrides the time source used for period arithmetic.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(c *config) {
		c.audit = a
	}
}

func WithMetrics(r Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.metrics = r
		}
	}
}

func (c config) clock() time.Time {
	return c.now().UTC()
}

// record writes an audit event. Audit failures are logged, never returned:
// the billing state change they describe has already happened.
func (c config) record(ctx context.Context, action string, err error, opts ...audit.EventOption) {
	if c.audit == nil {
		return
	}
	var auditErr error
	if err != nil {
		auditErr = c.audit.LogError(ctx, action, err, opts...)
	} else {
		auditErr = c.audit.Log(ctx, action, opts...)
	}
	if auditErr != nil {
		c.log.ErrorContext(ctx, "failed to write audit event",
			slog.String("action", action),
			logger.Error(auditErr),
		)
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveClaim(string, bool) {}

func (nopRecorder) ObserveActivation(string, bool) {}

func (nopRecorder) ObserveRejection(string) {}

func (nopRecorder) ObserveWebhook(string) {}

func (nopRecorder) ObserveDenial(string, string) {}
