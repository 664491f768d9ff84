package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/audit"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// Confirmation sources.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
)

// ActivateParams carries a payment confirmation. Amount and Currency are
// the values the gateway reported, not the ones the client asked for.
type ActivateParams struct {
	TenantID  uuid.UUID // optional; must match the ledger when set
	Plan      string    // optional; must match the ledger when set
	Reference string
	Amount    int64
	Currency  string
	Channel   string
	PaidAt    time.Time
	Source    string
}

// Reconciler applies confirmed payments to subscriptions exactly once per
// reference.
type Reconciler struct {
	store   Store
	catalog *Catalog
	subs    *Subscriptions
	cfg     config
}

func NewReconciler(store Store, catalog *Catalog, subs *Subscriptions, opts ...Option) *Reconciler {
	return &Reconciler{
		store:   store,
		catalog: catalog,
		subs:    subs,
		cfg:     newConfig(opts),
	}
}

// Activate reconciles a successful payment for p.Reference.
//
// The first caller to claim the pending transaction advances the tenant's
// subscription; later callers for the same reference get a Duplicate outcome
// (or the stored failure) and change nothing.
func (r *Reconciler) Activate(ctx context.Context, p ActivateParams) (Outcome, error) {
	if p.Reference == "" {
		return Outcome{}, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	tx, err := r.store.Find(ctx, p.Reference)
	if errors.Is(err, ErrTransactionNotFound) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, p.Reference)
	}
	if err != nil {
		return Outcome{}, err
	}

	if p.TenantID != uuid.Nil && p.TenantID != tx.TenantID {
		return Outcome{}, fmt.Errorf("%w: tenant does not match transaction %s", ErrValidation, tx.Reference)
	}
	if p.Plan != "" && !strings.EqualFold(p.Plan, tx.Plan) {
		return Outcome{}, fmt.Errorf("%w: plan %q does not match transaction %s", ErrValidation, p.Plan, tx.Reference)
	}
	if strings.ToUpper(p.Currency) != tx.Currency {
		reason := fmt.Sprintf("currency mismatch: expected %s, got %s", tx.Currency, p.Currency)
		return r.reject(ctx, tx, p, ErrCurrencyMismatch, reason)
	}
	if p.Amount != tx.Amount {
		reason := fmt.Sprintf("amount mismatch: expected %d, got %d", tx.Amount, p.Amount)
		return r.reject(ctx, tx, p, ErrAmountMismatch, reason)
	}

	var (
		out    Outcome
		stored TransactionStatus
	)
	err = r.store.WithinTx(ctx, func(ctx context.Context) error {
		claim, err := r.store.TryClaim(ctx, tx.Reference, TxSuccess, "")
		if err != nil {
			return err
		}
		r.cfg.metrics.ObserveClaim(string(claim.Status), claim.Claimed)
		if !claim.Claimed {
			stored = claim.Status
			return nil
		}

		plan, err := r.catalog.Lookup(tx.Plan)
		if err != nil {
			return errors.Join(ErrValidation, err)
		}

		current, err := r.subs.lock(ctx, tx.TenantID)
		if err != nil {
			return err
		}

		now := r.cfg.clock()
		fields, extended := nextPeriod(current, plan, now)
		fields.LastPaymentReference = tx.Reference

		sub, err := r.subs.SetSubscriptionFields(ctx, tx.TenantID, plan, fields)
		if err != nil {
			return err
		}

		paidAt := p.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		if err := r.store.MarkPaid(ctx, tx.Reference, paidAt, p.Channel); err != nil {
			return err
		}

		out = Outcome{
			Reference:    tx.Reference,
			Status:       TxSuccess,
			Extended:     extended,
			Subscription: sub,
		}
		return nil
	})
	if err != nil {
		r.cfg.log.ErrorContext(ctx, "failed to activate subscription",
			logger.Reference(tx.Reference),
			logger.TenantID(tx.TenantID),
			logger.Channel(p.Source),
			logger.Error(err),
		)
		return Outcome{}, err
	}

	if stored != "" {
		return r.duplicate(ctx, tx, stored)
	}

	r.cfg.metrics.ObserveActivation(out.Subscription.Plan, out.Extended)
	r.cfg.record(ctx, ActionTransactionSucceeded, nil,
		audit.WithTenantID(tx.TenantID.String()),
		audit.WithResource("transaction", tx.Reference),
		audit.WithActor(actorFor(p.Source)),
		audit.WithMetadata("plan", out.Subscription.Plan),
		audit.WithMetadata("amount", tx.Amount),
		audit.WithMetadata("currency", tx.Currency),
		audit.WithMetadata("extended", out.Extended),
		audit.WithMetadata("expiry_date", out.Subscription.ExpiryDate),
	)
	r.cfg.log.InfoContext(ctx, "subscription activated",
		logger.Reference(tx.Reference),
		logger.TenantID(tx.TenantID),
		logger.Plan(out.Subscription.Plan),
		logger.Channel(p.Source),
		slog.Bool("extended", out.Extended),
		slog.Time("expiry_date", out.Subscription.ExpiryDate),
	)
	return out, nil
}

// reject marks the transaction failed because the confirmation does not
// match it. A transaction that already succeeded keeps its success.
func (r *Reconciler) reject(ctx context.Context, tx Transaction, p ActivateParams, cause error, reason string) (Outcome, error) {
	claim, err := r.store.TryClaim(ctx, tx.Reference, TxFailed, reason)
	if err != nil {
		return Outcome{}, err
	}
	r.cfg.metrics.ObserveClaim(string(claim.Status), claim.Claimed)

	if !claim.Claimed {
		switch claim.Status {
		case TxSuccess:
			return r.duplicate(ctx, tx, claim.Status)
		case TxAbandoned:
			return Outcome{}, fmt.Errorf("%w: %s", ErrTransactionAbandoned, tx.Reference)
		}
		return Outcome{}, fmt.Errorf("%w: %s", cause, reason)
	}

	rejectErr := fmt.Errorf("%w: %s", cause, reason)
	r.cfg.metrics.ObserveRejection(rejectionReason(cause))
	r.cfg.record(ctx, ActionTransactionFailed, rejectErr,
		audit.WithTenantID(tx.TenantID.String()),
		audit.WithResource("transaction", tx.Reference),
		audit.WithActor(actorFor(p.Source)),
		audit.WithResult(audit.ResultFailure),
		audit.WithMetadata("expected_amount", tx.Amount),
		audit.WithMetadata("expected_currency", tx.Currency),
		audit.WithMetadata("amount", p.Amount),
		audit.WithMetadata("currency", p.Currency),
	)
	r.cfg.log.WarnContext(ctx, "payment confirmation rejected",
		logger.Reference(tx.Reference),
		logger.TenantID(tx.TenantID),
		logger.Channel(p.Source),
		logger.Amount(p.Amount, p.Currency),
		slog.String("reason", reason),
	)
	return Outcome{}, rejectErr
}

// duplicate reports a reference that was already resolved.
func (r *Reconciler) duplicate(ctx context.Context, tx Transaction, status TransactionStatus) (Outcome, error) {
	switch status {
	case TxSuccess:
		sub, err := r.subs.Get(ctx, tx.TenantID)
		if err != nil {
			return Outcome{}, err
		}
		r.cfg.log.InfoContext(ctx, "duplicate payment confirmation ignored",
			logger.Reference(tx.Reference),
			logger.TenantID(tx.TenantID),
		)
		return Outcome{
			Reference:    tx.Reference,
			Status:       TxSuccess,
			Duplicate:    true,
			Subscription: sub,
		}, nil
	case TxFailed:
		stored, err := r.store.Find(ctx, tx.Reference)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("%w: %s", ErrTransactionFailed, stored.FailureReason)
	case TxAbandoned:
		return Outcome{}, fmt.Errorf("%w: %s", ErrTransactionAbandoned, tx.Reference)
	default:
		return Outcome{}, fmt.Errorf("%w: unexpected status %q", ErrInvalidOutcome, status)
	}
}

// nextPeriod extends an active subscription to the same plan from its
// current expiry, and otherwise starts a fresh period at now.
func nextPeriod(current Subscription, plan Plan, now time.Time) (SubscriptionFields, bool) {
	if current.Status == StatusActive &&
		strings.EqualFold(current.Plan, plan.Name) &&
		current.ExpiryDate.After(now) {
		return SubscriptionFields{
			Status:     StatusActive,
			StartDate:  current.StartDate,
			ExpiryDate: current.ExpiryDate.Add(plan.BillingPeriod()),
		}, true
	}
	return SubscriptionFields{
		Status:     StatusActive,
		StartDate:  now,
		ExpiryDate: now.Add(plan.BillingPeriod()),
	}, false
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	default:
		return "other"
	}
}

func actorFor(source string) string {
	if source == "" {
		return "system"
	}
	return source
}
