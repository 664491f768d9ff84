package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/audit"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// OverrideParams is a privileged edit. Nil fields keep their current value;
// an empty Plan keeps the current plan.
type OverrideParams struct {
	Plan       string              `json:"plan"`
	Status     *SubscriptionStatus `json:"status,omitempty"`
	ExpiryDate *time.Time          `json:"expiry_date,omitempty"`
}

// Admin edits subscriptions outside the payment flow. Every edit goes
// through SetSubscriptionFields, so limits and features follow the plan.
type Admin struct {
	store   Store
	catalog *Catalog
	subs    *Subscriptions
	cfg     config
}

func NewAdmin(store Store, catalog *Catalog, subs *Subscriptions, opts ...Option) *Admin {
	return &Admin{
		store:   store,
		catalog: catalog,
		subs:    subs,
		cfg:     newConfig(opts),
	}
}

// Get returns the stored subscription, or the free default.
func (a *Admin) Get(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	return a.subs.Get(ctx, tenantID)
}

// Override sets plan, status and expiry. Switching plan without an explicit
// expiry starts a fresh period at now; the expiry may be set to any date,
// including one in the past.
func (a *Admin) Override(ctx context.Context, tenantID uuid.UUID, p OverrideParams) (Subscription, error) {
	if tenantID == uuid.Nil {
		return Subscription{}, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	if p.Status != nil && !p.Status.Valid() {
		return Subscription{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}

	var (
		before Subscription
		after  Subscription
	)
	err := a.store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := a.subs.lock(ctx, tenantID)
		if err != nil {
			return err
		}
		before = current

		planName := p.Plan
		if planName == "" {
			planName = current.Plan
		}
		plan, err := a.catalog.Lookup(planName)
		if err != nil {
			return errors.Join(ErrValidation, err)
		}

		now := a.cfg.clock()
		fields := SubscriptionFields{
			Status:               current.Status,
			StartDate:            current.StartDate,
			ExpiryDate:           current.ExpiryDate,
			LastPaymentReference: current.LastPaymentReference,
		}
		if p.Status != nil {
			fields.Status = *p.Status
		}
		if plan.Name != current.Plan || fields.StartDate.IsZero() {
			fields.StartDate = now
			fields.ExpiryDate = now.Add(plan.BillingPeriod())
		}
		if p.ExpiryDate != nil {
			fields.ExpiryDate = *p.ExpiryDate
		}

		after, err = a.subs.SetSubscriptionFields(ctx, tenantID, plan, fields)
		return err
	})
	if err != nil {
		return Subscription{}, err
	}

	a.cfg.record(ctx, ActionSubscriptionOverride, nil,
		audit.WithTenantID(tenantID.String()),
		audit.WithResource("subscription", tenantID.String()),
		audit.WithActor("admin"),
		audit.WithMetadata("plan_before", before.Plan),
		audit.WithMetadata("plan_after", after.Plan),
		audit.WithMetadata("status_before", before.Status),
		audit.WithMetadata("status_after", after.Status),
		audit.WithMetadata("expiry_after", after.ExpiryDate),
	)
	a.cfg.log.InfoContext(ctx, "subscription overridden",
		logger.TenantID(tenantID),
		logger.Plan(after.Plan),
		logger.Status(after.Status),
	)
	return after, nil
}

// Cancel marks the subscription cancelled. Plan and dates are kept.
func (a *Admin) Cancel(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	var after Subscription
	err := a.store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := a.subs.lock(ctx, tenantID)
		if err != nil {
			return err
		}
		plan, err := a.catalog.Lookup(current.Plan)
		if err != nil {
			return errors.Join(ErrValidation, err)
		}
		after, err = a.subs.SetSubscriptionFields(ctx, tenantID, plan, SubscriptionFields{
			Status:               StatusCancelled,
			StartDate:            current.StartDate,
			ExpiryDate:           current.ExpiryDate,
			LastPaymentReference: current.LastPaymentReference,
		})
		return err
	})
	if err != nil {
		return Subscription{}, err
	}

	a.cfg.record(ctx, ActionSubscriptionCancel, nil,
		audit.WithTenantID(tenantID.String()),
		audit.WithResource("subscription", tenantID.String()),
		audit.WithActor("admin"),
		audit.WithMetadata("plan", after.Plan),
	)
	a.cfg.log.InfoContext(ctx, "subscription cancelled", logger.TenantID(tenantID), logger.Plan(after.Plan))
	return after, nil
}
