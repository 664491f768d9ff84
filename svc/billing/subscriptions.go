package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionFields are the caller-controlled parts of a subscription.
// Limits and features always come from the plan.
type SubscriptionFields struct {
	Status               SubscriptionStatus
	StartDate            time.Time
	ExpiryDate           time.Time
	LastPaymentReference string
}

// Subscriptions reads tenant subscriptions and owns the single write path.
type Subscriptions struct {
	store   SubscriptionStore
	catalog *Catalog
	cfg     config
}

func NewSubscriptions(store SubscriptionStore, catalog *Catalog, opts ...Option) *Subscriptions {
	return &Subscriptions{
		store:   store,
		catalog: catalog,
		cfg:     newConfig(opts),
	}
}

// Get returns the tenant's subscription. Tenants without a stored record
// hold the free plan with status inactive.
func (s *Subscriptions) Get(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	sub, ok, err := s.store.Subscription(ctx, tenantID)
	if err != nil {
		return Subscription{}, err
	}
	if !ok {
		return s.defaultFor(tenantID), nil
	}
	return sub, nil
}

// lock reads the subscription with a row lock; call it inside WithinTx.
func (s *Subscriptions) lock(ctx context.Context, tenantID uuid.UUID) (Subscription, error) {
	sub, ok, err := s.store.LockSubscription(ctx, tenantID)
	if err != nil {
		return Subscription{}, err
	}
	if !ok {
		return s.defaultFor(tenantID), nil
	}
	return sub, nil
}

func (s *Subscriptions) defaultFor(tenantID uuid.UUID) Subscription {
	sub := Subscription{
		TenantID: tenantID,
		Status:   StatusInactive,
	}
	sub.applyPlan(s.catalog.Free())
	return sub
}

// SetSubscriptionFields is the only way a subscription is written. It
// copies limits and features from plan so they always match the plan name.
func (s *Subscriptions) SetSubscriptionFields(ctx context.Context, tenantID uuid.UUID, plan Plan, fields SubscriptionFields) (Subscription, error) {
	sub := Subscription{
		TenantID:             tenantID,
		Status:               fields.Status,
		StartDate:            fields.StartDate.UTC(),
		ExpiryDate:           fields.ExpiryDate.UTC(),
		LastPaymentReference: fields.LastPaymentReference,
		UpdatedAt:            s.cfg.clock(),
	}
	sub.applyPlan(plan)

	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}
