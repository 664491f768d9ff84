package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/svc/billing"
)

const day = 24 * time.Hour

type fixture struct {
	now     time.Time
	store   *billing.MemoryStore
	catalog *billing.Catalog
	subs    *billing.Subscriptions
	rec     *billing.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:   billing.NewMemoryStore(),
		catalog: billing.DefaultCatalog(),
	}
	f.subs = billing.NewSubscriptions(f.store, f.catalog, f.clock())
	f.rec = billing.NewReconciler(f.store, f.catalog, f.subs, f.clock())
	return f
}

func (f *fixture) clock() billing.Option {
	return billing.WithClock(func() time.Time { return f.now })
}

// pending records a pending transaction priced from the catalog.
func (f *fixture) pending(t *testing.T, tenantID uuid.UUID, plan string) billing.Transaction {
	t.Helper()

	p, err := f.catalog.Lookup(plan)
	require.NoError(t, err)

	tx := billing.Transaction{
		Reference: "ref_" + uuid.NewString(),
		TenantID:  tenantID,
		Plan:      p.Name,
		Amount:    p.PriceMinorUnits,
		Currency:  p.Currency,
		CreatedAt: f.now,
	}
	require.NoError(t, f.store.CreatePending(context.Background(), tx))
	return tx
}

// activate confirms tx with exactly the amount and currency it was created with.
func (f *fixture) activate(t *testing.T, tx billing.Transaction) (billing.Outcome, error) {
	t.Helper()
	return f.rec.Activate(context.Background(), billing.ActivateParams{
		TenantID:  tx.TenantID,
		Plan:      tx.Plan,
		Reference: tx.Reference,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Source:    billing.SourceWebhook,
	})
}

// seed stores a subscription directly through the write primitive.
func (f *fixture) seed(t *testing.T, tenantID uuid.UUID, plan string, status billing.SubscriptionStatus, start, expiry time.Time) billing.Subscription {
	t.Helper()

	p, err := f.catalog.Lookup(plan)
	require.NoError(t, err)
	sub, err := f.subs.SetSubscriptionFields(context.Background(), tenantID, p, billing.SubscriptionFields{
		Status:     status,
		StartDate:  start,
		ExpiryDate: expiry,
	})
	require.NoError(t, err)
	return sub
}
