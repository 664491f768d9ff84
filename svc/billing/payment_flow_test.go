package billing_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

func newInitiator(f *fixture, gw gateway.Client) *billing.Initiator {
	return billing.NewInitiator(f.store, f.catalog, gw, "https://app.example.com/billing/callback", f.clock())
}

func TestInitiator_Initialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("records a pending transaction under the gateway reference", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		gw := gateway.NewMemory("https://pay.example.com")
		tenantID := uuid.New()

		out, err := newInitiator(f, gw).Initialize(ctx, billing.InitiateParams{
			TenantID: tenantID,
			Plan:     "Basic",
			Email:    "bursar@school.example",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, out.Reference)
		assert.True(t, strings.HasPrefix(out.RedirectURL, "https://pay.example.com/"))
		assert.Equal(t, int64(50000), out.Amount)
		assert.Equal(t, "NGN", out.Currency)

		tx, err := f.store.Find(ctx, out.Reference)
		require.NoError(t, err)
		assert.Equal(t, billing.TxPending, tx.Status)
		assert.Equal(t, tenantID, tx.TenantID)
		assert.Equal(t, "basic", tx.Plan)
		assert.Equal(t, int64(50000), tx.Amount)
		assert.Equal(t, f.now, tx.CreatedAt)
	})

	t.Run("free and unknown plans are rejected before the gateway", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		gw := gateway.NewMemory("")
		initiator := newInitiator(f, gw)

		_, err := initiator.Initialize(ctx, billing.InitiateParams{TenantID: uuid.New(), Plan: "free"})
		assert.ErrorIs(t, err, billing.ErrValidation)

		_, err = initiator.Initialize(ctx, billing.InitiateParams{TenantID: uuid.New(), Plan: "platinum"})
		assert.ErrorIs(t, err, billing.ErrValidation)

		_, err = initiator.Initialize(ctx, billing.InitiateParams{Plan: "basic"})
		assert.ErrorIs(t, err, billing.ErrValidation)

		assert.Zero(t, gw.Calls())
	})

	t.Run("gateway failure leaves no ledger entry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		gw := gateway.NewMemory("")
		gw.FailNext(gateway.ErrUnavailable)

		_, err := newInitiator(f, gw).Initialize(ctx, billing.InitiateParams{TenantID: uuid.New(), Plan: "basic"})
		require.ErrorIs(t, err, billing.ErrGatewayUnavailable)

		pending, err := f.store.ListPending(ctx, f.now.Add(time.Hour), 0)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *gateway.Memory, *billing.Verifier, uuid.UUID, string) {
		t.Helper()
		f := newFixture(t)
		gw := gateway.NewMemory("")
		tenantID := uuid.New()
		out, err := newInitiator(f, gw).Initialize(ctx, billing.InitiateParams{TenantID: tenantID, Plan: "basic"})
		require.NoError(t, err)
		return f, gw, billing.NewVerifier(f.store, gw, f.rec, f.clock()), tenantID, out.Reference
	}

	t.Run("confirmed payment activates the plan", func(t *testing.T) {
		t.Parallel()
		f, gw, v, tenantID, ref := setup(t)
		gw.Settle(ref, gateway.StatusSuccess, 0, "")

		out, err := v.Verify(ctx, tenantID, ref)
		require.NoError(t, err)
		assert.Equal(t, billing.TxSuccess, out.Status)
		assert.False(t, out.Duplicate)
		assert.Equal(t, "basic", out.Subscription.Plan)
		assert.Equal(t, f.now.Add(90*day), out.Subscription.ExpiryDate)

		again, err := v.Verify(ctx, tenantID, ref)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, out.Subscription, again.Subscription)
	})

	t.Run("unfinished payment leaves the ledger pending", func(t *testing.T) {
		t.Parallel()
		f, _, v, tenantID, ref := setup(t)

		_, err := v.Verify(ctx, tenantID, ref)
		require.ErrorIs(t, err, billing.ErrPaymentNotCompleted)

		tx, err := f.store.Find(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, billing.TxPending, tx.Status)
	})

	t.Run("gateway outage leaves the ledger pending", func(t *testing.T) {
		t.Parallel()
		f, gw, v, tenantID, ref := setup(t)
		gw.Settle(ref, gateway.StatusSuccess, 0, "")
		gw.FailNext(gateway.ErrUnavailable)

		_, err := v.Verify(ctx, tenantID, ref)
		require.ErrorIs(t, err, billing.ErrGatewayUnavailable)

		tx, err := f.store.Find(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, billing.TxPending, tx.Status)
	})

	t.Run("gateway-reported amount is enforced", func(t *testing.T) {
		t.Parallel()
		f, gw, v, tenantID, ref := setup(t)
		gw.Settle(ref, gateway.StatusSuccess, 100, "")

		_, err := v.Verify(ctx, tenantID, ref)
		require.ErrorIs(t, err, billing.ErrAmountMismatch)

		tx, err := f.store.Find(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, billing.TxFailed, tx.Status)

		sub, err := f.subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, "free", sub.Plan)
	})

	t.Run("other tenants and unknown references are not found", func(t *testing.T) {
		t.Parallel()
		_, _, v, _, ref := setup(t)

		_, err := v.Verify(ctx, uuid.New(), ref)
		assert.ErrorIs(t, err, billing.ErrNotFound)

		_, err = v.Verify(ctx, uuid.New(), "ref_missing")
		assert.ErrorIs(t, err, billing.ErrNotFound)
	})
}
