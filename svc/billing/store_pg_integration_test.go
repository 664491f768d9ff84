//go:build integration

package billing_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schoolpay/migrations"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/pg"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

func startPostgres(t *testing.T) *billing.PGStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("schoolpay_test"),
		postgres.WithUsername("schoolpay"),
		postgres.WithPassword("schoolpay"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString:  connStr,
		MaxOpenConns:      20,
		MaxIdleConns:      2,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   time.Hour,
		RetryAttempts:     5,
		RetryInterval:     time.Second,
		MigrationsTable:   "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, cfg, migrations.FS, logger.Nop()))
	return billing.NewPGStore(pg.NewTransactor(pool))
}

func TestPGStore(t *testing.T) {
	store := startPostgres(t)
	catalog := billing.DefaultCatalog()
	now := time.Now().UTC().Truncate(time.Microsecond)
	clock := billing.WithClock(func() time.Time { return now })
	subs := billing.NewSubscriptions(store, catalog, clock)
	rec := billing.NewReconciler(store, catalog, subs, clock)
	ctx := context.Background()

	pending := func(t *testing.T, tenantID uuid.UUID, createdAt time.Time) billing.Transaction {
		t.Helper()
		tx := billing.Transaction{
			Reference: "ref_" + uuid.NewString(),
			TenantID:  tenantID,
			Plan:      "basic",
			Amount:    50000,
			Currency:  "NGN",
			CreatedAt: createdAt,
		}
		require.NoError(t, store.CreatePending(ctx, tx))
		return tx
	}
	activate := func(tx billing.Transaction) (billing.Outcome, error) {
		return rec.Activate(ctx, billing.ActivateParams{
			TenantID:  tx.TenantID,
			Plan:      tx.Plan,
			Reference: tx.Reference,
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			Channel:   "card",
		})
	}

	t.Run("duplicate reference", func(t *testing.T) {
		tx := pending(t, uuid.New(), now)
		assert.ErrorIs(t, store.CreatePending(ctx, tx), billing.ErrDuplicateReference)

		_, err := store.Find(ctx, "ref_missing")
		assert.ErrorIs(t, err, billing.ErrTransactionNotFound)
	})

	t.Run("concurrent confirmations apply once", func(t *testing.T) {
		tenantID := uuid.New()
		tx := pending(t, tenantID, now)

		var applied atomic.Int32
		var g errgroup.Group
		for range 16 {
			g.Go(func() error {
				out, err := activate(tx)
				if err == nil && !out.Duplicate {
					applied.Add(1)
				}
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(1), applied.Load())

		sub, ok, err := store.Subscription(ctx, tenantID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, now.Add(90*day).Equal(sub.ExpiryDate))
		assert.Equal(t, tx.Reference, sub.LastPaymentReference)
		assert.ElementsMatch(t, []string{"attendance", "content_upload", "messaging"}, sub.Features)

		stored, err := store.Find(ctx, tx.Reference)
		require.NoError(t, err)
		assert.Equal(t, billing.TxSuccess, stored.Status)
		assert.Equal(t, "card", stored.Channel)
		require.NotNil(t, stored.PaidAt)
	})

	t.Run("distinct references serialize on the subscription row", func(t *testing.T) {
		tenantID := uuid.New()
		first, second := pending(t, tenantID, now), pending(t, tenantID, now)

		var g errgroup.Group
		for _, tx := range []billing.Transaction{first, second} {
			g.Go(func() error {
				_, err := activate(tx)
				return err
			})
		}
		require.NoError(t, g.Wait())

		sub, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.True(t, now.Add(180*day).Equal(sub.ExpiryDate))
	})

	t.Run("amount mismatch fails without touching the subscription", func(t *testing.T) {
		tenantID := uuid.New()
		tx := pending(t, tenantID, now)
		tx.Amount = 100

		_, err := activate(tx)
		require.ErrorIs(t, err, billing.ErrAmountMismatch)

		stored, err := store.Find(ctx, tx.Reference)
		require.NoError(t, err)
		assert.Equal(t, billing.TxFailed, stored.Status)
		assert.NotEmpty(t, stored.FailureReason)

		_, ok, err := store.Subscription(ctx, tenantID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list pending and abandon", func(t *testing.T) {
		tenantID := uuid.New()
		old := pending(t, tenantID, now.Add(-48*time.Hour))
		pending(t, tenantID, now)

		refs, err := billing.NewAbandoner(store, clock).Abandon(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Contains(t, refs, old.Reference)

		stored, err := store.Find(ctx, old.Reference)
		require.NoError(t, err)
		assert.Equal(t, billing.TxAbandoned, stored.Status)
	})

	t.Run("usage counters", func(t *testing.T) {
		n, err := store.CountStudents(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
