package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/audit"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Store(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestLogger_Log(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("populates event from context and options", func(t *testing.T) {
		t.Parallel()
		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage,
			audit.WithTenantIDExtractor(func(context.Context) (string, bool) { return "tenant-1", true }),
			audit.WithRequestIDExtractor(func(context.Context) (string, bool) { return "req-1", true }),
			audit.WithActorExtractor(func(context.Context) (string, bool) { return "", false }),
			audit.WithClock(func() time.Time { return fixed }),
		)

		err := log.Log(context.Background(), "billing.subscription.activated",
			audit.WithResource("subscription", "tenant-1"),
			audit.WithMetadata("plan", "basic"),
			audit.WithActor("gateway"),
		)
		require.NoError(t, err)

		events, err := storage.Query(context.Background(), audit.Criteria{})
		require.NoError(t, err)
		require.Len(t, events, 1)

		e := events[0]
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "tenant-1", e.TenantID)
		assert.Equal(t, "req-1", e.RequestID)
		assert.Equal(t, "gateway", e.ActorID)
		assert.Equal(t, audit.ResultSuccess, e.Result)
		assert.Equal(t, "subscription", e.Resource)
		assert.Equal(t, "basic", e.Metadata["plan"])
		assert.Equal(t, fixed, e.CreatedAt)
	})

	t.Run("explicit tenant overrides extractor", func(t *testing.T) {
		t.Parallel()
		storage := &mockStorage{}
		storage.On("Store", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
			return e.TenantID == "tenant-2" && e.Action == "billing.transaction.claimed"
		})).Return(nil).Once()

		log := audit.NewLogger(storage,
			audit.WithTenantIDExtractor(func(context.Context) (string, bool) { return "tenant-1", true }),
		)
		require.NoError(t, log.Log(context.Background(), "billing.transaction.claimed", audit.WithTenantID("tenant-2")))
		storage.AssertExpectations(t)
	})

	t.Run("log error records message", func(t *testing.T) {
		t.Parallel()
		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage)

		require.NoError(t, log.LogError(context.Background(), "billing.webhook.signature_rejected", errors.New("signature mismatch")))

		events, err := storage.Query(context.Background(), audit.Criteria{Action: "billing.webhook.signature_rejected"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ResultError, events[0].Result)
		assert.Equal(t, "signature mismatch", events[0].Error)
	})

	t.Run("rejects empty action", func(t *testing.T) {
		t.Parallel()
		storage := &mockStorage{}
		log := audit.NewLogger(storage)

		err := log.Log(context.Background(), "")
		assert.ErrorIs(t, err, audit.ErrEventValidation)
		storage.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})

	t.Run("propagates storage errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk full")
		storage := &mockStorage{}
		storage.On("Store", mock.Anything, mock.Anything).Return(boom)

		err := audit.NewLogger(storage).Log(context.Background(), "billing.transaction.abandoned")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil storage panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { audit.NewLogger(nil) })
	})
}

func TestMemoryStorage_Query(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	storage := audit.NewMemoryStorage()
	require.NoError(t, storage.StoreBatch(ctx, []audit.Event{
		{ID: "1", TenantID: "a", Action: "billing.transaction.initiated", ResourceID: "ref_1", Result: audit.ResultSuccess, CreatedAt: base},
		{ID: "2", TenantID: "a", Action: "billing.transaction.claimed", ResourceID: "ref_1", Result: audit.ResultSuccess, CreatedAt: base.Add(time.Minute)},
		{ID: "3", TenantID: "b", Action: "billing.transaction.claimed", ResourceID: "ref_2", Result: audit.ResultSuccess, CreatedAt: base.Add(2 * time.Minute)},
	}))

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "3", events[0].ID)
	})

	t.Run("filters combine", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{TenantID: "a", ResourceID: "ref_1", Since: base.Add(time.Second)})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2", events[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{Action: "billing.transaction.claimed", Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "3", events[0].ID)
	})
}
