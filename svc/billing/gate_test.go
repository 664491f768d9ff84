package billing_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/limits"
	"github.com/dmitrymomot/schoolpay/pkg/tenant"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

// usage is a fixed per-resource count keyed by tenant.
type usage map[limits.Resource]int64

func newGate(f *fixture, counts map[uuid.UUID]usage) *billing.Gate {
	reg := limits.NewRegistry()
	for _, res := range limits.Resources() {
		reg.Register(res, func(_ context.Context, tenantID uuid.UUID) (int64, error) {
			return counts[tenantID][res], nil
		})
	}
	return billing.NewGate(f.subs, f.catalog, reg, f.clock())
}

func TestGate_CheckQuota(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("basic plan student boundary", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		full, room := uuid.New(), uuid.New()
		for _, id := range []uuid.UUID{full, room} {
			f.seed(t, id, "basic", billing.StatusActive, f.now, f.now.Add(90*day))
		}
		gate := newGate(f, map[uuid.UUID]usage{
			full: {limits.ResourceStudents: 300},
			room: {limits.ResourceStudents: 299},
		})

		err := gate.CheckQuota(ctx, full, limits.ResourceStudents)
		var quotaErr *billing.QuotaError
		require.ErrorAs(t, err, &quotaErr)
		assert.ErrorIs(t, err, billing.ErrQuotaExceeded)
		assert.Equal(t, limits.ResourceStudents, quotaErr.Resource)
		assert.Equal(t, int64(300), quotaErr.Current)
		assert.Equal(t, int64(300), quotaErr.Limit)

		assert.NoError(t, gate.CheckQuota(ctx, room, limits.ResourceStudents))
	})

	t.Run("unlimited plan never counts against a limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := uuid.New()
		f.seed(t, id, "premium", billing.StatusActive, f.now, f.now.Add(365*day))
		gate := newGate(f, map[uuid.UUID]usage{id: {limits.ResourceStudents: 1_000_000}})

		assert.NoError(t, gate.CheckQuota(ctx, id, limits.ResourceStudents))
	})

	t.Run("lapsed subscription falls back to free limits", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := uuid.New()
		f.seed(t, id, "basic", billing.StatusActive, f.now.Add(-100*day), f.now.Add(-day))
		gate := newGate(f, map[uuid.UUID]usage{id: {limits.ResourceStudents: 50}})

		err := gate.CheckQuota(ctx, id, limits.ResourceStudents)
		var quotaErr *billing.QuotaError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, int64(50), quotaErr.Limit)
	})

	t.Run("counter failure is surfaced", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		reg := limits.NewRegistry()
		reg.Register(limits.ResourceTeachers, func(context.Context, uuid.UUID) (int64, error) {
			return 0, errors.New("db down")
		})
		gate := billing.NewGate(f.subs, f.catalog, reg, f.clock())

		err := gate.CheckQuota(ctx, uuid.New(), limits.ResourceTeachers)
		assert.ErrorIs(t, err, limits.ErrFailedToCountResourceUsage)
	})
}

func TestGate_CheckStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := uuid.New()
	f.seed(t, id, "basic", billing.StatusActive, f.now, f.now.Add(90*day))

	limit := int64(10 << 30)
	gate := newGate(f, map[uuid.UUID]usage{id: {limits.ResourceStorageBytes: limit - 100}})

	assert.NoError(t, gate.CheckStorage(ctx, id, 100))
	assert.ErrorIs(t, gate.CheckStorage(ctx, id, 101), billing.ErrQuotaExceeded)
	assert.ErrorIs(t, gate.CheckStorage(ctx, id, -1), billing.ErrValidation)

	t.Run("declared size near int64 max is rejected", func(t *testing.T) {
		t.Parallel()
		half := newGate(f, map[uuid.UUID]usage{id: {limits.ResourceStorageBytes: 5 << 30}})

		err := half.CheckStorage(ctx, id, math.MaxInt64)
		var quotaErr *billing.QuotaError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, limits.ResourceStorageBytes, quotaErr.Resource)
		assert.Equal(t, limit, quotaErr.Limit)
		assert.ErrorIs(t, half.CheckStorage(ctx, id, 20<<30), billing.ErrQuotaExceeded)
	})

	t.Run("storage quota by resource name", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, gate.CheckQuota(ctx, id, limits.Resource("storageBytes")))
	})

	t.Run("unknown resource is a validation error", func(t *testing.T) {
		t.Parallel()
		err := gate.CheckQuota(ctx, id, limits.Resource("storage_bytes"))
		assert.ErrorIs(t, err, billing.ErrValidation)
		assert.NotErrorIs(t, err, billing.ErrQuotaExceeded)
	})
}

func TestGate_RequireFeature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("active plan grants its features", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := uuid.New()
		f.seed(t, id, "standard", billing.StatusActive, f.now, f.now.Add(180*day))
		gate := newGate(f, nil)

		assert.NoError(t, gate.RequireFeature(ctx, id, "ai_generation"))
		assert.NoError(t, gate.RequireFeature(ctx, id, "attendance"))
	})

	t.Run("missing feature names the cheapest plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := uuid.New()
		f.seed(t, id, "basic", billing.StatusActive, f.now, f.now.Add(90*day))
		gate := newGate(f, nil)

		err := gate.RequireFeature(ctx, id, "ai_generation")
		var featureErr *billing.FeatureError
		require.ErrorAs(t, err, &featureErr)
		assert.ErrorIs(t, err, billing.ErrFeatureNotLicensed)
		assert.Equal(t, "ai_generation", featureErr.Capability)
		assert.Equal(t, "standard", featureErr.RequiredPlan)
	})

	t.Run("expired plan reports an inactive subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := uuid.New()
		f.seed(t, id, "standard", billing.StatusActive, f.now.Add(-200*day), f.now.Add(-time.Second))
		gate := newGate(f, nil)

		err := gate.RequireFeature(ctx, id, "ai_generation")
		assert.ErrorIs(t, err, billing.ErrSubscriptionInactive)

		assert.NoError(t, gate.RequireFeature(ctx, id, "attendance"))
	})

	t.Run("tenant without a subscription gets the free plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		gate := newGate(f, nil)
		id := uuid.New()

		ent, err := gate.Entitlements(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "free", ent.Plan)
		assert.Equal(t, billing.StatusInactive, ent.Status)
		assert.False(t, ent.Active)
		assert.Equal(t, []string{"attendance"}, ent.Features)
		assert.Equal(t, int64(50), ent.Limits[limits.ResourceStudents])

		assert.NoError(t, gate.RequireFeature(ctx, id, "attendance"))
		assert.ErrorIs(t, gate.RequireFeature(ctx, id, "messaging"), billing.ErrFeatureNotLicensed)
		assert.ErrorIs(t, gate.RequireFeature(ctx, id, "teleportation"), billing.ErrFeatureNotLicensed)
	})
}

func TestGate_Usage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := uuid.New()
	f.seed(t, id, "basic", billing.StatusActive, f.now, f.now.Add(90*day))

	reg := limits.NewRegistry()
	reg.Register(limits.ResourceStudents, func(context.Context, uuid.UUID) (int64, error) { return 120, nil })
	gate := billing.NewGate(f.subs, f.catalog, reg, f.clock())

	got, err := gate.Usage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, map[limits.Resource]limits.UsageInfo{
		limits.ResourceStudents: {Current: 120, Limit: 300},
	}, got)
}

func TestGate_Middleware(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	basic := uuid.New()
	f.seed(t, basic, "basic", billing.StatusActive, f.now, f.now.Add(90*day))
	gate := newGate(f, map[uuid.UUID]usage{basic: {limits.ResourceTeachers: 30}})

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(mw func(http.Handler) http.Handler, id uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if id != uuid.Nil {
			req = req.WithContext(tenant.WithTenant(req.Context(), &tenant.Tenant{ID: id}))
		}
		rec := httptest.NewRecorder()
		mw(ok).ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name   string
		mw     func(http.Handler) http.Handler
		tenant uuid.UUID
		status int
		code   string
	}{
		{"licensed feature passes", gate.FeatureMiddleware("messaging"), basic, http.StatusNoContent, ""},
		{"unlicensed feature", gate.FeatureMiddleware("video"), basic, http.StatusForbidden, "upgrade_required"},
		{"quota reached", gate.QuotaMiddleware(limits.ResourceTeachers), basic, http.StatusForbidden, "quota_exceeded"},
		{"quota available", gate.QuotaMiddleware(limits.ResourceStudents), basic, http.StatusNoContent, ""},
		{"no tenant in context", gate.FeatureMiddleware("messaging"), uuid.Nil, http.StatusUnauthorized, "missing_tenant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(tt.mw, tt.tenant)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
			}
		})
	}

	t.Run("denial carries the required plan", func(t *testing.T) {
		t.Parallel()
		rec := serve(gate.FeatureMiddleware("video"), basic)
		detail := decodeError(t, rec)
		assert.Equal(t, []string{"standard"}, detail.Details["required_plan"])
		assert.Equal(t, []string{"video"}, detail.Details["capability"])
	})
}
