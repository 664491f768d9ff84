package billing_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/limits"
	"github.com/dmitrymomot/schoolpay/svc/billing"
)

func TestCatalog_Lookup(t *testing.T) {
	t.Parallel()
	c := billing.DefaultCatalog()

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()
		p, err := c.Lookup("Basic")
		require.NoError(t, err)
		assert.Equal(t, "basic", p.Name)
		assert.Equal(t, int64(50000), p.PriceMinorUnits)
		assert.Equal(t, 90, p.BillingPeriodDays)
		assert.Equal(t, int64(300), p.Limit(limits.ResourceStudents))
	})

	t.Run("unknown plan is never defaulted", func(t *testing.T) {
		t.Parallel()
		_, err := c.Lookup("platinum")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})

	t.Run("returns copies", func(t *testing.T) {
		t.Parallel()
		p, err := c.Lookup("basic")
		require.NoError(t, err)
		p.Features[0] = "tampered"

		again, err := c.Lookup("basic")
		require.NoError(t, err)
		assert.Equal(t, "attendance", again.Features[0])
	})

	t.Run("plans are ordered by price", func(t *testing.T) {
		t.Parallel()
		var names []string
		for _, p := range c.Plans() {
			names = append(names, p.Name)
		}
		assert.Equal(t, []string{"free", "basic", "standard", "premium"}, names)
		assert.Equal(t, "free", c.Free().Name)
	})

	t.Run("cheapest plan with a feature", func(t *testing.T) {
		t.Parallel()
		p, ok := c.CheapestWithFeature("ai_generation")
		require.True(t, ok)
		assert.Equal(t, "standard", p.Name)

		_, ok = c.CheapestWithFeature("teleportation")
		assert.False(t, ok)
	})

	t.Run("premium is unlimited", func(t *testing.T) {
		t.Parallel()
		p, err := c.Lookup("premium")
		require.NoError(t, err)
		assert.Equal(t, limits.Unlimited, p.Limit(limits.ResourceStudents))
	})
}

const catalogYAML = `
free_plan: starter
plans:
  - name: starter
    currency: NGN
    max_students: 20
    max_teachers: 2
    max_storage_bytes: 1000
    features: [attendance]
  - name: Growth
    price: 75000
    currency: ngn
    billing_period_days: 30
    max_students: 500
    max_teachers: -1
    max_storage_bytes: 100000
    features: [attendance, messaging]
`

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	t.Run("valid catalog", func(t *testing.T) {
		t.Parallel()
		c, err := billing.ParseCatalog([]byte(catalogYAML))
		require.NoError(t, err)

		assert.Equal(t, "starter", c.Free().Name)
		p, err := c.Lookup("growth")
		require.NoError(t, err)
		assert.Equal(t, "NGN", p.Currency)
		assert.Equal(t, int64(75000), p.PriceMinorUnits)
		assert.Equal(t, limits.Unlimited, p.MaxTeachers)
		assert.True(t, p.HasFeature("messaging"))
	})

	t.Run("load from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

		c, err := billing.LoadCatalogFile(path)
		require.NoError(t, err)
		assert.Len(t, c.Plans(), 2)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := billing.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "plans: [unterminated"},
		{"no plans", "free_plan: free\nplans: []"},
		{"free plan missing", "free_plan: free\nplans:\n  - {name: basic, price: 100, currency: NGN, billing_period_days: 30}"},
		{"invalid currency", "plans:\n  - {name: free, currency: NAIRA}"},
		{"paid plan without period", "plans:\n  - {name: free, currency: NGN}\n  - {name: basic, price: 100, currency: NGN}"},
		{"negative price", "plans:\n  - {name: free, currency: NGN, price: -1}"},
		{"duplicate names", "plans:\n  - {name: free, currency: NGN}\n  - {name: FREE, currency: NGN}"},
		{"limit below unlimited", "plans:\n  - {name: free, currency: NGN, max_students: -2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := billing.ParseCatalog([]byte(tt.yaml))
			assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
		})
	}
}

func TestSubscription_EffectiveStatus(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status billing.SubscriptionStatus
		expiry time.Time
		active bool
		want   billing.SubscriptionStatus
	}{
		{"active before expiry", billing.StatusActive, now.Add(time.Second), true, billing.StatusActive},
		{"active at expiry", billing.StatusActive, now, false, billing.StatusExpired},
		{"active after expiry", billing.StatusActive, now.Add(-time.Hour), false, billing.StatusExpired},
		{"cancelled with future expiry", billing.StatusCancelled, now.Add(time.Hour), false, billing.StatusCancelled},
		{"inactive", billing.StatusInactive, time.Time{}, false, billing.StatusInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := billing.Subscription{Status: tt.status, ExpiryDate: tt.expiry}
			assert.Equal(t, tt.active, sub.EffectiveActive(now))
			assert.Equal(t, tt.want, sub.EffectiveStatus(now))
		})
	}
}

func TestConfig_Catalog(t *testing.T) {
	t.Parallel()

	t.Run("built-in plans", func(t *testing.T) {
		t.Parallel()
		c, err := billing.Config{FreePlan: "free"}.Catalog()
		require.NoError(t, err)
		assert.Len(t, c.Plans(), 4)
		assert.Equal(t, "free", c.Free().Name)
	})

	t.Run("file without free_plan uses configured one", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - name: trial
    currency: NGN
    max_students: 10
    max_teachers: 1
    max_storage_bytes: 1000
  - name: pro
    price: 10000
    currency: NGN
    billing_period_days: 30
    max_students: 100
    max_teachers: 10
    max_storage_bytes: 100000
`), 0o600))

		c, err := billing.Config{PlansFile: path, FreePlan: "trial"}.Catalog()
		require.NoError(t, err)
		assert.Equal(t, "trial", c.Free().Name)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := billing.Config{PlansFile: filepath.Join(t.TempDir(), "nope.yaml")}.Catalog()
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})
}
