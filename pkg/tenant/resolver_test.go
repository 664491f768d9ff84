package tenant_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/tenant"
)

func TestSubdomainResolver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		suffix string
		host   string
		want   string
	}{
		{"with suffix", ".schoolpay.app", "greenfield.schoolpay.app", "greenfield"},
		{"with suffix and port", ".schoolpay.app", "greenfield.schoolpay.app:8080", "greenfield"},
		{"base domain", ".schoolpay.app", "schoolpay.app", ""},
		{"www with suffix", ".schoolpay.app", "www.greenfield.schoolpay.app", "greenfield"},
		{"bare www", ".schoolpay.app", "www.schoolpay.app", ""},
		{"foreign domain", ".schoolpay.app", "greenfield.example.com", ""},
		{"uppercase host", ".schoolpay.app", "GreenField.SchoolPay.app", "greenfield"},
		{"no suffix three labels", "", "greenfield.example.com", "greenfield"},
		{"no suffix two labels", "", "example.com", ""},
		{"no suffix www", "", "www.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host

			got, err := tenant.NewSubdomainResolver(tt.suffix).Resolve(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderResolver(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "  greenfield ")

	got, err := tenant.NewHeaderResolver("").Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "greenfield", got)
}

func TestCompositeResolver(t *testing.T) {
	t.Parallel()

	failing := tenant.ResolverFunc(func(*http.Request) (string, error) {
		return "", errors.New("session store down")
	})

	t.Run("first non-empty wins", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "greenfield.schoolpay.app"
		req.Header.Set("X-Tenant-ID", "from-header")

		got, err := tenant.NewCompositeResolver(
			failing,
			tenant.NewHeaderResolver("X-Tenant-ID"),
			tenant.NewSubdomainResolver(".schoolpay.app"),
		).Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "from-header", got)
	})

	t.Run("errors surface when nothing resolves", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := tenant.NewCompositeResolver(failing, tenant.NewHeaderResolver("")).Resolve(req)
		assert.ErrorContains(t, err, "session store down")
	})
}
