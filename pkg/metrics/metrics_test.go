package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/metrics"
)

func TestObservers(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	m.ObserveClaim("success", true)
	m.ObserveClaim("success", false)
	m.ObserveClaim("success", false)
	m.ObserveActivation("basic", true)
	m.ObserveRejection("amount_mismatch")
	m.ObserveWebhook("duplicate")
	m.ObserveDenial("quota", "student")
	m.ObserveGatewayCall("fetch_status", errors.Join(gateway.ErrUnavailable, errors.New("timeout")), 10*time.Millisecond)
	m.ObserveGatewayCall("fetch_status", nil, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("success", "true")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("success", "false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActivationsTotal.WithLabelValues("basic", "extend")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("amount_mismatch")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("duplicate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DenialsTotal.WithLabelValues("quota", "student")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GatewayRequestsTotal.WithLabelValues("fetch_status", "unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GatewayRequestsTotal.WithLabelValues("fetch_status", "ok")), 0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveClaim("failed", true)
		m.ObserveActivation("basic", false)
		m.ObserveRejection("currency_mismatch")
		m.ObserveWebhook("processed")
		m.ObserveDenial("feature", "ai_generation")
		m.ObserveGatewayCall("create_intent", nil, time.Second)
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/billing/verify/{reference}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	r.Handle("/metrics", m.Handler())

	for _, ref := range []string{"ref_1", "ref_2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/billing/verify/"+ref, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/billing/verify/{reference}", "402")), 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "schoolpay_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
