// Package metrics exposes Prometheus instrumentation for the billing service.
//
// All Observe* methods are safe to call on a nil *Metrics, so components can
// take an optional metrics dependency without guarding every call site.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/schoolpay/pkg/gateway"
)

const namespace = "schoolpay"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ClaimsTotal      *prometheus.CounterVec
	ActivationsTotal *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	DenialsTotal     *prometheus.CounterVec

	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_claims_total",
				Help:      "Ledger claim attempts by resulting status and whether the caller won the claim",
			},
			[]string{"status", "claimed"},
		),
		ActivationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_activations_total",
				Help:      "Subscription activations by plan and period mode (extend or reset)",
			},
			[]string{"plan", "mode"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_rejections_total",
				Help:      "Confirmations rejected before activation",
			},
			[]string{"reason"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Webhook deliveries by processing result",
			},
			[]string{"result"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entitlement_denials_total",
				Help:      "Feature and quota checks that denied access",
			},
			[]string{"kind", "name"},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Payment gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Payment gateway call duration in seconds, per attempt",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ClaimsTotal,
		m.ActivationsTotal,
		m.RejectionsTotal,
		m.WebhookEvents,
		m.DenialsTotal,
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveClaim(status string, claimed bool) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(status, strconv.FormatBool(claimed)).Inc()
}

func (m *Metrics) ObserveActivation(plan string, extended bool) {
	if m == nil {
		return
	}
	mode := "reset"
	if extended {
		mode = "extend"
	}
	m.ActivationsTotal.WithLabelValues(plan, mode).Inc()
}

func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDenial(kind, name string) {
	if m == nil {
		return
	}
	m.DenialsTotal.WithLabelValues(kind, name).Inc()
}

// ObserveGatewayCall matches the gateway observer signature.
func (m *Metrics) ObserveGatewayCall(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	var result string
	switch {
	case err == nil:
		result = "ok"
	case errors.Is(err, gateway.ErrUnavailable):
		result = "unavailable"
	case errors.Is(err, gateway.ErrNotFound):
		result = "not_found"
	case errors.Is(err, gateway.ErrRejected), errors.Is(err, gateway.ErrInvalidIntent):
		result = "rejected"
	default:
		result = "error"
	}
	m.GatewayRequestsTotal.WithLabelValues(operation, result).Inc()
	m.GatewayRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request count and latency labelled by chi route pattern.
// Unmatched requests are labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
