package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/schoolpay/pkg/httpserver"
	"github.com/dmitrymomot/schoolpay/pkg/requestid"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which parts of the service are mounted.
// Each part is optional and will only be mounted if provided.
type RouterOptions struct {
	Billing Mountable // tenant-facing billing API and gateway webhook
	Admin   Mountable // privileged subscription edits

	// Metrics exposes the Prometheus registry at /metrics.
	Metrics http.Handler
	// Ready reports dependency health at /health/ready.
	Ready http.Handler

	// Middleware runs after request id assignment and panic recovery.
	Middleware []func(http.Handler) http.Handler
}

// Router creates the service root router.
//
// Example:
//
//	r := api.Router(api.RouterOptions{
//	    Billing: &billing.API{...},
//	    Admin:   &billing.AdminAPI{...},
//	    Metrics: m.Handler(),
//	    Ready:   httpserver.ReadinessHandler(log, 2*time.Second, pg.Healthcheck(pool)),
//	})
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, requestid.Middleware, middleware.Recoverer)
	r.Use(opts.Middleware...)

	r.Get("/health/live", httpserver.LivenessHandler())
	if opts.Ready != nil {
		r.Method(http.MethodGet, "/health/ready", opts.Ready)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	if opts.Billing != nil {
		r.Mount("/billing", opts.Billing.Handle())
	}
	if opts.Admin != nil {
		r.Mount("/admin", opts.Admin.Handle())
	}

	return r
}
