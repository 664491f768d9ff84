// Package binder binds HTTP request data to typed request structs.
//
// Binders have the signature func(*http.Request, any) error and are passed to
// handler.Wrap through handler.WithBinders. Each binder only processes its own
// source:
//
//   - JSON(), JSONLimit(n): strict JSON bodies; unknown fields, trailing data
//     and oversized bodies are rejected
//   - Path(extractor): URL path parameters read through a router-specific extractor
//
// A binder that has nothing to read for a request returns ErrBinderNotApplicable,
// which handler.Wrap treats as a skip rather than a failure. This lets a single
// request type combine a JSON body with path parameters:
//
//	type OverrideRequest struct {
//	    TenantID uuid.UUID `path:"tenantID" json:"-"`
//	    Plan     string    `json:"plan"`
//	}
//
//	r.Put("/tenants/{tenantID}", handler.Wrap(h,
//	    handler.WithBinders[handler.Context, OverrideRequest](
//	        binder.Path(chi.URLParam),
//	        binder.JSON(),
//	    ),
//	))
//
// Path binds only fields carrying a path tag. Values are converted with
// strconv for basic kinds and through encoding.TextUnmarshaler for types such
// as uuid.UUID.
package binder
