// Package handler provides typed HTTP handlers with a JSON response envelope.
//
// A HandlerFunc receives a Context and a bound request value and returns a
// Response. Wrap turns it into an http.HandlerFunc, running the configured
// binders first and routing binding or rendering failures to an ErrorHandler:
//
//	type InitiateRequest struct {
//		Plan  string `json:"plan"`
//		Email string `json:"email"`
//	}
//
//	func initiate(ctx handler.Context, req InitiateRequest) handler.Response {
//		res, err := svc.Initialize(ctx, req.Plan, req.Email)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(res, handler.WithJSONStatus(http.StatusCreated))
//	}
//
//	r.Post("/initiate", handler.Wrap(initiate,
//		handler.WithBinders[handler.Context, InitiateRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, InitiateRequest](handler.NewErrorHandler(log)),
//	))
//
// Every JSON body uses the same envelope:
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "...", "details": {...}}}
//
// HTTPError carries a status code and a stable machine-readable key.
// ValidationError carries per-field messages and renders as 422.
package handler
