package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/schoolpay/pkg/binder"
)

// HandlerFunc handles a bound request of type R within a context of type C.
type HandlerFunc[C Context, R any] func(ctx C, req R) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind parses HTTP requests into typed values.
type Bind func(r *http.Request, v any) error

// ErrorHandler handles errors from binding or rendering.
type ErrorHandler[C Context] func(ctx C, err error)

// Decorator wraps a HandlerFunc to add cross-cutting functionality.
// The first decorator in a list is the outermost wrapper.
type Decorator[C Context, R any] func(HandlerFunc[C, R]) HandlerFunc[C, R]

// WrapOption tunes a single Wrap call.
type WrapOption[C Context, R any] func(*wrapSettings[C, R])

type wrapSettings[C Context, R any] struct {
	binders    []Bind
	onError    ErrorHandler[C]
	newContext func(http.ResponseWriter, *http.Request) C
	decorators []Decorator[C, R]
}

// WithBinders appends binders. They run in order and a binder that returns
// binder.ErrBinderNotApplicable is skipped.
func WithBinders[C Context, R any](binders ...Bind) WrapOption[C, R] {
	return func(s *wrapSettings[C, R]) { s.binders = append(s.binders, binders...) }
}

// WithErrorHandler replaces the default JSON error rendering. Nil is ignored.
func WithErrorHandler[C Context, R any](h ErrorHandler[C]) WrapOption[C, R] {
	return func(s *wrapSettings[C, R]) {
		if h != nil {
			s.onError = h
		}
	}
}

// WithContextFactory is required when C is not Context itself.
func WithContextFactory[C Context, R any](f func(http.ResponseWriter, *http.Request) C) WrapOption[C, R] {
	return func(s *wrapSettings[C, R]) {
		if f != nil {
			s.newContext = f
		}
	}
}

// WithDecorators wraps the handler; the first decorator runs outermost.
func WithDecorators[C Context, R any](decorators ...Decorator[C, R]) WrapOption[C, R] {
	return func(s *wrapSettings[C, R]) { s.decorators = append(s.decorators, decorators...) }
}

// Endpoint is shorthand for the common pairing of an error handler with a
// binder chain.
func Endpoint[C Context, R any](onError ErrorHandler[C], binders ...Bind) WrapOption[C, R] {
	return func(s *wrapSettings[C, R]) {
		WithErrorHandler[C, R](onError)(s)
		WithBinders[C, R](binders...)(s)
	}
}

// defaultErrorHandler renders err with the JSON error envelope.
func defaultErrorHandler[C Context](ctx C, err error) {
	_ = JSONError(classifyError(err)).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap converts a typed HandlerFunc to http.HandlerFunc.
//
//	r.Get("/plans", handler.Wrap(listPlans))
//
//	r.Put("/tenants/{tenantID}/subscription", handler.Wrap(override,
//		handler.Endpoint[handler.Context, OverrideRequest](errHandler, binder.Path(chi.URLParam), binder.JSON()),
//	))
//
// A custom C requires WithContextFactory; Wrap panics at setup otherwise.
func Wrap[C Context, R any](h HandlerFunc[C, R], opts ...WrapOption[C, R]) http.HandlerFunc {
	s := &wrapSettings[C, R]{onError: defaultErrorHandler[C]}
	for _, opt := range opts {
		opt(s)
	}
	if s.newContext == nil {
		if _, ok := NewContext(nil, &http.Request{}).(C); !ok {
			panic("handler: custom context type needs WithContextFactory")
		}
		s.newContext = func(w http.ResponseWriter, r *http.Request) C {
			return NewContext(w, r).(C)
		}
	}

	for i := len(s.decorators) - 1; i >= 0; i-- {
		h = s.decorators[i](h)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newContext(w, r)

		req, err := bindAll[R](r, s.binders)
		if err == nil {
			err = render(h(ctx, req), w, r)
		}
		if err != nil {
			s.onError(ctx, err)
		}
	}
}

func render(resp Response, w http.ResponseWriter, r *http.Request) error {
	if resp == nil {
		return ErrNilResponse
	}
	return resp.Render(w, r)
}

// bindAll runs binders in order, skipping those that do not apply.
func bindAll[R any](r *http.Request, binders []Bind) (R, error) {
	var req R
	for _, bind := range binders {
		err := bind(r, &req)
		if err != nil && !errors.Is(err, binder.ErrBinderNotApplicable) {
			return req, err
		}
	}
	return req, nil
}
