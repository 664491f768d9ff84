package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// JSONResponse is the envelope every JSON body is rendered in. Exactly one of
// Data and Error is set.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the error half of the envelope. Code is stable and meant for
// clients to branch on; Message is for humans.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type JSONOption func(*jsonResponse)

// WithJSONStatus overrides the status derived from the payload.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		if status > 0 {
			r.status = status
		}
	}
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		if len(meta) == 0 {
			return
		}
		if r.body.Meta == nil {
			r.body.Meta = make(map[string]any, len(meta))
		}
		maps.Copy(r.body.Meta, meta)
	}
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON renders v as data with 200. An error or *ErrorDetail is rendered the
// way JSONError would, and a ready-made JSONResponse is sent as is.
func JSON(v any, opts ...JSONOption) Response {
	switch val := v.(type) {
	case error, *ErrorDetail:
		return JSONError(val, opts...)
	case JSONResponse:
		return build(http.StatusOK, val, opts)
	default:
		return build(http.StatusOK, JSONResponse{Data: v}, opts)
	}
}

// JSONError renders err in the error envelope. ValidationError answers 422
// with per-field details, HTTPError answers its own code, anything else 500
// without leaking the message. A bare *ErrorDetail defaults to 500.
func JSONError(err any, opts ...JSONOption) Response {
	status := http.StatusInternalServerError
	var detail *ErrorDetail

	switch e := err.(type) {
	case *ErrorDetail:
		detail = e
	case error:
		status, detail = describe(e)
	default:
		detail = &ErrorDetail{Code: ErrInternalServerError.Key, Message: http.StatusText(status)}
	}
	return build(status, JSONResponse{Error: detail}, opts)
}

func build(status int, body JSONResponse, opts []JSONOption) Response {
	r := &jsonResponse{status: status, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func describe(err error) (int, *ErrorDetail) {
	var valErr ValidationError
	if errors.As(err, &valErr) {
		detail := &ErrorDetail{Code: "validation_error", Message: valErr.Error()}
		if !valErr.IsEmpty() {
			detail.Details = maps.Clone(map[string][]string(valErr))
		}
		return http.StatusUnprocessableEntity, detail
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, &ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}
	}

	return http.StatusInternalServerError, &ErrorDetail{
		Code:    "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
