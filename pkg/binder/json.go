package binder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONSize caps JSON bodies read by JSON().
const DefaultMaxJSONSize int64 = 1 << 20

// JSON binds a strict JSON body: unknown fields, trailing data and bodies over
// DefaultMaxJSONSize are rejected. Requests without a body are
// ErrBinderNotApplicable.
func JSON() func(r *http.Request, v any) error {
	return JSONLimit(DefaultMaxJSONSize)
}

// JSONLimit is JSON with a custom body cap in bytes.
func JSONLimit(maxBytes int64) func(r *http.Request, v any) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxJSONSize
	}
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.Body == http.NoBody {
			return ErrBinderNotApplicable
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, ct)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		switch {
		case err != nil:
			return fmt.Errorf("%w: read body: %v", ErrInvalidJSON, err)
		case int64(len(body)) > maxBytes:
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxBytes)
		case len(bytes.TrimSpace(body)) == 0:
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if dec.More() {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}
		return nil
	}
}
