package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks transient failures: transport errors, timeouts,
	// 5xx and 429 responses, an open circuit. Safe to retry.
	ErrUnavailable = errors.New("gateway.errors.unavailable")
	// ErrRejected marks a definitive 4xx answer for the request.
	ErrRejected = errors.New("gateway.errors.rejected")
	// ErrNotFound means the provider does not know the reference.
	ErrNotFound = errors.New("gateway.errors.not_found")
	// ErrInvalidResponse means the provider answered with something we cannot decode.
	ErrInvalidResponse = errors.New("gateway.errors.invalid_response")
	// ErrInvalidEvent means a notification body could not be decoded.
	ErrInvalidEvent = errors.New("gateway.errors.invalid_event")
	// ErrCircuitOpen is joined with ErrUnavailable while the breaker is open.
	ErrCircuitOpen = errors.New("gateway.errors.circuit_open")
	// ErrInvalidConfig means a client was built without required settings.
	ErrInvalidConfig = errors.New("gateway.errors.invalid_config")
	// ErrInvalidIntent means required intent fields are missing.
	ErrInvalidIntent = errors.New("gateway.errors.invalid_intent")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// classifyTransport maps transport-level errors. Cancellation is kept as is
// so it is never retried; deadlines count as unavailability.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
