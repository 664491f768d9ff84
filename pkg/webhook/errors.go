package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrMissingSignature     = errors.New("webhook signature is missing")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
	ErrPayloadTooLarge      = errors.New("webhook payload too large")
	ErrEmptyPayload         = errors.New("webhook payload is empty")
)

// IsSignatureError reports whether err means the request is not authentic.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrMissingSignature) || errors.Is(err, ErrSignatureMismatch)
}
