package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxBodySize bounds how much of a notification body is read.
const DefaultMaxBodySize int64 = 1 << 20

// Algorithm selects the HMAC hash function.
type Algorithm string

const (
	SHA512 Algorithm = "sha512"
	SHA256 Algorithm = "sha256"
)

func (a Algorithm) hasher() (func() hash.Hash, error) {
	switch a {
	case SHA512, "":
		return sha512.New, nil
	case SHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfiguration, a)
	}
}

// Sign returns the lowercase hex HMAC of payload.
func Sign(alg Algorithm, secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	newHash, err := alg.hasher()
	if err != nil {
		return "", err
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyPayload recomputes the signature over the raw payload and compares it
// with the delivered one in constant time.
func VerifyPayload(alg Algorithm, secret string, payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	expected, err := Sign(alg, secret, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// Verifier authenticates a notification given its already-read body.
type Verifier interface {
	Verify(r *http.Request, body []byte) error
}

// HMACVerifier checks a hex HMAC carried in a single header.
type HMACVerifier struct {
	Header    string
	Secret    string
	Algorithm Algorithm
}

// NewHMACVerifier panics on an empty secret or header so a misconfigured
// receiver never starts.
func NewHMACVerifier(header, secret string, alg Algorithm) HMACVerifier {
	if header == "" || secret == "" {
		panic("webhook: header and secret are required")
	}
	if _, err := alg.hasher(); err != nil {
		panic(err)
	}
	return HMACVerifier{Header: header, Secret: secret, Algorithm: alg}
}

func (v HMACVerifier) Verify(r *http.Request, body []byte) error {
	return VerifyPayload(v.Algorithm, v.Secret, body, r.Header.Get(v.Header))
}

// ReadBody reads at most limit bytes of the request body. Bodies over the
// limit fail with ErrPayloadTooLarge instead of being truncated.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrEmptyPayload
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, errors.Join(ErrEmptyPayload, err)
	}
	if int64(len(body)) > limit {
		return nil, ErrPayloadTooLarge
	}
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}
	return body, nil
}
