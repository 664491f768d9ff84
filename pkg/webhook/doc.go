// Package webhook authenticates inbound provider notifications.
//
// Providers sign the exact request body with a shared secret. The body must
// therefore be read once, verified as raw bytes, and only then decoded:
//
//	body, err := webhook.ReadBody(r, webhook.DefaultMaxBodySize)
//	if err := verifier.Verify(r, body); err != nil {
//		// reject without parsing
//	}
package webhook
