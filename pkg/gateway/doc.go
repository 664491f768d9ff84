// Package gateway is the boundary to the external payment provider.
//
// A Client creates payment intents and fetches the provider's authoritative
// view of a transaction. Providers are untrusted and slow: Resilient wraps any
// Client with per-call timeouts, bounded retries with backoff and a circuit
// breaker, and classifies failures so callers can tell a transient outage
// (ErrUnavailable) from a definitive answer.
//
// Implementations:
//
//   - Paystack: REST client for the Paystack transaction API.
//   - Paddle: Paddle Billing through the official SDK.
//   - Memory: in-process fake for local runs and tests.
//
// Push notifications are normalized by an EventDecoder into Event values so
// the billing core sees a single canonical shape.
package gateway
