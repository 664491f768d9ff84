// Package billing turns payment-gateway confirmations into exactly-once
// changes of a tenant's subscription, and answers the feature and quota
// questions every other mutating operation asks.
//
// # Components
//
//   - Catalog: immutable plan table (built in code or loaded from YAML).
//   - Ledger: payment attempts keyed by gateway reference. Status leaves
//     pending only through TryClaim, an atomic compare-and-set.
//   - Reconciler: claims a reference and advances the subscription in one
//     store transaction. Redelivered confirmations are no-ops.
//   - Initiator, Verifier, WebhookReceiver: the three entry points of the
//     payment flow. Verify and the webhook may race; the claim decides.
//   - Gate: feature and quota checks, evaluated against the effective
//     status (active and not yet expired).
//   - Admin and Abandoner: privileged edits and cleanup of stale pending
//     transactions.
//
// # Period arithmetic
//
// A payment for the plan a tenant already holds, while still active,
// extends the current expiry by one billing period. Any other payment
// starts a fresh period at the time of reconciliation.
//
// # Wiring
//
//	store := billing.NewMemoryStore() // or billing.NewPGStore(pg.NewTransactor(pool))
//	catalog := billing.DefaultCatalog()
//	subs := billing.NewSubscriptions(store, catalog)
//	rec := billing.NewReconciler(store, catalog, subs, billing.WithLogger(log))
//
//	api := &billing.API{
//		Catalog:       catalog,
//		Subscriptions: subs,
//		Initiator:     billing.NewInitiator(store, catalog, gw, callbackURL),
//		Verifier:      billing.NewVerifier(store, gw, rec),
//		Gate:          billing.NewGate(subs, catalog, counters),
//		Webhook:       billing.NewWebhookReceiver(verifier, decoder, rec),
//	}
//	r.Mount("/billing", api.Handle())
package billing
