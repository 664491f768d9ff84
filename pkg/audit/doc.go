// Package audit records billing-relevant actions as structured, queryable events.
//
// A Logger stamps each event with an ID, timestamp and whatever the configured
// context extractors can find (tenant, actor, request ID), then hands it to a
// Storage backend:
//
//	auditLog := audit.NewLogger(storage,
//	    audit.WithTenantIDExtractor(tenant.AuditExtractor()),
//	    audit.WithRequestIDExtractor(requestid.AuditExtractor()),
//	)
//
//	_ = auditLog.Log(ctx, "billing.subscription.activated",
//	    audit.WithResource("subscription", tenantID.String()),
//	    audit.WithMetadata("plan", "basic"),
//	)
//
// Two backends ship with the package. MemoryStorage keeps events in process
// and is used by tests and the in-memory runtime. PGStorage writes to the
// audit_events table and supports batched inserts, which AsyncWriter uses to
// move audit I/O off the request path.
package audit
