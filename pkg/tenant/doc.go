// Package tenant resolves the school (tenant) a request belongs to and carries
// it through the request context.
//
// The middleware is built from three parts:
//
//  1. Resolver extracts a raw identifier from the request (X-Tenant-ID header,
//     subdomain, or a composite of both).
//  2. Provider loads the tenant by UUID or subdomain.
//  3. Cache avoids a provider round trip per request. The in-memory cache suits
//     a single instance; RedisCache shares entries across instances.
//
// Usage:
//
//	mw := tenant.Middleware(
//		tenant.NewCompositeResolver(tenant.NewHeaderResolver("X-Tenant-ID"), tenant.NewSubdomainResolver(".schoolpay.app")),
//		tenant.NewPGProvider(pool),
//		tenant.WithCache(tenant.NewRedisCache(rdb, "tenant:")),
//		tenant.WithRequired(true),
//	)
//
// Handlers read the canonical ID with IDFromContext. Only the middleware
// interprets raw identifiers; everything downstream works with uuid.UUID.
package tenant
