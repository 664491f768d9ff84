// Package ratelimiter throttles expensive per-tenant operations, such as
// opening payment intents at the gateway, with a token bucket.
//
// A bucket holds up to Capacity tokens and regains RefillRate tokens every
// RefillInterval. A request that finds fewer tokens than it needs is denied
// and consumes nothing.
//
// Two stores are provided: MemoryStore for a single instance and RedisStore,
// which runs the bucket update as a Lua script so several instances share
// one budget per key.
//
//	bucket, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(rdb, "rl:"), cfg)
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(bucket, ratelimiter.TenantKey("initiate"))).
//		Post("/initiate", initiate)
//
// The middleware answers 429 with the JSON error envelope and sets the
// X-RateLimit-* and Retry-After headers.
package ratelimiter
