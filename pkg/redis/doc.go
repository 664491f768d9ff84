// Package redis connects a go-redis v9 client with startup retries and
// exposes a readiness probe.
package redis
