package gateway

import (
	"math/rand/v2"
	"time"
)

// Backoff returns the wait before retry n, n starting at 1.
type Backoff func(n int) time.Duration

// ExponentialBackoff doubles from initial up to ceiling. jitter in [0,1)
// spreads each delay by up to ±jitter of itself.
func ExponentialBackoff(initial, ceiling time.Duration, jitter float64) Backoff {
	initial = positive(initial, 200*time.Millisecond)
	ceiling = positive(ceiling, 5*time.Second)
	return func(n int) time.Duration {
		if n <= 0 {
			return 0
		}
		d := ceiling
		if shift := n - 1; shift < 32 && initial<<shift < ceiling && initial<<shift > 0 {
			d = initial << shift
		}
		if jitter > 0 {
			d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*jitter))
		}
		return min(d, ceiling)
	}
}

// ConstantBackoff waits d before every retry.
func ConstantBackoff(d time.Duration) Backoff {
	return func(n int) time.Duration {
		if n <= 0 {
			return 0
		}
		return d
	}
}

// DefaultBackoff keeps total retry time well under an HTTP request budget:
// 200ms, 400ms, 800ms... capped at 5s, with 10% jitter.
func DefaultBackoff() Backoff {
	return ExponentialBackoff(200*time.Millisecond, 5*time.Second, 0.1)
}
