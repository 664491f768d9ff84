package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type bucketState struct {
	tokens   int
	refilled time.Time
}

// MemoryStore keeps buckets in a bounded in-process LRU. A bucket untouched
// for the idle TTL is evicted and starts full on its next use.
type MemoryStore struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, bucketState]
}

type MemoryStoreOption func(*memoryOptions)

type memoryOptions struct {
	maxKeys int
	idleTTL time.Duration
}

// WithMaxKeys caps tracked keys; the least recently used bucket goes first.
func WithMaxKeys(n int) MemoryStoreOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxKeys = n
		}
	}
}

func WithIdleTTL(d time.Duration) MemoryStoreOption {
	return func(o *memoryOptions) {
		if d > 0 {
			o.idleTTL = d
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	o := memoryOptions{maxKeys: 100_000, idleTTL: time.Hour}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{buckets: expirable.NewLRU[string, bucketState](o.maxKeys, nil, o.idleTTL)}
}

func (ms *MemoryStore) Take(_ context.Context, key string, n int, cfg Config, now time.Time) (State, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.buckets.Get(key)
	if !ok {
		b = bucketState{tokens: cfg.Capacity, refilled: now}
	}
	b.tokens, b.refilled = refill(b.tokens, b.refilled, now, cfg)

	st := State{ResetAt: b.refilled.Add(cfg.RefillInterval)}
	if b.tokens >= n {
		b.tokens -= n
		st.Allowed = true
	}
	st.Remaining = b.tokens
	ms.buckets.Add(key, b)
	return st, nil
}

func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.buckets.Remove(key)
	return nil
}

// Close drops every bucket.
func (ms *MemoryStore) Close() error {
	ms.buckets.Purge()
	return nil
}
