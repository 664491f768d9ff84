package limits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CounterFunc returns the current usage for a tenant resource.
// Should be fast: cache or aggregate at repository level.
type CounterFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// CounterRegistry maps a Resource to its CounterFunc.
// Not thread-safe: register all counters at startup only.
type CounterRegistry map[Resource]CounterFunc

// NewRegistry returns a new, empty CounterRegistry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the CounterFunc for the given resource. Panics if fn is nil.
func (r CounterRegistry) Register(res Resource, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("limits: CounterFunc for resource %q cannot be nil", res))
	}
	r[res] = fn
}

// Count returns the current usage of res for the tenant.
func (r CounterRegistry) Count(ctx context.Context, tenantID uuid.UUID, res Resource) (int64, error) {
	counter, ok := r[res]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoCounterRegistered, res)
	}

	n, err := counter(ctx, tenantID)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountResourceUsage, err)
	}
	return n, nil
}

// Usage counts res and pairs it with limit. Unlimited resources are still
// counted so dashboards can show absolute usage.
func (r CounterRegistry) Usage(ctx context.Context, tenantID uuid.UUID, res Resource, limit int64) (UsageInfo, error) {
	current, err := r.Count(ctx, tenantID, res)
	if err != nil {
		return UsageInfo{}, err
	}
	return UsageInfo{Current: current, Limit: limit}, nil
}
