package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/limits"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/tenant"
)

// Entitlements is what a tenant may use right now.
type Entitlements struct {
	Plan     string                    `json:"plan"`
	Status   SubscriptionStatus        `json:"status"`
	Active   bool                      `json:"active"`
	Features []string                  `json:"features"`
	Limits   map[limits.Resource]int64 `json:"limits"`
}

// Gate answers feature and quota questions from the tenant's subscription.
// Expiry is evaluated at call time: an active subscription past its expiry
// date entitles the tenant to the free plan only.
type Gate struct {
	subs     *Subscriptions
	catalog  *Catalog
	counters limits.CounterRegistry
	cfg      config
}

func NewGate(subs *Subscriptions, catalog *Catalog, counters limits.CounterRegistry, opts ...Option) *Gate {
	if counters == nil {
		counters = limits.NewRegistry()
	}
	return &Gate{
		subs:     subs,
		catalog:  catalog,
		counters: counters,
		cfg:      newConfig(opts),
	}
}

// Entitlements resolves the features and limits the tenant holds now.
func (g *Gate) Entitlements(ctx context.Context, tenantID uuid.UUID) (Entitlements, error) {
	sub, err := g.subs.Get(ctx, tenantID)
	if err != nil {
		return Entitlements{}, err
	}
	return g.entitlements(sub), nil
}

func (g *Gate) entitlements(sub Subscription) Entitlements {
	now := g.cfg.clock()
	ent := Entitlements{
		Plan:   sub.Plan,
		Status: sub.EffectiveStatus(now),
		Active: sub.EffectiveActive(now),
		Limits: make(map[limits.Resource]int64, len(limits.Resources())),
	}

	if ent.Active {
		ent.Features = slices.Clone(sub.Features)
		for _, res := range limits.Resources() {
			ent.Limits[res] = sub.Limit(res)
		}
		return ent
	}

	free := g.catalog.Free()
	ent.Features = free.Features
	for _, res := range limits.Resources() {
		ent.Limits[res] = free.Limit(res)
	}
	return ent
}

func (e Entitlements) has(capability string) bool {
	return slices.Contains(e.Features, capability)
}

// RequireFeature fails with ErrSubscriptionInactive when the tenant's lapsed
// plan would grant capability, and with a *FeatureError naming the cheapest
// plan that grants it otherwise.
func (g *Gate) RequireFeature(ctx context.Context, tenantID uuid.UUID, capability string) error {
	sub, err := g.subs.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	ent := g.entitlements(sub)
	if ent.has(capability) {
		return nil
	}

	g.cfg.metrics.ObserveDenial("feature", capability)
	if !ent.Active && sub.HasFeature(capability) {
		return fmt.Errorf("%w: plan %s is %s", ErrSubscriptionInactive, sub.Plan, ent.Status)
	}

	ferr := &FeatureError{Capability: capability}
	if p, ok := g.catalog.CheapestWithFeature(capability); ok {
		ferr.RequiredPlan = p.Name
	}
	return ferr
}

// CheckQuota fails with a *QuotaError when creating one more res would
// exceed the tenant's limit.
func (g *Gate) CheckQuota(ctx context.Context, tenantID uuid.UUID, res limits.Resource) error {
	return g.check(ctx, tenantID, res, 1)
}

// CheckStorage fails when storing incomingBytes more would exceed the
// tenant's storage limit.
func (g *Gate) CheckStorage(ctx context.Context, tenantID uuid.UUID, incomingBytes int64) error {
	if incomingBytes < 0 {
		return fmt.Errorf("%w: negative upload size", ErrValidation)
	}
	return g.check(ctx, tenantID, limits.ResourceStorageBytes, incomingBytes)
}

func (g *Gate) check(ctx context.Context, tenantID uuid.UUID, res limits.Resource, incoming int64) error {
	if !res.Known() {
		return fmt.Errorf("%w: unknown resource %q", ErrValidation, res)
	}
	ent, err := g.Entitlements(ctx, tenantID)
	if err != nil {
		return err
	}
	limit := ent.Limits[res]
	if limit == limits.Unlimited {
		return nil
	}

	usage, err := g.counters.Usage(ctx, tenantID, res, limit)
	if err != nil {
		return err
	}
	if !usage.Allows(incoming) {
		g.cfg.metrics.ObserveDenial("quota", string(res))
		return &QuotaError{Resource: res, Current: usage.Current, Limit: usage.Limit}
	}
	return nil
}

// Usage reports current usage and limit for every resource with a counter.
func (g *Gate) Usage(ctx context.Context, tenantID uuid.UUID) (map[limits.Resource]limits.UsageInfo, error) {
	ent, err := g.Entitlements(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make(map[limits.Resource]limits.UsageInfo, len(limits.Resources()))
	for _, res := range limits.Resources() {
		usage, err := g.counters.Usage(ctx, tenantID, res, ent.Limits[res])
		if errors.Is(err, limits.ErrNoCounterRegistered) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[res] = usage
	}
	return out, nil
}

// FeatureMiddleware rejects requests from tenants lacking capability.
// It expects the tenant middleware to run first.
func (g *Gate) FeatureMiddleware(capability string) func(http.Handler) http.Handler {
	return g.middleware(func(ctx context.Context, id uuid.UUID) error {
		return g.RequireFeature(ctx, id, capability)
	})
}

// QuotaMiddleware rejects requests that would create one res too many.
func (g *Gate) QuotaMiddleware(res limits.Resource) func(http.Handler) http.Handler {
	return g.middleware(func(ctx context.Context, id uuid.UUID) error {
		return g.CheckQuota(ctx, id, res)
	})
}

func (g *Gate) middleware(check func(context.Context, uuid.UUID) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := tenant.IDFromContext(r.Context())
			if !ok {
				g.deny(w, r, ErrMissingTenant)
				return
			}
			if err := check(r.Context(), id); err != nil {
				g.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, err error) {
	if HTTPError(err).Code >= http.StatusInternalServerError {
		g.cfg.log.ErrorContext(r.Context(), "entitlement check failed", logger.Error(err))
	}
	if renderErr := ErrorResponse(err).Render(w, r); renderErr != nil {
		g.cfg.log.ErrorContext(r.Context(), "failed to render denial", logger.Error(renderErr))
	}
}
