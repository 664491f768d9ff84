package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithTenant stores t in ctx. Middleware calls it after a successful lookup;
// tests and background jobs call it directly.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

func FromContext(ctx context.Context) (*Tenant, bool) {
	t, _ := ctx.Value(ctxKey{}).(*Tenant)
	return t, t != nil
}

// IDFromContext is the tenant scope every billing operation runs under.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if t, ok := FromContext(ctx); ok {
		return t.ID, true
	}
	return uuid.Nil, false
}

// LoggerExtractor tags log records with tenant_id.
func LoggerExtractor() func(context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := IDFromContext(ctx)
		return slog.String("tenant_id", id.String()), ok
	}
}

// AuditExtractor feeds audit.WithTenantIDExtractor.
func AuditExtractor() func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		id, ok := IDFromContext(ctx)
		if !ok {
			return "", false
		}
		return id.String(), true
	}
}
