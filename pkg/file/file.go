package file

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Meter reports the bytes a tenant currently stores.
type Meter interface {
	TenantBytes(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// TenantPrefix is the key prefix every upload of tenantID lives under,
// relative to root. It always ends with a slash.
func TenantPrefix(root string, tenantID uuid.UUID) string {
	root = strings.Trim(root, "/")
	return path.Join(root, "tenants", tenantID.String()) + "/"
}
