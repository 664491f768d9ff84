package tenant

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/schoolpay/handler"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")
	ErrNoTenantInContext = errors.New("no tenant in context")
	ErrInactiveTenant    = errors.New("tenant is inactive")
)

// HTTPError maps a resolution failure onto the API error it is reported as.
// Unknown errors become a 500 so provider details never reach the client.
func HTTPError(err error) handler.HTTPError {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		return handler.NewHTTPError(http.StatusNotFound, "tenant_not_found")
	case errors.Is(err, ErrInactiveTenant):
		return handler.NewHTTPError(http.StatusForbidden, "tenant_inactive")
	case errors.Is(err, ErrNoTenantInContext):
		return handler.NewHTTPError(http.StatusBadRequest, "tenant_required")
	case errors.Is(err, ErrInvalidIdentifier):
		return handler.NewHTTPError(http.StatusBadRequest, "tenant_invalid")
	default:
		return handler.ErrInternalServerError
	}
}
