package billing

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/schoolpay/handler"
	"github.com/dmitrymomot/schoolpay/pkg/limits"
)

var (
	ErrValidation           = errors.New("billing.errors.validation")
	ErrInvalidSignature     = errors.New("billing.errors.invalid_signature")
	ErrUnknownTransaction   = errors.New("billing.errors.unknown_transaction")
	ErrAmountMismatch       = errors.New("billing.errors.amount_mismatch")
	ErrCurrencyMismatch     = errors.New("billing.errors.currency_mismatch")
	ErrTransactionFailed    = errors.New("billing.errors.transaction_failed")
	ErrTransactionAbandoned = errors.New("billing.errors.transaction_abandoned")
	ErrFeatureNotLicensed   = errors.New("billing.errors.feature_not_licensed")
	ErrQuotaExceeded        = errors.New("billing.errors.quota_exceeded")
	ErrSubscriptionInactive = errors.New("billing.errors.subscription_inactive")
	ErrGatewayUnavailable   = errors.New("billing.errors.gateway_unavailable")
	ErrPaymentNotCompleted  = errors.New("billing.errors.payment_not_completed")
	ErrNotFound             = errors.New("billing.errors.not_found")
	ErrDuplicateReference   = errors.New("billing.errors.duplicate_reference")

	// Store and catalog level errors, wrapped by the components above.
	ErrPlanNotFound        = errors.New("billing.errors.plan_not_found")
	ErrInvalidCatalog      = errors.New("billing.errors.invalid_catalog")
	ErrTransactionNotFound = errors.New("billing.errors.transaction_not_found")
	ErrInvalidOutcome      = errors.New("billing.errors.invalid_outcome")
	ErrMissingTenant       = errors.New("billing.errors.missing_tenant")
)

// FeatureError reports a capability the tenant's plan does not grant.
type FeatureError struct {
	Capability   string
	RequiredPlan string
}

func (e *FeatureError) Error() string {
	if e.RequiredPlan == "" {
		return fmt.Sprintf("%s: %s", ErrFeatureNotLicensed, e.Capability)
	}
	return fmt.Sprintf("%s: %s requires plan %s", ErrFeatureNotLicensed, e.Capability, e.RequiredPlan)
}

func (e *FeatureError) Unwrap() error {
	return ErrFeatureNotLicensed
}

// QuotaError reports a resource at or above its plan limit.
type QuotaError struct {
	Resource limits.Resource
	Current  int64
	Limit    int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s %d/%d", ErrQuotaExceeded, e.Resource, e.Current, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// HTTPError maps a billing error onto its HTTP status and error key.
// Errors outside the taxonomy map to 500.
func HTTPError(err error) handler.HTTPError {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPlanNotFound):
		return handler.NewHTTPError(http.StatusBadRequest, "validation_error")
	case errors.Is(err, ErrInvalidSignature):
		return handler.NewHTTPError(http.StatusBadRequest, "invalid_signature")
	case errors.Is(err, ErrUnknownTransaction):
		return handler.NewHTTPError(http.StatusNotFound, "unknown_transaction")
	case errors.Is(err, ErrAmountMismatch):
		return handler.NewHTTPError(http.StatusConflict, "amount_mismatch")
	case errors.Is(err, ErrCurrencyMismatch):
		return handler.NewHTTPError(http.StatusConflict, "currency_mismatch")
	case errors.Is(err, ErrTransactionFailed):
		return handler.NewHTTPError(http.StatusConflict, "transaction_failed")
	case errors.Is(err, ErrTransactionAbandoned):
		return handler.NewHTTPError(http.StatusConflict, "transaction_abandoned")
	case errors.Is(err, ErrFeatureNotLicensed):
		return handler.NewHTTPError(http.StatusForbidden, "upgrade_required")
	case errors.Is(err, ErrQuotaExceeded):
		return handler.NewHTTPError(http.StatusForbidden, "quota_exceeded")
	case errors.Is(err, ErrSubscriptionInactive):
		return handler.NewHTTPError(http.StatusPaymentRequired, "subscription_inactive")
	case errors.Is(err, ErrGatewayUnavailable):
		return handler.NewHTTPError(http.StatusServiceUnavailable, "gateway_unavailable")
	case errors.Is(err, ErrPaymentNotCompleted):
		return handler.NewHTTPError(http.StatusPaymentRequired, "payment_not_completed")
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTransactionNotFound):
		return handler.NewHTTPError(http.StatusNotFound, "not_found")
	case errors.Is(err, ErrMissingTenant):
		return handler.NewHTTPError(http.StatusUnauthorized, "missing_tenant")
	case errors.Is(err, ErrDuplicateReference):
		return handler.NewHTTPError(http.StatusInternalServerError, "duplicate_reference")
	default:
		return handler.ErrInternalServerError
	}
}

// ErrorResponse renders err with the JSON error envelope. Feature and quota
// denials carry their payload in details; 4xx errors expose the message.
func ErrorResponse(err error) handler.Response {
	httpErr := HTTPError(err)
	detail := &handler.ErrorDetail{
		Code:    httpErr.Key,
		Message: http.StatusText(httpErr.Code),
	}
	if httpErr.Code < http.StatusInternalServerError {
		detail.Message = err.Error()
	}

	var featureErr *FeatureError
	var quotaErr *QuotaError
	switch {
	case errors.As(err, &featureErr):
		detail.Details = map[string][]string{"capability": {featureErr.Capability}}
		if featureErr.RequiredPlan != "" {
			detail.Details["required_plan"] = []string{featureErr.RequiredPlan}
		}
	case errors.As(err, &quotaErr):
		detail.Details = map[string][]string{
			"resource": {string(quotaErr.Resource)},
			"current":  {strconv.FormatInt(quotaErr.Current, 10)},
			"limit":    {strconv.FormatInt(quotaErr.Limit, 10)},
		}
	}

	return handler.JSONError(detail, handler.WithJSONStatus(httpErr.Code))
}
