package billing

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/handler"
	"github.com/dmitrymomot/schoolpay/pkg/binder"
	"github.com/dmitrymomot/schoolpay/pkg/limits"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/tenant"
)

// API serves the tenant-facing billing endpoints and the gateway webhook.
type API struct {
	Catalog       *Catalog
	Subscriptions *Subscriptions
	Initiator     *Initiator
	Verifier      *Verifier
	Gate          *Gate
	Webhook       http.Handler

	// TenantMiddleware resolves the tenant for every route except the plan
	// listing and the webhook.
	TenantMiddleware func(http.Handler) http.Handler
	// InitiateLimiter, when set, throttles payment initiation per tenant.
	InitiateLimiter  func(http.Handler) http.Handler
	Logger           *slog.Logger
}

// maxInitiateBody bounds the initiate request; it carries three short strings.
const maxInitiateBody = 8 << 10

type initiateRequest struct {
	Plan        string `json:"plan"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type verifyRequest struct {
	Reference string `path:"reference"`
}

// VerifyResponse is the body of a settled verification: status is success
// or failed. Subscription is only set on success.
type VerifyResponse struct {
	Status       TransactionStatus `json:"status"`
	Message      string            `json:"message"`
	Duplicate    bool              `json:"duplicate,omitempty"`
	Subscription *Subscription     `json:"subscription,omitempty"`
}

// SubscriptionResponse describes the caller's subscription.
type SubscriptionResponse struct {
	Subscription Subscription                         `json:"subscription"`
	Entitlements Entitlements                         `json:"entitlements"`
	Usage        map[limits.Resource]limits.UsageInfo `json:"usage,omitempty"`
}

// Handle mounts the routes; the caller picks the prefix, usually /billing.
//
//	r.Mount("/billing", api.Handle())
func (a *API) Handle() http.Handler {
	log := a.Logger
	if log == nil {
		log = logger.Nop()
	}
	errHandler := handler.NewErrorHandler(log)

	r := chi.NewRouter()
	r.Get("/plans", handler.Wrap(a.listPlans))
	if a.Webhook != nil {
		r.Method(http.MethodPost, "/webhook", a.Webhook)
	}

	r.Group(func(r chi.Router) {
		if a.TenantMiddleware != nil {
			r.Use(a.TenantMiddleware)
		}
		initiate := r
		if a.InitiateLimiter != nil {
			initiate = r.With(a.InitiateLimiter)
		}
		initiate.Post("/initiate", handler.Wrap(a.initiate,
			handler.Endpoint[handler.Context, initiateRequest](errHandler, binder.JSONLimit(maxInitiateBody)),
		))
		r.Get("/verify/{reference}", handler.Wrap(a.verify,
			handler.Endpoint[handler.Context, verifyRequest](errHandler, binder.Path(chi.URLParam)),
		))
		r.Get("/subscription", handler.Wrap(a.subscription))
	})

	return r
}

func (a *API) listPlans(ctx handler.Context, _ struct{}) handler.Response {
	return handler.JSON(a.Catalog.Plans())
}

func (a *API) initiate(ctx handler.Context, req initiateRequest) handler.Response {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return ErrorResponse(ErrMissingTenant)
	}

	out, err := a.Initiator.Initialize(ctx, InitiateParams{
		TenantID:    tenantID,
		Plan:        req.Plan,
		Email:       strings.TrimSpace(req.Email),
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return ErrorResponse(err)
	}
	return handler.JSON(out, handler.WithJSONStatus(http.StatusCreated))
}

func (a *API) verify(ctx handler.Context, req verifyRequest) handler.Response {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return ErrorResponse(ErrMissingTenant)
	}

	out, err := a.Verifier.Verify(ctx, tenantID, req.Reference)
	switch {
	case isFailedPayment(err):
		return handler.JSON(VerifyResponse{Status: TxFailed, Message: err.Error()})
	case err != nil:
		return ErrorResponse(err)
	}
	return handler.JSON(VerifyResponse{
		Status:       out.Status,
		Message:      fmt.Sprintf("plan %s active until %s", out.Subscription.Plan, out.Subscription.ExpiryDate.Format(time.RFC3339)),
		Duplicate:    out.Duplicate,
		Subscription: &out.Subscription,
	})
}

func (a *API) subscription(ctx handler.Context, _ struct{}) handler.Response {
	tenantID, ok := tenant.IDFromContext(ctx)
	if !ok {
		return ErrorResponse(ErrMissingTenant)
	}

	sub, err := a.Subscriptions.Get(ctx, tenantID)
	if err != nil {
		return ErrorResponse(err)
	}
	resp := SubscriptionResponse{Subscription: sub}
	if a.Gate != nil {
		resp.Entitlements = a.Gate.entitlements(sub)
		if resp.Usage, err = a.Gate.Usage(ctx, tenantID); err != nil {
			return ErrorResponse(err)
		}
	}
	return handler.JSON(resp)
}

// AdminAPI serves privileged subscription edits behind a static bearer token.
type AdminAPI struct {
	Admin      *Admin
	Abandoner  *Abandoner
	Token      string
	PendingTTL time.Duration
	Logger     *slog.Logger
}

type tenantRequest struct {
	TenantID uuid.UUID `path:"tenantID"`
}

type overrideRequest struct {
	TenantID   uuid.UUID           `path:"tenantID" json:"-"`
	Plan       string              `json:"plan"`
	Status     *SubscriptionStatus `json:"status"`
	ExpiryDate *time.Time          `json:"expiry_date"`
}

type abandonRequest struct {
	OlderThan string `json:"older_than"`
}

// AbandonResponse lists the references moved to abandoned.
type AbandonResponse struct {
	Abandoned []string `json:"abandoned"`
	Count     int      `json:"count"`
}

// Handle mounts the admin routes; usually at /admin.
func (a *AdminAPI) Handle() http.Handler {
	log := a.Logger
	if log == nil {
		log = logger.Nop()
	}
	errHandler := handler.NewErrorHandler(log)

	r := chi.NewRouter()
	r.Use(a.requireToken)

	r.Route("/tenants/{tenantID}/subscription", func(r chi.Router) {
		r.Get("/", handler.Wrap(a.get,
			handler.Endpoint[handler.Context, tenantRequest](errHandler, binder.Path(chi.URLParam)),
		))
		r.Put("/", handler.Wrap(a.override,
			handler.Endpoint[handler.Context, overrideRequest](errHandler, binder.Path(chi.URLParam), binder.JSON()),
		))
		r.Post("/cancel", handler.Wrap(a.cancel,
			handler.Endpoint[handler.Context, tenantRequest](errHandler, binder.Path(chi.URLParam)),
		))
	})
	if a.Abandoner != nil {
		r.Post("/transactions/abandon", handler.Wrap(a.abandon,
			handler.Endpoint[handler.Context, abandonRequest](errHandler, binder.JSON()),
		))
	}

	return r
}

// requireToken compares the bearer token in constant time. An empty
// configured token locks the admin API entirely.
func (a *AdminAPI) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || a.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
			_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAPI) get(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := a.Admin.Get(ctx, req.TenantID)
	if err != nil {
		return ErrorResponse(err)
	}
	return handler.JSON(sub)
}

func (a *AdminAPI) override(ctx handler.Context, req overrideRequest) handler.Response {
	sub, err := a.Admin.Override(ctx, req.TenantID, OverrideParams{
		Plan:       req.Plan,
		Status:     req.Status,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		return ErrorResponse(err)
	}
	return handler.JSON(sub)
}

func (a *AdminAPI) cancel(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := a.Admin.Cancel(ctx, req.TenantID)
	if err != nil {
		return ErrorResponse(err)
	}
	return handler.JSON(sub)
}

func (a *AdminAPI) abandon(ctx handler.Context, req abandonRequest) handler.Response {
	ttl := a.PendingTTL
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil {
			return ErrorResponse(fmt.Errorf("%w: older_than: %v", ErrValidation, err))
		}
		ttl = d
	}

	refs, err := a.Abandoner.Abandon(ctx, ttl)
	if err != nil {
		return ErrorResponse(err)
	}
	if refs == nil {
		refs = []string{}
	}
	return handler.JSON(AbandonResponse{Abandoned: refs, Count: len(refs)})
}

// isFailedPayment reports outcomes where the payment itself settled as
// failed. Lookup and gateway errors are not among them.
func isFailedPayment(err error) bool {
	return errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransactionAbandoned)
}
