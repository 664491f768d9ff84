package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// InitiateParams describes a checkout request. CallbackURL overrides the
// initiator's default redirect-back URL.
type InitiateParams struct {
	TenantID    uuid.UUID
	Plan        string
	Email       string
	CallbackURL string
}

// Initiation is what the client needs to send the payer to the gateway.
type Initiation struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
	Plan        string `json:"plan"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Initiator starts payments: it creates a gateway intent and records the
// pending transaction under the gateway's reference.
type Initiator struct {
	ledger      Ledger
	catalog     *Catalog
	gateway     gateway.Client
	callbackURL string
	cfg         config
}

func NewInitiator(ledger Ledger, catalog *Catalog, gw gateway.Client, callbackURL string, opts ...Option) *Initiator {
	return &Initiator{
		ledger:      ledger,
		catalog:     catalog,
		gateway:     gw,
		callbackURL: callbackURL,
		cfg:         newConfig(opts),
	}
}

// Initialize validates the plan, asks the gateway for a checkout and stores
// a pending transaction. Gateway failures leave the ledger untouched.
func (i *Initiator) Initialize(ctx context.Context, p InitiateParams) (Initiation, error) {
	if p.TenantID == uuid.Nil {
		return Initiation{}, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	plan, err := i.catalog.Lookup(p.Plan)
	if err != nil {
		return Initiation{}, errors.Join(ErrValidation, err)
	}
	if plan.IsFree() {
		return Initiation{}, fmt.Errorf("%w: plan %q cannot be purchased", ErrValidation, plan.Name)
	}

	callback := p.CallbackURL
	if callback == "" {
		callback = i.callbackURL
	}

	checkout, err := i.gateway.CreateIntent(ctx, gateway.Intent{
		TenantID:    p.TenantID,
		Plan:        plan.Name,
		Amount:      plan.PriceMinorUnits,
		Currency:    plan.Currency,
		Email:       p.Email,
		PriceID:     plan.GatewayPriceID,
		CallbackURL: callback,
	})
	if err != nil {
		i.cfg.log.WarnContext(ctx, "failed to create payment intent",
			logger.TenantID(p.TenantID),
			logger.Plan(plan.Name),
			logger.Error(err),
		)
		if errors.Is(err, gateway.ErrInvalidIntent) {
			return Initiation{}, errors.Join(ErrValidation, err)
		}
		return Initiation{}, errors.Join(ErrGatewayUnavailable, err)
	}
	if checkout.Reference == "" {
		return Initiation{}, errors.Join(ErrGatewayUnavailable, gateway.ErrInvalidResponse)
	}

	err = i.ledger.CreatePending(ctx, Transaction{
		Reference: checkout.Reference,
		TenantID:  p.TenantID,
		Plan:      plan.Name,
		Amount:    plan.PriceMinorUnits,
		Currency:  plan.Currency,
		Status:    TxPending,
		CreatedAt: i.cfg.clock(),
	})
	if err != nil {
		i.cfg.log.ErrorContext(ctx, "failed to record pending transaction",
			logger.Reference(checkout.Reference),
			logger.TenantID(p.TenantID),
			logger.Error(err),
		)
		return Initiation{}, err
	}

	i.cfg.log.InfoContext(ctx, "payment initiated",
		logger.Reference(checkout.Reference),
		logger.TenantID(p.TenantID),
		logger.Plan(plan.Name),
		logger.Amount(plan.PriceMinorUnits, plan.Currency),
	)
	return Initiation{
		Reference:   checkout.Reference,
		RedirectURL: checkout.RedirectURL,
		Plan:        plan.Name,
		Amount:      plan.PriceMinorUnits,
		Currency:    plan.Currency,
	}, nil
}
