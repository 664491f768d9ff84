package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

// Verifier is the pull path: after the payer is redirected back, the
// client asks us to check the gateway for the final status.
type Verifier struct {
	ledger     Ledger
	gateway    gateway.Client
	reconciler *Reconciler
	cfg        config
}

func NewVerifier(ledger Ledger, gw gateway.Client, reconciler *Reconciler, opts ...Option) *Verifier {
	return &Verifier{
		ledger:     ledger,
		gateway:    gw,
		reconciler: reconciler,
		cfg:        newConfig(opts),
	}
}

// Verify confirms reference with the gateway and activates it on success.
// Anything short of a confirmed success leaves the transaction pending.
func (v *Verifier) Verify(ctx context.Context, tenantID uuid.UUID, reference string) (Outcome, error) {
	tx, err := v.ledger.Find(ctx, reference)
	if errors.Is(err, ErrTransactionNotFound) {
		return Outcome{}, fmt.Errorf("%w: transaction %s", ErrNotFound, reference)
	}
	if err != nil {
		return Outcome{}, err
	}
	if tx.TenantID != tenantID {
		return Outcome{}, fmt.Errorf("%w: transaction %s", ErrNotFound, reference)
	}

	if tx.Status.Terminal() {
		return v.reconciler.duplicate(ctx, tx, tx.Status)
	}

	conf, err := v.gateway.FetchStatus(ctx, reference)
	if err != nil {
		v.cfg.log.WarnContext(ctx, "failed to fetch payment status",
			logger.Reference(reference),
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		if errors.Is(err, gateway.ErrNotFound) {
			return Outcome{}, errors.Join(ErrPaymentNotCompleted, err)
		}
		return Outcome{}, errors.Join(ErrGatewayUnavailable, err)
	}
	if conf.Status != gateway.StatusSuccess {
		return Outcome{}, fmt.Errorf("%w: gateway reports %s", ErrPaymentNotCompleted, conf.Status)
	}

	return v.reconciler.Activate(ctx, ActivateParams{
		TenantID:  tx.TenantID,
		Plan:      tx.Plan,
		Reference: tx.Reference,
		Amount:    conf.Amount,
		Currency:  conf.Currency,
		Channel:   conf.Channel,
		PaidAt:    conf.PaidAt,
		Source:    SourceVerify,
	})
}
