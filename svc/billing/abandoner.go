package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/schoolpay/pkg/audit"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

const abandonBatchSize = 500

// Abandoner closes pending transactions the payer never completed.
// It runs on demand; nothing schedules it.
type Abandoner struct {
	ledger Ledger
	cfg    config
}

func NewAbandoner(ledger Ledger, opts ...Option) *Abandoner {
	return &Abandoner{
		ledger: ledger,
		cfg:    newConfig(opts),
	}
}

// Abandon claims every transaction pending for longer than olderThan as
// abandoned and returns the references it moved. A transaction confirmed
// concurrently keeps its success.
func (a *Abandoner) Abandon(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrValidation)
	}
	cutoff := a.cfg.clock().Add(-olderThan)
	reason := fmt.Sprintf("pending for more than %s", olderThan)

	var abandoned []string
	for {
		pending, err := a.ledger.ListPending(ctx, cutoff, abandonBatchSize)
		if err != nil {
			return abandoned, err
		}

		moved := 0
		for _, tx := range pending {
			claim, err := a.ledger.TryClaim(ctx, tx.Reference, TxAbandoned, reason)
			if err != nil {
				return abandoned, err
			}
			a.cfg.metrics.ObserveClaim(string(claim.Status), claim.Claimed)
			if !claim.Claimed {
				continue
			}
			moved++
			abandoned = append(abandoned, tx.Reference)
			a.cfg.record(ctx, ActionTransactionAbandoned, nil,
				audit.WithTenantID(tx.TenantID.String()),
				audit.WithResource("transaction", tx.Reference),
				audit.WithActor("system"),
				audit.WithMetadata("created_at", tx.CreatedAt),
			)
		}

		if len(pending) < abandonBatchSize || moved == 0 {
			break
		}
	}

	if len(abandoned) > 0 {
		a.cfg.log.InfoContext(ctx, "abandoned stale transactions",
			slog.Int("count", len(abandoned)),
			slog.Duration("older_than", olderThan),
			logger.Component("abandoner"),
		)
	}
	return abandoned, nil
}
