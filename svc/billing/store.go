package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger persists payment attempts. Status moves out of pending only
// through TryClaim.
type Ledger interface {
	// CreatePending stores tx as pending. Fails with ErrDuplicateReference
	// when the reference already exists.
	CreatePending(ctx context.Context, tx Transaction) error

	// TryClaim sets the status to outcome iff it is still pending. Losers
	// get the stored status with Claimed false. reason is kept unless the outcome is success.
	TryClaim(ctx context.Context, reference string, outcome TransactionStatus, reason string) (ClaimResult, error)

	// Find returns ErrTransactionNotFound for unknown references.
	Find(ctx context.Context, reference string) (Transaction, error)

	// MarkPaid records when and how the provider collected the payment.
	MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) error

	// ListPending returns pending transactions created before olderThan,
	// oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]Transaction, error)
}

// SubscriptionStore persists tenant subscriptions.
type SubscriptionStore interface {
	// Subscription returns the stored record and whether it exists.
	Subscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error)

	// LockSubscription is Subscription with a row lock held until the
	// surrounding transaction ends.
	LockSubscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error)

	// SaveSubscription upserts sub by tenant.
	SaveSubscription(ctx context.Context, sub Subscription) error
}

// Transactor runs fn in a single store transaction carried by ctx.
// Nested calls join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is everything the billing components persist.
type Store interface {
	Ledger
	SubscriptionStore
	Transactor
}
