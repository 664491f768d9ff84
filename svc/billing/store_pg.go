package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/schoolpay/pkg/pg"
)

// pgTransactor is satisfied by *pg.Transactor.
type pgTransactor interface {
	Querier(ctx context.Context) pg.Querier
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PGStore keeps the ledger and subscriptions in PostgreSQL. Statements run
// on the transaction carried by ctx when there is one.
type PGStore struct {
	db pgTransactor
}

func NewPGStore(db pgTransactor) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithinTx(ctx, fn)
}

const transactionColumns = `reference, tenant_id, plan, amount, currency, status, channel,
	failure_reason, paid_at, created_at, resolved_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t      Transaction
		status string
	)
	err := row.Scan(&t.Reference, &t.TenantID, &t.Plan, &t.Amount, &t.Currency, &status, &t.Channel,
		&t.FailureReason, &t.PaidAt, &t.CreatedAt, &t.ResolvedAt)
	t.Status = TransactionStatus(status)
	return t, err
}

func (s *PGStore) CreatePending(ctx context.Context, t Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Querier(ctx).Exec(ctx, `INSERT INTO transactions
		(reference, tenant_id, plan, amount, currency, status, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)`,
		t.Reference, t.TenantID, t.Plan, t.Amount, t.Currency, t.Channel, t.CreatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, t.Reference)
	}
	if err != nil {
		return fmt.Errorf("billing: create transaction %s: %w", t.Reference, err)
	}
	return nil
}

// TryClaim is a single conditional UPDATE; Postgres row locking makes
// concurrent claims for one reference serialize, and only the first sees
// status = 'pending'.
func (s *PGStore) TryClaim(ctx context.Context, reference string, outcome TransactionStatus, reason string) (ClaimResult, error) {
	if !outcome.Terminal() {
		return ClaimResult{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if outcome == TxSuccess {
		reason = ""
	}

	q := s.db.Querier(ctx)
	var status string
	err := q.QueryRow(ctx, `UPDATE transactions
		SET status = $2, failure_reason = $3, resolved_at = $4
		WHERE reference = $1 AND status = 'pending'
		RETURNING status`,
		reference, string(outcome), reason, time.Now().UTC(),
	).Scan(&status)
	if err == nil {
		return ClaimResult{Claimed: true, Status: TransactionStatus(status)}, nil
	}
	if !pg.IsNotFoundError(err) {
		return ClaimResult{}, fmt.Errorf("billing: claim transaction %s: %w", reference, err)
	}

	err = q.QueryRow(ctx, `SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
	if pg.IsNotFoundError(err) {
		return ClaimResult{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	if err != nil {
		return ClaimResult{}, fmt.Errorf("billing: read transaction %s: %w", reference, err)
	}
	return ClaimResult{Status: TransactionStatus(status)}, nil
}

func (s *PGStore) Find(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.Querier(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	t, err := scanTransaction(row)
	if pg.IsNotFoundError(err) {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("billing: find transaction %s: %w", reference, err)
	}
	return t, nil
}

func (s *PGStore) MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) error {
	tag, err := s.db.Querier(ctx).Exec(ctx, `UPDATE transactions
		SET paid_at = $2, channel = COALESCE(NULLIF($3, ''), channel)
		WHERE reference = $1`,
		reference, paidAt.UTC(), channel,
	)
	if err != nil {
		return fmt.Errorf("billing: mark transaction %s paid: %w", reference, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	return nil
}

func (s *PGStore) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]Transaction, error) {
	rows, err := s.db.Querier(ctx).Query(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, reference
		LIMIT NULLIF($2::int, 0)`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("billing: list pending transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: scan pending transactions: %w", err)
	}
	return txs, nil
}

const subscriptionColumns = `tenant_id, plan, status, start_date, expiry_date, last_payment_reference,
	max_students, max_teachers, max_storage_bytes, features, updated_at`

func (s *PGStore) Subscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error) {
	return s.readSubscription(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
}

// LockSubscription must run inside WithinTx. The advisory lock serializes
// writers for tenants that have no row yet, where FOR UPDATE locks nothing.
func (s *PGStore) LockSubscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error) {
	if _, err := s.db.Querier(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, tenantID.String()); err != nil {
		return Subscription{}, false, fmt.Errorf("billing: lock subscription %s: %w", tenantID, err)
	}
	return s.readSubscription(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1 FOR UPDATE`, tenantID)
}

func (s *PGStore) readSubscription(ctx context.Context, query string, tenantID uuid.UUID) (Subscription, bool, error) {
	var (
		sub    Subscription
		status string
	)
	err := s.db.Querier(ctx).QueryRow(ctx, query, tenantID).Scan(
		&sub.TenantID, &sub.Plan, &status, &sub.StartDate, &sub.ExpiryDate, &sub.LastPaymentReference,
		&sub.MaxStudents, &sub.MaxTeachers, &sub.MaxStorageBytes, &sub.Features, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, fmt.Errorf("billing: read subscription %s: %w", tenantID, err)
	}
	sub.Status = SubscriptionStatus(status)
	return sub, true, nil
}

func (s *PGStore) SaveSubscription(ctx context.Context, sub Subscription) error {
	features := sub.Features
	if features == nil {
		features = []string{}
	}
	_, err := s.db.Querier(ctx).Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			expiry_date = EXCLUDED.expiry_date,
			last_payment_reference = EXCLUDED.last_payment_reference,
			max_students = EXCLUDED.max_students,
			max_teachers = EXCLUDED.max_teachers,
			max_storage_bytes = EXCLUDED.max_storage_bytes,
			features = EXCLUDED.features,
			updated_at = EXCLUDED.updated_at`,
		sub.TenantID, sub.Plan, string(sub.Status), sub.StartDate, sub.ExpiryDate, sub.LastPaymentReference,
		sub.MaxStudents, sub.MaxTeachers, sub.MaxStorageBytes, features, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("billing: save subscription %s: %w", sub.TenantID, err)
	}
	return nil
}

// CountStudents and CountTeachers are limits.CounterFunc implementations
// over the tables owned by the roster services.
func (s *PGStore) CountStudents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT count(*) FROM students WHERE tenant_id = $1`, tenantID)
}

func (s *PGStore) CountTeachers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT count(*) FROM teachers WHERE tenant_id = $1`, tenantID)
}

func (s *PGStore) count(ctx context.Context, query string, tenantID uuid.UUID) (int64, error) {
	var n int64
	if err := s.db.Querier(ctx).QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
