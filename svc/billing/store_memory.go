package billing

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memTxKey struct{}

// memTx is an undo journal. Rolling back replays it in reverse.
type memTx struct {
	undo []func()
}

func (t *memTx) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

// MemoryStore is an in-process Store. Transactions are serialized: one
// WithinTx runs at a time and standalone calls wait for it, which gives the
// same claim and row-lock guarantees as the PostgreSQL store.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	txs  map[string]Transaction
	subs map[uuid.UUID]Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:  make(map[string]Transaction),
		subs: make(map[uuid.UUID]Subscription),
	}
}

// WithinTx runs fn exclusively; any store write made by fn is undone when
// it returns an error or panics.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	defer func() {
		if r := recover(); r != nil {
			s.rollback(tx)
			panic(r)
		}
		if err != nil {
			s.rollback(tx)
		}
	}()

	return fn(context.WithValue(ctx, memTxKey{}, tx))
}

func (s *MemoryStore) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// run executes fn under the data lock, joining the transaction in ctx or
// acting as a single-statement transaction otherwise.
func (s *MemoryStore) run(ctx context.Context, fn func(tx *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, inTx := ctx.Value(memTxKey{}).(*memTx)
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(tx)
}

func (s *MemoryStore) putTx(tx *memTx, t Transaction) {
	prev, existed := s.txs[t.Reference]
	tx.record(func() {
		if existed {
			s.txs[t.Reference] = prev
		} else {
			delete(s.txs, t.Reference)
		}
	})
	s.txs[t.Reference] = t
}

func (s *MemoryStore) CreatePending(ctx context.Context, t Transaction) error {
	return s.run(ctx, func(tx *memTx) error {
		if _, ok := s.txs[t.Reference]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, t.Reference)
		}
		t.Status = TxPending
		t.PaidAt = nil
		t.ResolvedAt = nil
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		s.putTx(tx, t)
		return nil
	})
}

func (s *MemoryStore) TryClaim(ctx context.Context, reference string, outcome TransactionStatus, reason string) (ClaimResult, error) {
	if !outcome.Terminal() {
		return ClaimResult{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	var res ClaimResult
	err := s.run(ctx, func(tx *memTx) error {
		t, ok := s.txs[reference]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
		}
		if t.Status != TxPending {
			res = ClaimResult{Status: t.Status}
			return nil
		}

		resolved := time.Now().UTC()
		t.Status = outcome
		t.ResolvedAt = &resolved
		if outcome != TxSuccess {
			t.FailureReason = reason
		}
		s.putTx(tx, t)
		res = ClaimResult{Claimed: true, Status: outcome}
		return nil
	})
	return res, err
}

func (s *MemoryStore) Find(ctx context.Context, reference string) (Transaction, error) {
	var t Transaction
	err := s.run(ctx, func(*memTx) error {
		found, ok := s.txs[reference]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
		}
		t = found
		return nil
	})
	return t, err
}

func (s *MemoryStore) MarkPaid(ctx context.Context, reference string, paidAt time.Time, channel string) error {
	return s.run(ctx, func(tx *memTx) error {
		t, ok := s.txs[reference]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
		}
		paidAt = paidAt.UTC()
		t.PaidAt = &paidAt
		if channel != "" {
			t.Channel = channel
		}
		s.putTx(tx, t)
		return nil
	})
}

func (s *MemoryStore) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]Transaction, error) {
	var out []Transaction
	err := s.run(ctx, func(*memTx) error {
		for _, t := range s.txs {
			if t.Status == TxPending && t.CreatedAt.Before(olderThan) {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b Transaction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Reference, b.Reference))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Subscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error) {
	var (
		sub Subscription
		ok  bool
	)
	err := s.run(ctx, func(*memTx) error {
		sub, ok = s.subs[tenantID]
		sub = sub.clone()
		return nil
	})
	return sub, ok, err
}

// LockSubscription needs no extra locking: transactions are already exclusive.
func (s *MemoryStore) LockSubscription(ctx context.Context, tenantID uuid.UUID) (Subscription, bool, error) {
	return s.Subscription(ctx, tenantID)
}

func (s *MemoryStore) SaveSubscription(ctx context.Context, sub Subscription) error {
	sub = sub.clone()
	return s.run(ctx, func(tx *memTx) error {
		prev, existed := s.subs[sub.TenantID]
		tx.record(func() {
			if existed {
				s.subs[sub.TenantID] = prev
			} else {
				delete(s.subs, sub.TenantID)
			}
		})
		s.subs[sub.TenantID] = sub
		return nil
	})
}
