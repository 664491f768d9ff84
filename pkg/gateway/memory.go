package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process provider. Intents stay pending until Settle is
// called; FailNext injects errors for the next calls.
type Memory struct {
	mu          sync.Mutex
	checkoutURL string
	txs         map[string]Confirmation
	failures    []error
	calls       int
}

// NewMemory returns a fake provider whose redirect URLs start with checkoutURL.
func NewMemory(checkoutURL string) *Memory {
	if checkoutURL == "" {
		checkoutURL = "https://checkout.local/pay"
	}
	return &Memory{
		checkoutURL: strings.TrimSuffix(checkoutURL, "/"),
		txs:         make(map[string]Confirmation),
	}
}

func (m *Memory) CreateIntent(ctx context.Context, intent Intent) (Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.nextFailure(); err != nil {
		return Checkout{}, err
	}
	if intent.Amount <= 0 || intent.Currency == "" {
		return Checkout{}, fmt.Errorf("%w: amount and currency are required", ErrInvalidIntent)
	}

	ref := "ref_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	m.txs[ref] = Confirmation{
		Reference: ref,
		Status:    StatusPending,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		TenantID:  intent.TenantID.String(),
		Plan:      intent.Plan,
	}
	return Checkout{Reference: ref, RedirectURL: m.checkoutURL + "/" + ref}, nil
}

func (m *Memory) FetchStatus(ctx context.Context, reference string) (Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.nextFailure(); err != nil {
		return Confirmation{}, err
	}
	conf, ok := m.txs[reference]
	if !ok {
		return Confirmation{}, ErrNotFound
	}
	return conf, nil
}

// Settle sets the provider-side outcome for reference. A zero amount or
// empty currency keeps the intent's values.
func (m *Memory) Settle(reference string, status Status, amount int64, currency string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conf := m.txs[reference]
	conf.Reference = reference
	conf.Status = status
	if amount != 0 {
		conf.Amount = amount
	}
	if currency != "" {
		conf.Currency = currency
	}
	m.txs[reference] = conf
}

// FailNext queues errors returned by the next calls, in order.
func (m *Memory) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls returns the number of CreateIntent and FetchStatus calls made.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Memory) nextFailure() error {
	m.calls++
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

// DecodeEvent accepts Paystack-shaped bodies so local setups can replay
// real notifications against the fake provider.
func (m *Memory) DecodeEvent(body []byte) (Event, error) {
	return decodePaystackEvent(body)
}
