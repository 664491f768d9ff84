package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the provider's view of a payment, normalized.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// EventChargeSuccess is the canonical type of a successful charge notification.
const EventChargeSuccess = "charge.success"

// Metadata keys carried on intents for correlation.
const (
	MetaTenantID = "tenant_id"
	MetaPlan     = "plan"
)

// Intent describes a payment the provider should collect.
type Intent struct {
	TenantID    uuid.UUID
	Plan        string
	Amount      int64 // minor units
	Currency    string
	Email       string
	PriceID     string // catalog-driven providers only
	CallbackURL string
}

// Checkout is the provider's answer to an intent.
type Checkout struct {
	Reference   string
	RedirectURL string
}

// Confirmation is the authoritative state of a transaction at the provider.
type Confirmation struct {
	Reference string
	Status    Status
	Amount    int64
	Currency  string
	Channel   string
	PaidAt    time.Time
	TenantID  string
	Plan      string
}

// Event is a decoded push notification.
type Event struct {
	Type      string
	Reference string
	TenantID  string
	Plan      string
	Amount    int64
	Currency  string
	Channel   string
}

// Client talks to a payment provider.
type Client interface {
	CreateIntent(ctx context.Context, intent Intent) (Checkout, error)
	FetchStatus(ctx context.Context, reference string) (Confirmation, error)
}

// EventDecoder turns a verified notification body into an Event. Events the
// provider sends that are not charge confirmations keep their own Type.
type EventDecoder interface {
	DecodeEvent(body []byte) (Event, error)
}
