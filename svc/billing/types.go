package billing

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/pkg/limits"
)

// Plan describes a subscription plan. A limit of limits.Unlimited (-1)
// means the resource is not capped.
type Plan struct {
	Name              string   `yaml:"name" json:"name"`
	DisplayName       string   `yaml:"display_name" json:"display_name,omitempty"`
	PriceMinorUnits   int64    `yaml:"price" json:"price"`
	Currency          string   `yaml:"currency" json:"currency"`
	BillingPeriodDays int      `yaml:"billing_period_days" json:"billing_period_days"`
	MaxStudents       int64    `yaml:"max_students" json:"max_students"`
	MaxTeachers       int64    `yaml:"max_teachers" json:"max_teachers"`
	MaxStorageBytes   int64    `yaml:"max_storage_bytes" json:"max_storage_bytes"`
	Features          []string `yaml:"features" json:"features"`
	GatewayPriceID    string   `yaml:"gateway_price_id" json:"-"`
}

// HasFeature reports whether the plan grants capability.
func (p Plan) HasFeature(capability string) bool {
	return slices.Contains(p.Features, capability)
}

// BillingPeriod returns the length of one paid period.
func (p Plan) BillingPeriod() time.Duration {
	return time.Duration(p.BillingPeriodDays) * 24 * time.Hour
}

// IsFree reports whether the plan can be used without payment.
func (p Plan) IsFree() bool {
	return p.PriceMinorUnits == 0
}

// Limit returns the plan's ceiling for res. Unknown resources are unlimited.
func (p Plan) Limit(res limits.Resource) int64 {
	switch res {
	case limits.ResourceStudents:
		return p.MaxStudents
	case limits.ResourceTeachers:
		return p.MaxTeachers
	case limits.ResourceStorageBytes:
		return p.MaxStorageBytes
	default:
		return limits.Unlimited
	}
}

func (p Plan) clone() Plan {
	p.Features = slices.Clone(p.Features)
	return p
}

// SubscriptionStatus is the stored status of a tenant subscription.
// It is never trusted alone: see Subscription.EffectiveStatus.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Subscription is a tenant's plan assignment. Limits and features are
// copied from the plan on every write so they always match Plan.
type Subscription struct {
	TenantID             uuid.UUID          `json:"tenant_id"`
	Plan                 string             `json:"plan"`
	Status               SubscriptionStatus `json:"status"`
	StartDate            time.Time          `json:"start_date"`
	ExpiryDate           time.Time          `json:"expiry_date"`
	LastPaymentReference string             `json:"last_payment_reference,omitempty"`
	MaxStudents          int64              `json:"max_students"`
	MaxTeachers          int64              `json:"max_teachers"`
	MaxStorageBytes      int64              `json:"max_storage_bytes"`
	Features             []string           `json:"features"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// EffectiveActive reports whether the subscription grants its plan at now.
// An active status with a passed expiry is treated as expired.
func (s Subscription) EffectiveActive(now time.Time) bool {
	return s.Status == StatusActive && s.ExpiryDate.After(now)
}

// EffectiveStatus returns the status as observed at now.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == StatusActive && !s.ExpiryDate.After(now) {
		return StatusExpired
	}
	return s.Status
}

// HasFeature reports whether the denormalized feature set contains capability.
func (s Subscription) HasFeature(capability string) bool {
	return slices.Contains(s.Features, capability)
}

// Limit returns the stored ceiling for res.
func (s Subscription) Limit(res limits.Resource) int64 {
	switch res {
	case limits.ResourceStudents:
		return s.MaxStudents
	case limits.ResourceTeachers:
		return s.MaxTeachers
	case limits.ResourceStorageBytes:
		return s.MaxStorageBytes
	default:
		return limits.Unlimited
	}
}

// applyPlan copies limits and features from p.
func (s *Subscription) applyPlan(p Plan) {
	s.Plan = p.Name
	s.MaxStudents = p.MaxStudents
	s.MaxTeachers = p.MaxTeachers
	s.MaxStorageBytes = p.MaxStorageBytes
	s.Features = slices.Clone(p.Features)
}

func (s Subscription) clone() Subscription {
	s.Features = slices.Clone(s.Features)
	return s
}

// TransactionStatus is the ledger status of a payment attempt.
// Every status except pending is terminal.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxSuccess   TransactionStatus = "success"
	TxFailed    TransactionStatus = "failed"
	TxAbandoned TransactionStatus = "abandoned"
)

// Terminal reports whether s can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s != TxPending
}

// Transaction is one payment attempt, keyed by the gateway reference.
type Transaction struct {
	Reference     string            `json:"reference"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	Plan          string            `json:"plan"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	Channel       string            `json:"channel,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
}

// ClaimResult is the answer of Ledger.TryClaim. Exactly one concurrent
// caller observes Claimed for a given reference; the others get the
// stored terminal status.
type ClaimResult struct {
	Claimed bool
	Status  TransactionStatus
}

// Outcome describes what an activation did.
type Outcome struct {
	Reference    string            `json:"reference"`
	Status       TransactionStatus `json:"status"`
	Duplicate    bool              `json:"duplicate"`
	Extended     bool              `json:"extended"`
	Subscription Subscription      `json:"subscription"`
}
