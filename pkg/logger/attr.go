package logger

import (
	"fmt"
	"log/slog"
)

// Attribute keys shared by every component, so log queries stay stable.
const (
	KeyError     = "error"
	KeyTenantID  = "tenant_id"
	KeyRequestID = "request_id"
	KeyReference = "reference"
	KeyPlan      = "plan"
	KeyStatus    = "status"
	KeyAmount    = "amount"
	KeyEventType = "event_type"
	KeyChannel   = "channel"
	KeyRetry     = "retry_count"
	KeyComponent = "component"
)

// Error is empty for a nil err, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}

// TenantID accepts uuid.UUID, string or anything with a String method.
func TenantID(id any) slog.Attr { return stringer(KeyTenantID, id) }

func RequestID(id any) slog.Attr { return stringer(KeyRequestID, id) }

func Reference(ref string) slog.Attr { return slog.String(KeyReference, ref) }

func Plan(name string) slog.Attr { return slog.String(KeyPlan, name) }

func Status(s any) slog.Attr { return stringer(KeyStatus, s) }

// Amount groups a minor-unit amount with its ISO currency code.
func Amount(minor int64, currency string) slog.Attr {
	return slog.Group(KeyAmount, slog.Int64("minor", minor), slog.String("currency", currency))
}

func EventType(t string) slog.Attr { return slog.String(KeyEventType, t) }

// Channel names how a payment was confirmed: webhook or verify.
func Channel(name string) slog.Attr { return slog.String(KeyChannel, name) }

func RetryCount(n int) slog.Attr { return slog.Int(KeyRetry, n) }

func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

func stringer(key string, v any) slog.Attr {
	switch v := v.(type) {
	case nil:
		return slog.Attr{}
	case string:
		if v == "" {
			return slog.Attr{}
		}
		return slog.String(key, v)
	case fmt.Stringer:
		return slog.String(key, v.String())
	default:
		return slog.Any(key, v)
	}
}
