package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schoolpay/handler"
	"github.com/dmitrymomot/schoolpay/pkg/audit"
	"github.com/dmitrymomot/schoolpay/pkg/gateway"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
	"github.com/dmitrymomot/schoolpay/pkg/webhook"
)

// Webhook results reported in the response body and in metrics.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)

// WebhookResponse is the body returned to the gateway.
type WebhookResponse struct {
	Result    string `json:"result"`
	Reference string `json:"reference,omitempty"`
}

// WebhookReceiver handles signed push notifications from the gateway.
type WebhookReceiver struct {
	verifier   webhook.Verifier
	decoder    gateway.EventDecoder
	reconciler *Reconciler
	maxBody    int64
	cfg        config
}

func NewWebhookReceiver(verifier webhook.Verifier, decoder gateway.EventDecoder, reconciler *Reconciler, opts ...Option) *WebhookReceiver {
	if verifier == nil || decoder == nil {
		panic("billing: webhook verifier and decoder are required")
	}
	return &WebhookReceiver{
		verifier:   verifier,
		decoder:    decoder,
		reconciler: reconciler,
		maxBody:    webhook.DefaultMaxBodySize,
		cfg:        newConfig(opts),
	}
}

// ServeHTTP verifies the signature over the raw body before anything else
// is looked at. Terminal business rejections are acknowledged with 200 so
// the gateway stops retrying; store failures answer 500 to invite a retry.
func (h *WebhookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := webhook.ReadBody(r, h.maxBody)
	if err != nil {
		h.cfg.metrics.ObserveWebhook("malformed")
		if errors.Is(err, webhook.ErrPayloadTooLarge) {
			h.render(w, r, handler.JSONError(handler.ErrRequestEntityTooLarge))
			return
		}
		h.render(w, r, ErrorResponse(errors.Join(ErrValidation, err)))
		return
	}

	if err := h.verifier.Verify(r, body); err != nil {
		h.cfg.metrics.ObserveWebhook("invalid_signature")
		h.cfg.log.WarnContext(ctx, "webhook signature rejected",
			slog.String("remote_addr", r.RemoteAddr),
			logger.Error(err),
			logger.Component("webhook"),
		)
		h.cfg.record(ctx, ActionInvalidSignature, err,
			audit.WithActor(SourceWebhook),
			audit.WithResult(audit.ResultFailure),
			audit.WithMetadata("remote_addr", r.RemoteAddr),
			audit.WithMetadata("body_size", len(body)),
		)
		h.render(w, r, ErrorResponse(errors.Join(ErrInvalidSignature, err)))
		return
	}

	event, err := h.decoder.DecodeEvent(body)
	if err != nil {
		h.cfg.metrics.ObserveWebhook("malformed")
		h.cfg.log.WarnContext(ctx, "malformed webhook event", logger.Error(err), logger.Component("webhook"))
		h.render(w, r, ErrorResponse(errors.Join(ErrValidation, err)))
		return
	}

	if event.Type != gateway.EventChargeSuccess {
		h.cfg.metrics.ObserveWebhook(WebhookIgnored)
		h.cfg.log.DebugContext(ctx, "webhook event ignored", logger.EventType(event.Type))
		h.render(w, r, handler.JSON(WebhookResponse{Result: WebhookIgnored, Reference: event.Reference}))
		return
	}

	// Metadata is informational; a malformed tenant id is left to the
	// ledger, which is authoritative for correlation.
	tenantID, _ := uuid.Parse(event.TenantID)

	out, err := h.reconciler.Activate(ctx, ActivateParams{
		TenantID:  tenantID,
		Plan:      event.Plan,
		Reference: event.Reference,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Channel:   event.Channel,
		Source:    SourceWebhook,
	})
	switch {
	case err == nil:
		result := WebhookProcessed
		if out.Duplicate {
			result = WebhookDuplicate
		}
		h.cfg.metrics.ObserveWebhook(result)
		h.render(w, r, handler.JSON(WebhookResponse{Result: result, Reference: event.Reference}))
	case isTerminalRejection(err):
		h.cfg.metrics.ObserveWebhook(WebhookRejected)
		h.cfg.log.WarnContext(ctx, "webhook event rejected",
			logger.Reference(event.Reference),
			logger.Error(err),
			logger.Component("webhook"),
		)
		h.render(w, r, handler.JSON(WebhookResponse{Result: WebhookRejected, Reference: event.Reference}))
	default:
		h.cfg.metrics.ObserveWebhook("error")
		h.render(w, r, ErrorResponse(err))
	}
}

func (h *WebhookReceiver) render(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	if err := resp.Render(w, r); err != nil {
		h.cfg.log.ErrorContext(r.Context(), "failed to render webhook response", logger.Error(err))
	}
}

// isTerminalRejection reports errors a redelivery cannot change.
func isTerminalRejection(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrUnknownTransaction,
		ErrAmountMismatch,
		ErrCurrencyMismatch,
		ErrTransactionFailed,
		ErrTransactionAbandoned,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
