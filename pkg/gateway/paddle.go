package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for Paddle Billing.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	CheckoutURL   string `env:"PADDLE_CHECKOUT_URL"`
}

// PaddleSignatureHeader carries Paddle's ts/h1 signature.
const PaddleSignatureHeader = "Paddle-Signature"

// Paddle implements Client and EventDecoder for Paddle Billing. Plans map to
// Paddle catalog prices through Intent.PriceID.
type Paddle struct {
	client      *paddle.SDK
	checkoutURL string
}

// NewPaddle builds an SDK client for the configured environment.
func NewPaddle(cfg PaddleConfig) (*Paddle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: PADDLE_API_KEY is required", ErrInvalidConfig)
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: invalid paddle environment %q", ErrInvalidConfig, cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	return &Paddle{client: client, checkoutURL: cfg.CheckoutURL}, nil
}

// CreateIntent creates a Paddle transaction for the plan's catalog price.
// The transaction id is the reference.
func (p *Paddle) CreateIntent(ctx context.Context, intent Intent) (Checkout, error) {
	if intent.PriceID == "" {
		return Checkout{}, fmt.Errorf("%w: plan %q has no paddle price id", ErrInvalidIntent, intent.Plan)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  intent.PriceID,
		Quantity: 1,
	})
	req := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			MetaTenantID: intent.TenantID.String(),
			MetaPlan:     intent.Plan,
		},
	}

	checkoutURL := intent.CallbackURL
	if checkoutURL == "" {
		checkoutURL = p.checkoutURL
	}
	if checkoutURL != "" {
		req.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(checkoutURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return Checkout{}, classifyTransport(err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil {
		return Checkout{}, fmt.Errorf("%w: no checkout url returned", ErrInvalidResponse)
	}

	return Checkout{Reference: tx.ID, RedirectURL: *tx.Checkout.URL}, nil
}

// FetchStatus reads the transaction from Paddle. Grand totals are decimal
// strings in minor units.
func (p *Paddle) FetchStatus(ctx context.Context, reference string) (Confirmation, error) {
	tx, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: reference,
	})
	if err != nil {
		return Confirmation{}, classifyTransport(err)
	}

	amount, err := strconv.ParseInt(tx.Details.Totals.GrandTotal, 10, 64)
	if err != nil {
		return Confirmation{}, errors.Join(ErrInvalidResponse, err)
	}

	conf := Confirmation{
		Reference: tx.ID,
		Status:    mapPaddleStatus(string(tx.Status)),
		Amount:    amount,
		Currency:  string(tx.CurrencyCode),
		Channel:   "paddle",
	}
	if tx.CustomData != nil {
		conf.TenantID, _ = tx.CustomData[MetaTenantID].(string)
		conf.Plan, _ = tx.CustomData[MetaPlan].(string)
	}
	return conf, nil
}

type paddleEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		ID           string         `json:"id"`
		Status       string         `json:"status"`
		CurrencyCode string         `json:"currency_code"`
		CustomData   map[string]any `json:"custom_data"`
		Details      struct {
			Totals struct {
				GrandTotal string `json:"grand_total"`
			} `json:"totals"`
		} `json:"details"`
	} `json:"data"`
}

// DecodeEvent maps transaction.completed onto EventChargeSuccess.
func (p *Paddle) DecodeEvent(body []byte) (Event, error) {
	var ev paddleEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}
	if ev.EventType == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	}

	out := Event{
		Type:      ev.EventType,
		Reference: ev.Data.ID,
		Currency:  ev.Data.CurrencyCode,
		Channel:   "paddle",
	}
	if ev.EventType == "transaction.completed" {
		out.Type = EventChargeSuccess
	}
	if total := ev.Data.Details.Totals.GrandTotal; total != "" {
		amount, err := strconv.ParseInt(total, 10, 64)
		if err != nil {
			return Event{}, errors.Join(ErrInvalidEvent, err)
		}
		out.Amount = amount
	}
	out.TenantID, _ = ev.Data.CustomData[MetaTenantID].(string)
	out.Plan, _ = ev.Data.CustomData[MetaPlan].(string)
	return out, nil
}

func mapPaddleStatus(s string) Status {
	switch s {
	case "completed", "paid":
		return StatusSuccess
	case "canceled":
		return StatusAbandoned
	case "past_due":
		return StatusFailed
	default:
		return StatusPending
	}
}

// PaddleVerifier adapts the SDK's webhook verifier to the webhook.Verifier
// shape used by the billing receiver.
type PaddleVerifier struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleVerifier(secret string) *PaddleVerifier {
	return &PaddleVerifier{verifier: paddle.NewWebhookVerifier(secret)}
}

// ErrPaddleSignature is returned when the SDK rejects a notification.
var ErrPaddleSignature = errors.New("gateway.errors.paddle_signature")

// Verify rebuilds a request around the already-read body because the SDK
// reads the body itself.
func (v *PaddleVerifier) Verify(r *http.Request, body []byte) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, r.URL.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Join(ErrPaddleSignature, err)
	}
	req.Header.Set(PaddleSignatureHeader, r.Header.Get(PaddleSignatureHeader))

	ok, err := v.verifier.Verify(req)
	if err != nil {
		return errors.Join(ErrPaddleSignature, err)
	}
	if !ok {
		return ErrPaddleSignature
	}
	return nil
}
