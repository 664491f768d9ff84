package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PaystackConfig configures the Paystack REST client.
type PaystackConfig struct {
	BaseURL     string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.paystack.co"`
	SecretKey   string        `env:"GATEWAY_SECRET_KEY"`
	CallbackURL string        `env:"GATEWAY_CALLBACK_URL"`
	Timeout     time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
}

// Paystack implements Client and EventDecoder for the Paystack transaction API.
type Paystack struct {
	baseURL     string
	secretKey   string
	callbackURL string
	http        *http.Client
}

// NewPaystack validates cfg and builds a client. httpClient may be nil.
func NewPaystack(cfg PaystackConfig, httpClient *http.Client) (*Paystack, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: GATEWAY_SECRET_KEY is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Paystack{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		http:        httpClient,
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransaction struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    *time.Time      `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

type paystackEvent struct {
	Event string              `json:"event"`
	Data  paystackTransaction `json:"data"`
}

// CreateIntent calls POST /transaction/initialize. Tenant and plan travel as
// metadata and come back on verification and webhooks.
func (p *Paystack) CreateIntent(ctx context.Context, intent Intent) (Checkout, error) {
	if intent.Email == "" || intent.Amount <= 0 || intent.Currency == "" {
		return Checkout{}, fmt.Errorf("%w: email, amount and currency are required", ErrInvalidIntent)
	}

	callback := intent.CallbackURL
	if callback == "" {
		callback = p.callbackURL
	}

	payload := map[string]any{
		"email":    intent.Email,
		"amount":   intent.Amount,
		"currency": intent.Currency,
		"metadata": map[string]string{
			MetaTenantID: intent.TenantID.String(),
			MetaPlan:     intent.Plan,
		},
	}
	if callback != "" {
		payload["callback_url"] = callback
	}

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return Checkout{}, err
	}
	if data.Reference == "" || data.AuthorizationURL == "" {
		return Checkout{}, fmt.Errorf("%w: initialize returned no reference", ErrInvalidResponse)
	}

	return Checkout{Reference: data.Reference, RedirectURL: data.AuthorizationURL}, nil
}

// FetchStatus calls GET /transaction/verify/{reference}.
func (p *Paystack) FetchStatus(ctx context.Context, reference string) (Confirmation, error) {
	if reference == "" {
		return Confirmation{}, fmt.Errorf("%w: reference is required", ErrInvalidIntent)
	}

	var tx paystackTransaction
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &tx); err != nil {
		return Confirmation{}, err
	}

	conf := tx.confirmation()
	if conf.Reference == "" {
		conf.Reference = reference
	}
	return conf, nil
}

// DecodeEvent parses a Paystack webhook body.
func (p *Paystack) DecodeEvent(body []byte) (Event, error) {
	return decodePaystackEvent(body)
}

func decodePaystackEvent(body []byte) (Event, error) {
	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}
	if ev.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	}

	conf := ev.Data.confirmation()
	return Event{
		Type:      ev.Event,
		Reference: conf.Reference,
		TenantID:  conf.TenantID,
		Plan:      conf.Plan,
		Amount:    conf.Amount,
		Currency:  conf.Currency,
		Channel:   conf.Channel,
	}, nil
}

func (t paystackTransaction) confirmation() Confirmation {
	c := Confirmation{
		Reference: t.Reference,
		Status:    mapPaystackStatus(t.Status),
		Amount:    t.Amount,
		Currency:  strings.ToUpper(t.Currency),
		Channel:   t.Channel,
	}
	if t.PaidAt != nil {
		c.PaidAt = *t.PaidAt
	}

	// Paystack echoes metadata as an object, or as "" when none was sent.
	var meta map[string]any
	if len(t.Metadata) > 0 && json.Unmarshal(t.Metadata, &meta) == nil {
		c.TenantID, _ = meta[MetaTenantID].(string)
		c.Plan, _ = meta[MetaPlan].(string)
	}
	return c
}

func mapPaystackStatus(s string) Status {
	switch strings.ToLower(s) {
	case "success":
		return StatusSuccess
	case "failed", "reversed":
		return StatusFailed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}

func (p *Paystack) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransport(err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		var env paystackEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			return fmt.Errorf("%w: %s", err, env.Message)
		}
		return err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	if !env.Status {
		return fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	return nil
}

// classifyStatus maps HTTP status codes onto gateway errors.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, code)
	}
}
