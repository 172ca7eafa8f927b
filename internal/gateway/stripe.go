package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

const (
	stripeDefaultAPI      = "https://api.stripe.com"
	stripeSignatureMaxAge = 5 * time.Minute

	stripeEventSucceeded = "payment_intent.succeeded"
	stripeEventFailed    = "payment_intent.payment_failed"
)

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	APIURL         string
	Currency       string
}

// Stripe settles card payments through payment intents.
type Stripe struct {
	cfg    StripeConfig
	client *http.Client
	now    func() time.Time
}

func NewStripe(cfg StripeConfig, client *http.Client) *Stripe {
	if cfg.APIURL == "" {
		cfg.APIURL = stripeDefaultAPI
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "brl"
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Stripe{cfg: cfg, client: client, now: time.Now}
}

func (s *Stripe) Provider() domain.Provider { return domain.ProviderStripe }

type stripeIntent struct {
	ID               string            `json:"id"`
	ClientSecret     string            `json:"client_secret"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Stripe) Start(ctx context.Context, p *models.Payment) (*Checkout, error) {
	if s.cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe is not configured", domain.ErrGateway)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(domain.ToCents(p.Amount), 10))
	form.Set("currency", s.cfg.Currency)
	form.Set("description", fmt.Sprintf("Order #%s", p.OrderID))
	form.Set("metadata[payment_id]", p.ID.String())
	form.Set("metadata[order_id]", p.OrderID.String())
	form.Set("metadata[user_id]", p.UserID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", p.ID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: read response: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var eb stripeErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			return nil, fmt.Errorf("%w: stripe: %s", domain.ErrGateway, eb.Error.Message)
		}
		return nil, fmt.Errorf("%w: stripe: status %d", domain.ErrGateway, resp.StatusCode)
	}

	var intent stripeIntent
	if err := json.Unmarshal(body, &intent); err != nil || intent.ID == "" {
		return nil, fmt.Errorf("%w: stripe: malformed intent response", domain.ErrGateway)
	}

	return &Checkout{
		Status:          domain.PaymentProcessing,
		TransactionID:   intent.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PublishableKey:  s.cfg.PublishableKey,
		Metadata: map[string]any{
			"stripe_intent": map[string]any{"id": intent.ID, "status": intent.Status},
		},
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header: an HMAC-SHA256 of
// "<t>.<payload>" keyed by the endpoint secret. Without a secret every call
// is accepted.
func (s *Stripe) VerifyWebhook(req WebhookRequest) error {
	if s.cfg.WebhookSecret == "" {
		return nil
	}
	if req.Signature == "" {
		return fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrWebhookVerificationFailed)
	}
	h := parseSignatureHeader(req.Signature)
	ts := h.first("t")
	if ts == "" || len(h["v1"]) == 0 {
		return fmt.Errorf("%w: malformed Stripe-Signature header", domain.ErrWebhookVerificationFailed)
	}
	expected := signHex(s.cfg.WebhookSecret, ts+"."+string(req.Payload))
	if !matchAny(expected, h["v1"]) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrWebhookVerificationFailed)
	}
	return checkTimestamp(ts, s.now(), stripeSignatureMaxAge)
}

func (s *Stripe) ParseWebhook(_ context.Context, payload []byte) (*Notification, error) {
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object stripeIntent `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: decode event: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("stripe: event without type")
	}

	intent := event.Data.Object
	n := &Notification{
		EventType:     event.Type,
		Reference:     intent.ID,
		TransactionID: intent.ID,
	}
	if id, err := uuid.Parse(intent.Metadata["payment_id"]); err == nil {
		n.PaymentID = id
	}

	switch event.Type {
	case stripeEventSucceeded:
		n.Outcome = OutcomeSucceeded
	case stripeEventFailed:
		n.Outcome = OutcomeFailed
		n.Message = "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
			n.Message = intent.LastPaymentError.Message
		}
	}
	return n, nil
}
