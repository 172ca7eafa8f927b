package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

const (
	mercadoPagoDefaultAPI      = "https://api.mercadopago.com"
	mercadoPagoSignatureMaxAge = 5 * time.Minute
	mercadoPagoWebhookPath     = "/api/v1/payments/webhook/mercadopago"

	mpStatusApproved = "approved"
	mpStatusRejected = "rejected"
)

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
	APIURL        string
	BackendURL    string
	// Live selects the real API. When false, Start renders a local PIX code
	// and webhooks are trusted to carry their own status.
	Live bool
}

// MercadoPago settles PIX payments.
type MercadoPago struct {
	cfg    MercadoPagoConfig
	client *http.Client
	now    func() time.Time
}

func NewMercadoPago(cfg MercadoPagoConfig, client *http.Client) *MercadoPago {
	if cfg.APIURL == "" {
		cfg.APIURL = mercadoPagoDefaultAPI
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &MercadoPago{cfg: cfg, client: client, now: time.Now}
}

func (m *MercadoPago) Provider() domain.Provider { return domain.ProviderMercadoPago }

type mpPreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPaymentType struct {
	ID string `json:"id"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	AutoReturn        string             `json:"auto_return,omitempty"`
	PaymentMethods    struct {
		ExcludedPaymentTypes []mpPaymentType `json:"excluded_payment_types"`
		Installments         int             `json:"installments"`
	} `json:"payment_methods"`
}

type mpPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
}

func (m *MercadoPago) Start(ctx context.Context, p *models.Payment) (*Checkout, error) {
	if !m.cfg.Live {
		return m.simulatedPix(p)
	}

	body := mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			Title:      fmt.Sprintf("Order #%s", p.OrderID),
			Quantity:   1,
			UnitPrice:  p.Amount.InexactFloat64(),
			CurrencyID: "BRL",
		}},
		ExternalReference: p.ID.String(),
		AutoReturn:        "approved",
	}
	if m.cfg.BackendURL != "" {
		body.NotificationURL = m.cfg.BackendURL + mercadoPagoWebhookPath
	}
	body.PaymentMethods.ExcludedPaymentTypes = []mpPaymentType{{ID: "credit_card"}, {ID: "debit_card"}, {ID: "ticket"}}
	body.PaymentMethods.Installments = 1

	var pref mpPreference
	if err := m.call(ctx, http.MethodPost, "/checkout/preferences", p.ID.String(), body, &pref); err != nil {
		return nil, err
	}
	if pref.ID == "" {
		return nil, fmt.Errorf("%w: mercadopago: preference without id", domain.ErrGateway)
	}

	return &Checkout{
		Status:       domain.PaymentProcessing,
		PreferenceID: pref.ID,
		InitPoint:    pref.InitPoint,
		SandboxPoint: pref.SandboxInitPoint,
		PixQRCodeURL: pref.InitPoint,
		Metadata: map[string]any{
			"preference": map[string]any{
				"id":                 pref.ID,
				"init_point":         pref.InitPoint,
				"sandbox_init_point": pref.SandboxInitPoint,
			},
		},
	}, nil
}

// SimulatedPixCode is the copy-paste string rendered when no live provider
// is configured. It is stable for a given payment id.
func SimulatedPixCode(paymentID uuid.UUID) string {
	key := strings.ToUpper(strings.ReplaceAll(paymentID.String(), "-", ""))[:11]
	return "00020126330014BR.GOV.BCB.PIX0111" + key +
		"5204000053039865802BR5925Joao Macarrao6009SAO PAULO62070503***6304"
}

func (m *MercadoPago) simulatedPix(p *models.Payment) (*Checkout, error) {
	code := SimulatedPixCode(p.ID)
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: render pix qr: %v", domain.ErrGateway, err)
	}
	return &Checkout{
		Status:       domain.PaymentProcessing,
		PixQRCode:    base64.StdEncoding.EncodeToString(png),
		PixCopyPaste: code,
		Metadata:     map[string]any{"simulated": true},
	}, nil
}

// VerifyWebhook checks the x-signature header against the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (m *MercadoPago) VerifyWebhook(req WebhookRequest) error {
	if m.cfg.WebhookSecret == "" {
		return nil
	}
	if req.Signature == "" {
		return fmt.Errorf("%w: missing x-signature header", domain.ErrWebhookVerificationFailed)
	}
	h := parseSignatureHeader(req.Signature)
	ts := h.first("ts")
	if ts == "" || len(h["v1"]) == 0 {
		return fmt.Errorf("%w: malformed x-signature header", domain.ErrWebhookVerificationFailed)
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(mpDataID(req.Payload)), req.RequestID, ts)
	if !matchAny(signHex(m.cfg.WebhookSecret, manifest), h["v1"]) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrWebhookVerificationFailed)
	}
	return checkTimestamp(ts, m.now(), mercadoPagoSignatureMaxAge)
}

type mpNotification struct {
	Type              string          `json:"type"`
	Topic             string          `json:"topic"`
	ID                json.RawMessage `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	Data              struct {
		ID                json.RawMessage `json:"id"`
		Status            string          `json:"status"`
		ExternalReference string          `json:"external_reference"`
	} `json:"data"`
}

// rawID accepts both "123" and 123.
func rawID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func mpDataID(payload []byte) string {
	var n mpNotification
	if json.Unmarshal(payload, &n) != nil {
		return ""
	}
	if id := rawID(n.Data.ID); id != "" {
		return id
	}
	return rawID(n.ID)
}

func (m *MercadoPago) ParseWebhook(ctx context.Context, payload []byte) (*Notification, error) {
	var raw mpNotification
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("mercadopago: decode notification: %w", err)
	}
	topic := raw.Topic
	if topic == "" {
		topic = raw.Type
	}
	n := &Notification{EventType: topic}
	if topic != "payment" {
		return n, nil
	}

	mpID := rawID(raw.Data.ID)
	if mpID == "" {
		mpID = rawID(raw.ID)
	}
	if mpID == "" {
		return nil, errors.New("mercadopago: payment notification without id")
	}

	info := mpPayment{
		ID:                json.Number(mpID),
		Status:            firstNonEmpty(raw.Data.Status, raw.Status),
		ExternalReference: firstNonEmpty(raw.Data.ExternalReference, raw.ExternalReference),
	}
	if m.cfg.Live {
		if err := m.call(ctx, http.MethodGet, "/v1/payments/"+mpID, "", nil, &info); err != nil {
			return nil, err
		}
	}

	n.Reference = info.ID.String()
	n.TransactionID = info.ID.String()
	if id, err := uuid.Parse(info.ExternalReference); err == nil {
		n.PaymentID = id
	}
	switch info.Status {
	case mpStatusApproved:
		n.Outcome = OutcomeSucceeded
	case mpStatusRejected:
		n.Outcome = OutcomeFailed
		n.Message = "payment rejected"
		if info.StatusDetail != "" {
			n.Message += ": " + info.StatusDetail
		}
	}
	return n, nil
}

func (m *MercadoPago) call(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	if m.cfg.AccessToken == "" {
		return fmt.Errorf("%w: mercadopago is not configured", domain.ErrGateway)
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: mercadopago: encode request: %v", domain.ErrGateway, err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.cfg.APIURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mercadopago: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: mercadopago: read response: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var eb struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
			return fmt.Errorf("%w: mercadopago: %s", domain.ErrGateway, eb.Message)
		}
		return fmt.Errorf("%w: mercadopago: status %d", domain.ErrGateway, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: mercadopago: decode response: %v", domain.ErrGateway, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
