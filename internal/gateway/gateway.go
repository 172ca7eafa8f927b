package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

// Checkout is what a provider handed back when a payment was started.
type Checkout struct {
	Status          domain.PaymentStatus
	TransactionID   string
	PaymentIntentID string
	PreferenceID    string
	ClientSecret    string
	PublishableKey  string
	InitPoint       string
	SandboxPoint    string
	PixQRCode       string
	PixQRCodeURL    string
	PixCopyPaste    string
	Metadata        map[string]any
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	}
	return "none"
}

// Notification is a parsed webhook. PaymentID is set when the provider echoes
// our own id back; Reference is the provider-side id.
type Notification struct {
	EventType     string
	PaymentID     uuid.UUID
	Reference     string
	TransactionID string
	Outcome       Outcome
	Message       string
}

type WebhookRequest struct {
	Payload   []byte
	Signature string
	RequestID string
}

type Adapter interface {
	Provider() domain.Provider
	Start(ctx context.Context, p *models.Payment) (*Checkout, error)
	VerifyWebhook(req WebhookRequest) error
	ParseWebhook(ctx context.Context, payload []byte) (*Notification, error)
}

type Registry struct {
	adapters map[domain.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

func (r *Registry) Get(p domain.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for provider %q", domain.ErrGateway, p)
	}
	return a, nil
}

// EventType reads the event name a provider put in a webhook body, falling
// back to "unknown" for bodies that are not JSON objects.
func EventType(payload []byte) string {
	var head struct {
		Type   string `json:"type"`
		Topic  string `json:"topic"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "unknown"
	}
	switch {
	case head.Type != "":
		return head.Type
	case head.Topic != "":
		return head.Topic
	case head.Action != "":
		return head.Action
	}
	return "unknown"
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
