package gateway

import (
	"context"
	"errors"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

// Manual covers cash: nothing leaves the process and the payment stays
// pending until someone confirms it on delivery.
type Manual struct{}

func (Manual) Provider() domain.Provider { return domain.ProviderManual }

func (Manual) Start(context.Context, *models.Payment) (*Checkout, error) {
	return &Checkout{Status: domain.PaymentPending}, nil
}

func (Manual) VerifyWebhook(WebhookRequest) error { return nil }

func (Manual) ParseWebhook(context.Context, []byte) (*Notification, error) {
	return nil, errors.New("manual payments have no webhooks")
}
