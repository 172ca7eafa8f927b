package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

const (
	webhookRejected   = "rejected"
	webhookUnparsable = "unparsable"
	webhookIgnored    = "ignored"
	webhookUnresolved = "unresolved"
	webhookConflict   = "conflict"
	webhookProcessed  = "processed"
)

// HandleWebhook archives the notification before anything else, then
// verifies, parses and applies it. Only a failed signature check or a
// storage/gateway error is reported back; everything else is recorded on
// the audit row and acknowledged.
func (svc *PaymentService) HandleWebhook(ctx context.Context, provider domain.Provider, req gateway.WebhookRequest) (*models.PaymentWebhook, error) {
	l := logging.FromContext(ctx).With("svc", "payment", "provider", provider)

	adapter, err := svc.gateways.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrNotFound, provider)
	}

	verifyErr := adapter.VerifyWebhook(req)
	rec := &models.PaymentWebhook{
		Provider:  string(provider),
		EventType: gateway.EventType(req.Payload),
		Payload:   string(req.Payload),
		Verified:  verifyErr == nil,
	}
	if verifyErr != nil {
		rec.Error = verifyErr.Error()
	}
	if err := svc.repo.CreateWebhook(ctx, rec); err != nil {
		return nil, fmt.Errorf("archive webhook: %w", err)
	}
	l = l.With("webhook_id", rec.ID, "event_type", rec.EventType)

	if verifyErr != nil {
		l.Warn("webhook_rejected", "error", verifyErr)
		svc.metrics.Webhook(string(provider), webhookRejected)
		if !errors.Is(verifyErr, domain.ErrWebhookVerificationFailed) {
			verifyErr = fmt.Errorf("%w: %v", domain.ErrWebhookVerificationFailed, verifyErr)
		}
		return rec, verifyErr
	}

	n, err := adapter.ParseWebhook(ctx, req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrGateway) {
			// Provider lookup failed; let the gateway retry.
			svc.metrics.GatewayError(string(provider))
			return rec, svc.finish(ctx, rec, nil, false, err.Error(), webhookUnparsable, err)
		}
		l.Warn("webhook_unparsable", "error", err)
		return rec, svc.finish(ctx, rec, nil, false, err.Error(), webhookUnparsable, nil)
	}
	if n.Outcome == gateway.OutcomeNone {
		return rec, svc.finish(ctx, rec, nil, false, "", webhookIgnored, nil)
	}

	p, err := svc.resolve(ctx, provider, n)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Info("webhook_unresolved", "reference", n.Reference, "payment_id", n.PaymentID)
			return rec, svc.finish(ctx, rec, nil, false, "payment not found", webhookUnresolved, nil)
		}
		return rec, err
	}

	switch n.Outcome {
	case gateway.OutcomeSucceeded:
		_, err = svc.MarkCompleted(ctx, p.ID, n.TransactionID)
	case gateway.OutcomeFailed:
		_, err = svc.MarkFailed(ctx, p.ID, n.Message)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPaymentTransition) {
			// e.g. a success arriving for a payment already failed.
			l.Warn("webhook_conflict", "payment_id", p.ID, "outcome", n.Outcome.String(), "error", err)
			return rec, svc.finish(ctx, rec, &p.ID, true, err.Error(), webhookConflict, nil)
		}
		return rec, err
	}

	l.Info("webhook_processed", "payment_id", p.ID, "outcome", n.Outcome.String())
	return rec, svc.finish(ctx, rec, &p.ID, true, "", webhookProcessed, nil)
}

func (svc *PaymentService) finish(ctx context.Context, rec *models.PaymentWebhook, paymentID *uuid.UUID, processed bool, msg, result string, cause error) error {
	svc.metrics.Webhook(rec.Provider, result)
	if err := svc.repo.MarkWebhook(ctx, rec.ID, paymentID, processed, msg); err != nil {
		return errors.Join(cause, fmt.Errorf("update webhook %d: %w", rec.ID, err))
	}
	rec.PaymentID = paymentID
	rec.Processed = processed
	rec.Error = msg
	return cause
}

// resolve prefers our own id when the provider echoes it back and falls back
// to the provider-side reference.
func (svc *PaymentService) resolve(ctx context.Context, provider domain.Provider, n *gateway.Notification) (*models.Payment, error) {
	if n.PaymentID != uuid.Nil {
		p, err := svc.repo.GetPayment(ctx, n.PaymentID)
		if err == nil && p.Provider == provider {
			return p, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return svc.repo.FindPaymentByReference(ctx, provider, n.Reference)
}
