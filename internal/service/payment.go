package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/metrics"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
	"github.com/Skotchmaster/restaurant_ordering/internal/notify"
	"github.com/Skotchmaster/restaurant_ordering/internal/repo"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

// PaymentService keeps exactly one Payment per Order and reconciles it with
// what the gateways report.
type PaymentService struct {
	repo     repo.Store
	gateways *gateway.Registry
	notifier notify.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPaymentService(store repo.Store, gateways *gateway.Registry, n notify.Notifier, m *metrics.Metrics) *PaymentService {
	if n == nil {
		n = notify.NewBestEffort(notify.Nop{}, 0)
	}
	return &PaymentService{
		repo:     store,
		gateways: gateways,
		notifier: n,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *PaymentService) CreatePayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, method domain.PaymentMethod) (*models.Payment, error) {
	provider, err := domain.ProviderFor(method)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = svc.repo.Tx(ctx, func(tx repo.Store) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(order.UserID) {
			return domain.ErrForbidden
		}
		if _, err := tx.GetPaymentByOrder(ctx, order.ID); err == nil {
			return fmt.Errorf("%w: order %s", domain.ErrDuplicatePayment, order.ID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		p := &models.Payment{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Method:   method,
			Provider: provider,
			Status:   domain.PaymentPending,
			Amount:   order.Total,
		}
		// The unique index on order_id is the real guard; the lookup above
		// only gives the common case a clean error.
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("payment_created",
		"svc", "payment",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"provider", payment.Provider,
	)
	svc.metrics.PaymentCreated(string(payment.Provider))
	svc.notifier.Notify(ctx, notify.Event{
		Type:      notify.PaymentCreated,
		OrderID:   payment.OrderID,
		PaymentID: &payment.ID,
		UserID:    payment.UserID,
		Status:    string(payment.Status),
	})
	return payment, nil
}

// Dispatch hands a pending payment to its provider. A gateway failure marks
// the payment failed before the error is returned.
func (svc *PaymentService) Dispatch(ctx context.Context, paymentID uuid.UUID) (*models.Payment, *gateway.Checkout, error) {
	p, err := svc.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.PaymentPending {
		return nil, nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidPaymentTransition, p.Status)
	}
	adapter, err := svc.gateways.Get(p.Provider)
	if err != nil {
		return nil, nil, err
	}

	co, startErr := adapter.Start(ctx, p)
	if startErr != nil {
		svc.metrics.GatewayError(string(p.Provider))
		logging.FromContext(ctx).Warn("gateway_start_failed",
			"svc", "payment",
			"payment_id", p.ID,
			"provider", p.Provider,
			"error", startErr,
		)
		if _, err := svc.MarkFailed(ctx, p.ID, startErr.Error()); err != nil {
			return nil, nil, errors.Join(startErr, err)
		}
		if !errors.Is(startErr, domain.ErrGateway) {
			startErr = fmt.Errorf("%w: %v", domain.ErrGateway, startErr)
		}
		return nil, nil, startErr
	}

	var updated *models.Payment
	err = svc.repo.Tx(ctx, func(tx repo.Store) error {
		locked, err := tx.GetPaymentForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		// A webhook may already have settled it while Start was in flight.
		if locked.Status == domain.PaymentPending && co.Status != locked.Status {
			if err := domain.CheckPaymentTransition(locked.Status, co.Status); err != nil {
				return err
			}
			locked.Status = co.Status
		}
		applyCheckout(locked, co)
		if err := mergeMetadata(locked, co.Metadata); err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, locked); err != nil {
			return err
		}
		if err := tx.SetOrderPaymentStatus(ctx, locked.OrderID, domain.OrderPaymentStatusFor(locked.Status)); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logging.FromContext(ctx).Info("payment_dispatched",
		"svc", "payment",
		"payment_id", updated.ID,
		"provider", updated.Provider,
		"status", updated.Status,
	)
	return updated, co, nil
}

func applyCheckout(p *models.Payment, co *gateway.Checkout) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.TransactionID, co.TransactionID)
	set(&p.PaymentIntentID, co.PaymentIntentID)
	set(&p.PreferenceID, co.PreferenceID)
	set(&p.PixQRCode, co.PixQRCode)
	set(&p.PixQRCodeURL, co.PixQRCodeURL)
	set(&p.PixCopyPaste, co.PixCopyPaste)
}

func mergeMetadata(p *models.Payment, extra map[string]any) error {
	if len(extra) == 0 {
		return nil
	}
	meta := map[string]any{}
	if len(p.Metadata) > 0 {
		if err := json.Unmarshal(p.Metadata, &meta); err != nil {
			meta = map[string]any{}
		}
	}
	for k, v := range extra {
		meta[k] = v
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}
	p.Metadata = datatypes.JSON(data)
	return nil
}

// MarkCompleted settles a payment and marks its order paid. Repeating it on a
// completed payment changes nothing and emits nothing.
func (svc *PaymentService) MarkCompleted(ctx context.Context, paymentID uuid.UUID, transactionID string) (*models.Payment, error) {
	return svc.settle(ctx, paymentID, domain.PaymentCompleted, func(p *models.Payment, now time.Time) {
		p.CompletedAt = &now
		p.ErrorMessage = ""
		if transactionID != "" && p.TransactionID == "" {
			p.TransactionID = transactionID
		}
	})
}

// MarkFailed records the provider's message and marks the order's payment
// failed. Repeating it on a failed payment changes nothing.
func (svc *PaymentService) MarkFailed(ctx context.Context, paymentID uuid.UUID, message string) (*models.Payment, error) {
	return svc.settle(ctx, paymentID, domain.PaymentFailed, func(p *models.Payment, _ time.Time) {
		p.ErrorMessage = message
	})
}

func (svc *PaymentService) settle(ctx context.Context, paymentID uuid.UUID, to domain.PaymentStatus, mutate func(*models.Payment, time.Time)) (*models.Payment, error) {
	var (
		payment *models.Payment
		changed bool
	)
	err := svc.repo.Tx(ctx, func(tx repo.Store) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		payment = p
		if p.Status == to {
			return nil
		}
		if err := domain.CheckPaymentTransition(p.Status, to); err != nil {
			return err
		}
		p.Status = to
		mutate(p, svc.now())
		if err := tx.SavePayment(ctx, p); err != nil {
			return err
		}
		if err := tx.SetOrderPaymentStatus(ctx, p.OrderID, domain.OrderPaymentStatusFor(to)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return payment, nil
	}

	logging.FromContext(ctx).Info("payment_settled",
		"svc", "payment",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"status", payment.Status,
	)
	svc.metrics.PaymentOutcome(string(payment.Provider), string(payment.Status))

	eventType := notify.PaymentCompleted
	if to == domain.PaymentFailed {
		eventType = notify.PaymentFailed
	}
	svc.notifier.Notify(ctx, notify.Event{
		Type:      eventType,
		OrderID:   payment.OrderID,
		PaymentID: &payment.ID,
		UserID:    payment.UserID,
		Status:    string(payment.Status),
		Message:   payment.ErrorMessage,
	})
	return payment, nil
}

// ConfirmPayment is the manual settlement path: cash collected on delivery
// or a client-side confirmation carrying the provider's transaction id.
func (svc *PaymentService) ConfirmPayment(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, transactionID string) (*models.Payment, error) {
	if _, err := svc.Get(ctx, actor, paymentID); err != nil {
		return nil, err
	}
	return svc.MarkCompleted(ctx, paymentID, transactionID)
}

func (svc *PaymentService) Get(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	p, err := svc.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(p.UserID) {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
	}
	return p, nil
}

// History lists the actor's payments, or everyone's for staff.
func (svc *PaymentService) History(ctx context.Context, actor domain.Actor, status domain.PaymentStatus, limit, offset int) ([]models.Payment, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	f := repo.PaymentFilter{Status: status, Limit: limit, Offset: offset}
	if !actor.Privileged() {
		if actor.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: user required", domain.ErrValidation)
		}
		f.UserID = &actor.UserID
	}
	return svc.repo.ListPayments(ctx, f)
}
