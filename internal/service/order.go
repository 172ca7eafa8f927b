package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/metrics"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
	"github.com/Skotchmaster/restaurant_ordering/internal/notify"
	"github.com/Skotchmaster/restaurant_ordering/internal/repo"
	"github.com/Skotchmaster/restaurant_ordering/internal/transport"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

const DefaultDeliveryCity = "São Paulo"

type OrderConfig struct {
	DefaultDeliveryFee decimal.Decimal
}

// OrderService creates orders against catalog stock and drives them through
// the status table.
type OrderService struct {
	repo     repo.Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	cfg      OrderConfig
	now      func() time.Time
}

func NewOrderService(store repo.Store, n notify.Notifier, m *metrics.Metrics, cfg OrderConfig) *OrderService {
	if n == nil {
		n = notify.NewBestEffort(notify.Nop{}, 0)
	}
	return &OrderService{repo: store, notifier: n, metrics: m, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (svc *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, req transport.CreateOrderRequest) (*models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user required", domain.ErrValidation)
	}
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	fee := svc.cfg.DefaultDeliveryFee
	if req.DeliveryFee != nil {
		fee = *req.DeliveryFee
	}
	city := strings.TrimSpace(req.DeliveryCity)
	if city == "" {
		city = DefaultDeliveryCity
	}

	order := &models.Order{
		UserID:          actor.UserID,
		Status:          domain.OrderPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.OrderPaymentPending,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		DeliveryCity:    city,
		DeliveryZipCode: strings.TrimSpace(req.DeliveryZipCode),
		DeliveryFee:     domain.RoundMoney(fee),
		Notes:           req.Notes,
	}

	err := svc.repo.Tx(ctx, func(tx repo.Store) error {
		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))

		for i, it := range req.Items {
			dish, err := tx.GetDish(ctx, it.DishID)
			if err != nil {
				return err
			}
			if !dish.Available {
				return fmt.Errorf("%w: %s", domain.ErrDishUnavailable, dish.Name)
			}
			if dish.Stock < it.Quantity {
				return insufficientStock(dish, it.Quantity)
			}
			ok, err := tx.ReserveStock(ctx, dish.ID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// Lost a race since the read above; report the fresh count.
				if fresh, ferr := tx.GetDish(ctx, dish.ID); ferr == nil {
					dish = fresh
				}
				return insufficientStock(dish, it.Quantity)
			}

			unit := domain.RoundMoney(dish.Price)
			line := domain.LineSubtotal(unit, it.Quantity)
			items = append(items, models.OrderItem{
				Position:  i,
				DishID:    dish.ID,
				DishName:  dish.Name,
				Quantity:  it.Quantity,
				UnitPrice: unit,
				Subtotal:  line,
				Notes:     it.Notes,
			})
			subtotal = subtotal.Add(line)
		}

		order.Items = items
		order.Subtotal = domain.RoundMoney(subtotal)
		order.Total = domain.RoundMoney(order.Subtotal.Add(order.DeliveryFee))
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		svc.metrics.OrderRejected(rejectionReason(err))
		return nil, err
	}

	logging.FromContext(ctx).Info("order_created",
		"svc", "order",
		"order_id", order.ID,
		"items", len(order.Items),
		"total", order.Total.StringFixed(domain.MoneyPlaces),
	)
	svc.metrics.OrderCreated()
	svc.notifier.Notify(ctx, notify.Event{
		Type:    notify.OrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  string(order.Status),
	})
	return order, nil
}

func validateCreateOrder(req transport.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: items required", domain.ErrValidation)
	}
	for i, it := range req.Items {
		if it.DishID == uuid.Nil {
			return fmt.Errorf("%w: items[%d].dish_id required", domain.ErrValidation, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be >= 1", domain.ErrValidation, i)
		}
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment_method %q", domain.ErrValidation, req.PaymentMethod)
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return fmt.Errorf("%w: delivery_address required", domain.ErrValidation)
	}
	if req.DeliveryFee != nil && req.DeliveryFee.IsNegative() {
		return fmt.Errorf("%w: delivery_fee must be >= 0", domain.ErrValidation)
	}
	return nil
}

func insufficientStock(d *models.Dish, requested int) error {
	return fmt.Errorf("%w: %s has %d available, %d requested", domain.ErrInsufficientStock, d.Name, d.Stock, requested)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrDishNotFound):
		return "dish_not_found"
	case errors.Is(err, domain.ErrDishUnavailable):
		return "dish_unavailable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	}
	return "internal"
}

// GetOrder hides orders the actor may not see behind ErrNotFound.
func (svc *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*models.Order, error) {
	o, err := svc.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return o, nil
}

func (svc *OrderService) ListMine(ctx context.Context, actor domain.Actor, status domain.OrderStatus, limit, offset int) ([]models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user required", domain.ErrValidation)
	}
	f := repo.OrderFilter{UserID: &actor.UserID, Limit: limit, Offset: offset}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
		f.Statuses = []domain.OrderStatus{status}
	}
	return svc.repo.ListOrders(ctx, f)
}

func (svc *OrderService) ListAll(ctx context.Context, actor domain.Actor, status domain.OrderStatus, limit, offset int) ([]models.Order, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	f := repo.OrderFilter{Limit: limit, Offset: offset}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
		f.Statuses = []domain.OrderStatus{status}
	}
	return svc.repo.ListOrders(ctx, f)
}

func (svc *OrderService) ListPending(ctx context.Context, actor domain.Actor, limit, offset int) ([]models.Order, error) {
	return svc.ListAll(ctx, actor, domain.OrderPending, limit, offset)
}

func (svc *OrderService) ListInProgress(ctx context.Context, actor domain.Actor, limit, offset int) ([]models.Order, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	return svc.repo.ListOrders(ctx, repo.OrderFilter{Statuses: domain.InProgressStatuses, Limit: limit, Offset: offset})
}

// UpdateStatus is the privileged path through the status table. Moving to
// cancelled here restitutes stock exactly like CancelOrder.
func (svc *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus) (*models.Order, error) {
	if !actor.Privileged() {
		return nil, domain.ErrForbidden
	}

	var (
		order *models.Order
		from  domain.OrderStatus
	)
	err := svc.repo.Tx(ctx, func(tx repo.Store) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if err := domain.CheckOrderTransition(o.Status, to); err != nil {
			return err
		}
		if to == domain.OrderCancelled {
			if err := restitute(ctx, tx, o); err != nil {
				return err
			}
		}
		svc.apply(o, to)
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.afterTransition(ctx, order, from)
	return order, nil
}

// CancelOrder lets the owner or staff cancel while the kitchen has not
// started. Stock goes back in the same transaction as the status change.
func (svc *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*models.Order, error) {
	var (
		order *models.Order
		from  domain.OrderStatus
	)
	err := svc.repo.Tx(ctx, func(tx repo.Store) error {
		o, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o.UserID) {
			return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		from = o.Status
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: order is %s", domain.ErrNotCancellable, o.Status)
		}
		if err := restitute(ctx, tx, o); err != nil {
			return err
		}
		svc.apply(o, domain.OrderCancelled)
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.afterTransition(ctx, order, from)
	return order, nil
}

func restitute(ctx context.Context, tx repo.Store, o *models.Order) error {
	for _, it := range o.Items {
		if err := tx.RestockDish(ctx, it.DishID, it.Quantity); err != nil {
			return fmt.Errorf("restock dish %s: %w", it.DishID, err)
		}
	}
	return nil
}

func (svc *OrderService) apply(o *models.Order, to domain.OrderStatus) {
	now := svc.now()
	o.Status = to
	switch to {
	case domain.OrderConfirmed:
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = &now
		}
	case domain.OrderDelivered:
		o.DeliveredAt = &now
	}
}

func (svc *OrderService) afterTransition(ctx context.Context, o *models.Order, from domain.OrderStatus) {
	logging.FromContext(ctx).Info("order_status_changed",
		"svc", "order",
		"order_id", o.ID,
		"from", from,
		"to", o.Status,
	)
	svc.metrics.OrderTransition(string(o.Status))

	eventType := notify.OrderStatusChanged
	if o.Status == domain.OrderCancelled {
		eventType = notify.OrderCancelled
	}
	svc.notifier.Notify(ctx, notify.Event{
		Type:    eventType,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
	})
}
