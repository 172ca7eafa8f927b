package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

// Store is the persistence boundary of the ordering core. Every method runs
// on whatever handle the Store is bound to; inside Tx that is the transaction.
type Store interface {
	Tx(ctx context.Context, fn func(tx Store) error) error

	GetDish(ctx context.Context, id uuid.UUID) (*models.Dish, error)
	// ReserveStock debits qty only if at least qty is left. It reports false
	// when the conditional update matched nothing.
	ReserveStock(ctx context.Context, dishID uuid.UUID, qty int) (bool, error)
	RestockDish(ctx context.Context, dishID uuid.UUID, qty int) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderPaymentStatus) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindPaymentByReference(ctx context.Context, provider domain.Provider, ref string) (*models.Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error

	CreateWebhook(ctx context.Context, w *models.PaymentWebhook) error
	MarkWebhook(ctx context.Context, id uint, paymentID *uuid.UUID, processed bool, errMsg string) error
}

type OrderFilter struct {
	UserID   *uuid.UUID
	Statuses []domain.OrderStatus
	Limit    int
	Offset   int
}

type PaymentFilter struct {
	UserID *uuid.UUID
	Status domain.PaymentStatus
	Limit  int
	Offset int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
