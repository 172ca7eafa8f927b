package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
	"github.com/Skotchmaster/restaurant_ordering/internal/notify"
	"github.com/Skotchmaster/restaurant_ordering/internal/repo"
	"github.com/Skotchmaster/restaurant_ordering/internal/transport"
	"github.com/Skotchmaster/restaurant_ordering/pkg/db"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// fakeAdapter stands in for a card provider.
type fakeAdapter struct {
	provider domain.Provider
	checkout *gateway.Checkout
	err      error
}

func (f *fakeAdapter) Provider() domain.Provider { return f.provider }

func (f *fakeAdapter) Start(context.Context, *models.Payment) (*gateway.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}

func (f *fakeAdapter) VerifyWebhook(gateway.WebhookRequest) error { return nil }

func (f *fakeAdapter) ParseWebhook(context.Context, []byte) (*gateway.Notification, error) {
	return &gateway.Notification{}, nil
}

type fixture struct {
	store    *repo.GormRepo
	notifier *recordingNotifier
	orders   *OrderService
	payments *PaymentService
}

func newFixture(t *testing.T, adapters ...gateway.Adapter) *fixture {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := repo.New(gdb)
	require.NoError(t, store.Migrate(context.Background()))

	if len(adapters) == 0 {
		adapters = []gateway.Adapter{
			gateway.NewStripe(gateway.StripeConfig{}, nil),
			gateway.NewMercadoPago(gateway.MercadoPagoConfig{}, nil),
			gateway.Manual{},
		}
	}
	rn := &recordingNotifier{}
	return &fixture{
		store:    store,
		notifier: rn,
		orders:   NewOrderService(store, rn, nil, OrderConfig{DefaultDeliveryFee: dec("5.00")}),
		payments: NewPaymentService(store, gateway.NewRegistry(adapters...), rn, nil),
	}
}

func (f *fixture) dish(t *testing.T, name, price string, stock int) *models.Dish {
	t.Helper()
	d := &models.Dish{ID: uuid.New(), Name: name, Price: dec(price), Available: true, Stock: stock}
	require.NoError(t, f.store.DB.Create(d).Error)
	return d
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	d, err := f.store.GetDish(context.Background(), id)
	require.NoError(t, err)
	return d.Stock
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.DB.Model(&models.Order{}).Count(&n).Error)
	return n
}

func customer() domain.Actor { return domain.Actor{UserID: uuid.New(), Role: domain.RoleUser} }

func staff() domain.Actor { return domain.Actor{UserID: uuid.New(), Role: domain.RoleStaff} }

func orderReq(items ...transport.CreateOrderItem) transport.CreateOrderRequest {
	fee := dec("5.00")
	return transport.CreateOrderRequest{
		Items:           items,
		PaymentMethod:   domain.OrderPayPix,
		DeliveryAddress: "Rua das Flores, 10",
		DeliveryFee:     &fee,
	}
}

func line(d *models.Dish, qty int) transport.CreateOrderItem {
	return transport.CreateOrderItem{DishID: d.ID, Quantity: qty}
}

func (f *fixture) placeOrder(t *testing.T, actor domain.Actor, items ...transport.CreateOrderItem) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), actor, orderReq(items...))
	require.NoError(t, err)
	return o
}
