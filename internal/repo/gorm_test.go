package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
	"github.com/Skotchmaster/restaurant_ordering/pkg/db"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	r := New(gdb)
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func seedDish(t *testing.T, r *GormRepo, price string, stock int) *models.Dish {
	t.Helper()
	d := &models.Dish{
		ID:        uuid.New(),
		Name:      "dish-" + price,
		Price:     decimal.RequireFromString(price),
		Available: true,
		Stock:     stock,
	}
	require.NoError(t, r.DB.Create(d).Error)
	return d
}

func seedOrder(t *testing.T, r *GormRepo, userID uuid.UUID, dish *models.Dish, qty int) *models.Order {
	t.Helper()
	sub := domain.LineSubtotal(dish.Price, qty)
	o := &models.Order{
		UserID:          userID,
		Status:          domain.OrderPending,
		PaymentMethod:   domain.OrderPayPix,
		PaymentStatus:   domain.OrderPaymentPending,
		DeliveryAddress: "Rua A, 1",
		DeliveryCity:    "São Paulo",
		Subtotal:        sub,
		DeliveryFee:     decimal.RequireFromString("5.00"),
		Total:           sub.Add(decimal.RequireFromString("5.00")),
		Items: []models.OrderItem{{
			DishID: dish.ID, DishName: dish.Name, Quantity: qty,
			UnitPrice: dish.Price, Subtotal: sub,
		}},
	}
	require.NoError(t, r.CreateOrder(context.Background(), o))
	return o
}

func TestGetDish_NotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetDish(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrDishNotFound)
}

func TestReserveStock_Conditional(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	d := seedDish(t, r, "10.00", 3)

	ok, err := r.ReserveStock(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveStock(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "would go negative")

	got, err := r.GetDish(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	require.NoError(t, r.RestockDish(ctx, d.ID, 2))
	got, err = r.GetDish(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestReserveStock_ConcurrentNeverOversells(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	d := seedDish(t, r, "10.00", 5)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.ReserveStock(ctx, d.ID, 1)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	got, err := r.GetDish(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestTx_RollsBackOnError(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	d := seedDish(t, r, "10.00", 3)
	boom := errors.New("boom")

	err := r.Tx(ctx, func(tx Store) error {
		ok, err := tx.ReserveStock(ctx, d.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := r.GetDish(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestOrder_CreateGetSave(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := uuid.New()
	d := seedDish(t, r, "12.50", 10)
	o := seedOrder(t, r, user, d, 2)

	got, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, got.Total.Equal(decimal.RequireFromString("30.00")))

	require.NoError(t, r.Tx(ctx, func(tx Store) error {
		locked, err := tx.GetOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.OrderConfirmed
		return tx.SaveOrder(ctx, locked)
	}))

	again, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, again.Status)
	assert.Len(t, again.Items, 1, "save must not duplicate items")

	require.NoError(t, r.SetOrderPaymentStatus(ctx, o.ID, domain.OrderPaymentPaid))
	again, err = r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaymentPaid, again.PaymentStatus)

	_, err = r.GetOrder(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, r.SetOrderPaymentStatus(ctx, uuid.New(), domain.OrderPaymentPaid), domain.ErrNotFound)
}

func TestListOrders_Filters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	d := seedDish(t, r, "10.00", 100)

	seedOrder(t, r, alice, d, 1)
	seedOrder(t, r, alice, d, 1)
	confirmed := seedOrder(t, r, bob, d, 1)
	confirmed.Status = domain.OrderConfirmed
	require.NoError(t, r.SaveOrder(ctx, confirmed))

	mine, err := r.ListOrders(ctx, OrderFilter{UserID: &alice})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Len(t, o.Items, 1)
	}

	pending, err := r.ListOrders(ctx, OrderFilter{Statuses: []domain.OrderStatus{domain.OrderPending}})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	inProgress, err := r.ListOrders(ctx, OrderFilter{Statuses: domain.InProgressStatuses})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, confirmed.ID, inProgress[0].ID)

	page, err := r.ListOrders(ctx, OrderFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func newPayment(o *models.Order) *models.Payment {
	return &models.Payment{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Method:   domain.PaymentCreditCard,
		Provider: domain.ProviderStripe,
		Status:   domain.PaymentPending,
		Amount:   o.Total,
	}
}

func TestCreatePayment_UniquePerOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	o := seedOrder(t, r, uuid.New(), seedDish(t, r, "10.00", 5), 1)

	first := newPayment(o)
	require.NoError(t, r.CreatePayment(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.JSONEq(t, `{}`, string(first.Metadata))

	err := r.CreatePayment(ctx, newPayment(o))
	require.ErrorIs(t, err, domain.ErrDuplicatePayment)

	got, err := r.GetPaymentByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestFindPaymentByReference(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	o := seedOrder(t, r, uuid.New(), seedDish(t, r, "10.00", 5), 1)

	p := newPayment(o)
	p.PaymentIntentID = "pi_123"
	p.TransactionID = "pi_123"
	require.NoError(t, r.CreatePayment(ctx, p))

	got, err := r.FindPaymentByReference(ctx, domain.ProviderStripe, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = r.FindPaymentByReference(ctx, domain.ProviderMercadoPago, "pi_123")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindPaymentByReference(ctx, domain.ProviderStripe, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPayments_Filters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	d := seedDish(t, r, "10.00", 10)
	alice := uuid.New()

	p1 := newPayment(seedOrder(t, r, alice, d, 1))
	require.NoError(t, r.CreatePayment(ctx, p1))
	p2 := newPayment(seedOrder(t, r, uuid.New(), d, 1))
	p2.Status = domain.PaymentCompleted
	require.NoError(t, r.CreatePayment(ctx, p2))

	mine, err := r.ListPayments(ctx, PaymentFilter{UserID: &alice})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p1.ID, mine[0].ID)

	done, err := r.ListPayments(ctx, PaymentFilter{Status: domain.PaymentCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, p2.ID, done[0].ID)
}

func TestWebhook_CreateAndMark(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	w := &models.PaymentWebhook{Provider: "stripe", EventType: "unknown", Payload: "not json"}
	require.NoError(t, r.CreateWebhook(ctx, w))
	require.NotZero(t, w.ID)

	pid := uuid.New()
	require.NoError(t, r.MarkWebhook(ctx, w.ID, &pid, true, ""))

	var got models.PaymentWebhook
	require.NoError(t, r.DB.First(&got, w.ID).Error)
	assert.True(t, got.Processed)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, pid, *got.PaymentID)
	assert.Equal(t, "not json", got.Payload)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, maxLimit, clampLimit(1000))
	assert.Equal(t, 7, clampLimit(7))
}
