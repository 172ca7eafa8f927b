package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

const pgUniqueViolation = "23505"

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

func (r *GormRepo) Tx(ctx context.Context, fn func(tx Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func (r *GormRepo) GetDish(ctx context.Context, id uuid.UUID) (*models.Dish, error) {
	var d models.Dish
	if err := r.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDishNotFound, id)
		}
		return nil, err
	}
	return &d, nil
}

func (r *GormRepo) ReserveStock(ctx context.Context, dishID uuid.UUID, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Dish{}).
		Where("id = ? AND stock >= ?", dishID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestockDish is a no-op for dishes that no longer exist.
func (r *GormRepo) RestockDish(ctx context.Context, dishID uuid.UUID, qty int) error {
	return r.DB.WithContext(ctx).
		Model(&models.Dish{}).
		Where("id = ?", dishID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOrder(ctx, r.DB.WithContext(ctx), id)
}

// GetOrderForUpdate row-locks the order until the surrounding transaction
// ends. SQLite ignores the locking clause; its single writer serializes anyway.
func (r *GormRepo) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOrder(ctx, r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormRepo) getOrder(ctx context.Context, q *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := q.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	if err := r.DB.WithContext(ctx).
		Where("order_id = ?", o.ID).
		Order("position ASC").
		Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var orders []models.Order
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Limit(clampLimit(f.Limit)).
		Offset(max(f.Offset, 0)).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *GormRepo) SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderPaymentStatus) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"payment_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return nil
}

func (r *GormRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s", domain.ErrDuplicatePayment, p.OrderID)
		}
		return err
	}
	return nil
}

func (r *GormRepo) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return firstPayment(r.DB.WithContext(ctx).Where("id = ?", id))
}

func (r *GormRepo) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return firstPayment(r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *GormRepo) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return firstPayment(r.DB.WithContext(ctx).Where("order_id = ?", orderID))
}

// FindPaymentByReference resolves a gateway-side identifier: an intent id,
// a provider transaction id or a preference id.
func (r *GormRepo) FindPaymentByReference(ctx context.Context, provider domain.Provider, ref string) (*models.Payment, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty payment reference", domain.ErrNotFound)
	}
	return firstPayment(r.DB.WithContext(ctx).
		Where("provider = ?", provider).
		Where("payment_intent_id = ? OR transaction_id = ? OR preference_id = ?", ref, ref, ref))
}

func firstPayment(q *gorm.DB) (*models.Payment, error) {
	var p models.Payment
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment", domain.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	q := r.DB.WithContext(ctx).Model(&models.Payment{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var payments []models.Payment
	err := q.Order("created_at DESC").
		Limit(clampLimit(f.Limit)).
		Offset(max(f.Offset, 0)).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormRepo) SavePayment(ctx context.Context, p *models.Payment) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *GormRepo) CreateWebhook(ctx context.Context, w *models.PaymentWebhook) error {
	return r.DB.WithContext(ctx).Create(w).Error
}

func (r *GormRepo) MarkWebhook(ctx context.Context, id uint, paymentID *uuid.UUID, processed bool, errMsg string) error {
	return r.DB.WithContext(ctx).
		Model(&models.PaymentWebhook{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_id": paymentID, "processed": processed, "error": errMsg}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
