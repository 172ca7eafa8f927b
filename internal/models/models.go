package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
)

// Dish is the catalog row the ordering core reads and debits. Menu CRUD
// lives elsewhere; this service only touches Available, Stock and Price.
type Dish struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                       json:"id"`
	Name      string          `gorm:"type:varchar(200);not null"                 json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(8,2);not null"                 json:"price"`
	Available bool            `gorm:"not null"                                   json:"available"`
	Stock     int             `gorm:"not null;check:chk_dishes_stock,stock >= 0" json:"stock"`
	CreatedAt time.Time       `                                                  json:"created_at"`
	UpdatedAt time.Time       `                                                  json:"updated_at"`
}

type Order struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primaryKey"               json:"id"`
	UserID          uuid.UUID                 `gorm:"type:uuid;index;not null"           json:"user_id"`
	Status          domain.OrderStatus        `gorm:"type:varchar(20);index;not null"    json:"status"`
	PaymentMethod   domain.OrderPaymentMethod `gorm:"type:varchar(20);not null"          json:"payment_method"`
	PaymentStatus   domain.OrderPaymentStatus `gorm:"type:varchar(20);not null"          json:"payment_status"`
	DeliveryAddress string                    `gorm:"type:text;not null"                 json:"delivery_address"`
	DeliveryCity    string                    `gorm:"type:varchar(100);not null"         json:"delivery_city"`
	DeliveryZipCode string                    `gorm:"type:varchar(10)"                   json:"delivery_zip_code,omitempty"`
	Subtotal        decimal.Decimal           `gorm:"type:numeric(10,2);not null"        json:"subtotal"`
	DeliveryFee     decimal.Decimal           `gorm:"type:numeric(10,2);not null"        json:"delivery_fee"`
	Total           decimal.Decimal           `gorm:"type:numeric(10,2);not null"        json:"total"`
	Notes           string                    `gorm:"type:text"                          json:"notes,omitempty"`
	CreatedAt       time.Time                 `gorm:"index"                              json:"created_at"`
	UpdatedAt       time.Time                 `                                          json:"updated_at"`
	ConfirmedAt     *time.Time                `                                          json:"confirmed_at"`
	DeliveredAt     *time.Time                `                                          json:"delivered_at"`
	Items           []OrderItem               `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o *Order) ItemsCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem is a price snapshot of a dish at order time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                           json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"                       json:"order_id"`
	DishID    uuid.UUID       `gorm:"type:uuid;index;not null"                       json:"dish_id"`
	Position  int             `gorm:"not null"                                       json:"-"`
	DishName  string          `gorm:"type:varchar(200);not null"                     json:"dish_name"`
	Quantity  int             `gorm:"not null;check:chk_order_items_qty,quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"                    json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(10,2);not null"                    json:"subtotal"`
	Notes     string          `gorm:"type:text"                                      json:"notes,omitempty"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Payment is 1:1 with Order; the unique index on order_id is what enforces it.
type Payment struct {
	ID              uuid.UUID            `gorm:"type:uuid;primaryKey"            json:"id"`
	OrderID         uuid.UUID            `gorm:"type:uuid;uniqueIndex;not null"  json:"order_id"`
	UserID          uuid.UUID            `gorm:"type:uuid;index;not null"        json:"user_id"`
	Method          domain.PaymentMethod `gorm:"type:varchar(20);not null"       json:"payment_method"`
	Provider        domain.Provider      `gorm:"type:varchar(20);not null"       json:"payment_provider"`
	Status          domain.PaymentStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Amount          decimal.Decimal      `gorm:"type:numeric(10,2);not null"     json:"amount"`
	TransactionID   string               `gorm:"type:varchar(255);index"         json:"transaction_id,omitempty"`
	PaymentIntentID string               `gorm:"type:varchar(255);index"         json:"payment_intent_id,omitempty"`
	PreferenceID    string               `gorm:"type:varchar(255);index"         json:"preference_id,omitempty"`
	PixQRCode       string               `gorm:"type:text"                       json:"pix_qr_code,omitempty"`
	PixQRCodeURL    string               `gorm:"type:varchar(500)"               json:"pix_qr_code_url,omitempty"`
	PixCopyPaste    string               `gorm:"type:text"                       json:"pix_copy_paste,omitempty"`
	Metadata        datatypes.JSON       `                                       json:"metadata"`
	ErrorMessage    string               `gorm:"type:text"                       json:"error_message,omitempty"`
	CreatedAt       time.Time            `gorm:"index"                           json:"created_at"`
	UpdatedAt       time.Time            `                                       json:"updated_at"`
	CompletedAt     *time.Time           `                                       json:"completed_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if len(p.Metadata) == 0 {
		p.Metadata = datatypes.JSON("{}")
	}
	return nil
}

// PaymentWebhook is the append-only audit log of gateway notifications.
// Payload is kept as text so bodies that are not valid JSON still persist.
type PaymentWebhook struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"        json:"id"`
	Provider  string     `gorm:"type:varchar(50);index;not null" json:"provider"`
	EventType string     `gorm:"type:varchar(100);not null"      json:"event_type"`
	Payload   string     `gorm:"type:text;not null"              json:"payload"`
	Verified  bool       `gorm:"not null"                        json:"verified"`
	Processed bool       `gorm:"not null;index"                  json:"processed"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index"                 json:"payment_id,omitempty"`
	Error     string     `gorm:"type:text"                       json:"error,omitempty"`
	CreatedAt time.Time  `gorm:"index"                           json:"created_at"`
}

// All lists every table this service owns, in migration order.
func All() []any {
	return []any{&Dish{}, &Order{}, &OrderItem{}, &Payment{}, &PaymentWebhook{}}
}
