package transport

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/models"
)

type CreateOrderItem struct {
	DishID   uuid.UUID `json:"dish_id"`
	Quantity int       `json:"quantity"`
	Notes    string    `json:"notes"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem         `json:"items"`
	PaymentMethod   domain.OrderPaymentMethod `json:"payment_method"`
	DeliveryAddress string                    `json:"delivery_address"`
	DeliveryCity    string                    `json:"delivery_city"`
	DeliveryZipCode string                    `json:"delivery_zip_code"`
	// DeliveryFee is optional; nil means the configured default.
	DeliveryFee *decimal.Decimal `json:"delivery_fee"`
	Notes       string           `json:"notes"`
}

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type OrderResponse struct {
	*models.Order
	ItemsCount int `json:"items_count"`
}

func NewOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{Order: o, ItemsCount: o.ItemsCount()}
}

func NewOrderList(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

type CreatePaymentRequest struct {
	OrderID       uuid.UUID            `json:"order_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type ConfirmPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

// CreatePaymentResponse carries what the client needs to finish paying with
// the chosen provider. Only the fields of that provider are set.
type CreatePaymentResponse struct {
	Payment          *models.Payment `json:"payment"`
	ClientSecret     string          `json:"client_secret,omitempty"`
	PublishableKey   string          `json:"publishable_key,omitempty"`
	PreferenceID     string          `json:"preference_id,omitempty"`
	InitPoint        string          `json:"init_point,omitempty"`
	SandboxInitPoint string          `json:"sandbox_init_point,omitempty"`
	QRCode           string          `json:"qr_code,omitempty"`
	CopyPaste        string          `json:"copy_paste,omitempty"`
	Message          string          `json:"message,omitempty"`
}

func NewCreatePaymentResponse(p *models.Payment, co *gateway.Checkout) CreatePaymentResponse {
	resp := CreatePaymentResponse{Payment: p}
	if co != nil {
		resp.ClientSecret = co.ClientSecret
		resp.PublishableKey = co.PublishableKey
		resp.PreferenceID = co.PreferenceID
		resp.InitPoint = co.InitPoint
		resp.SandboxInitPoint = co.SandboxPoint
		resp.QRCode = co.PixQRCode
		resp.CopyPaste = co.PixCopyPaste
	}
	if p.Provider == domain.ProviderManual {
		resp.Message = "payment will be collected on delivery"
	}
	return resp
}

type PaymentStatusResponse struct {
	PaymentID     uuid.UUID            `json:"payment_id"`
	Status        domain.PaymentStatus `json:"status"`
	Completed     bool                 `json:"completed"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

func NewPaymentStatusResponse(p *models.Payment) PaymentStatusResponse {
	return PaymentStatusResponse{
		PaymentID:     p.ID,
		Status:        p.Status,
		Completed:     p.Status == domain.PaymentCompleted,
		Amount:        p.Amount,
		PaymentMethod: p.Method,
	}
}

type WebhookResponse struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed"`
}
