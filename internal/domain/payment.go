package domain

import (
	"fmt"
	"slices"
)

// OrderPaymentMethod is what the customer chose at checkout.
type OrderPaymentMethod string

const (
	OrderPayMoney  OrderPaymentMethod = "money"
	OrderPayDebit  OrderPaymentMethod = "debit"
	OrderPayCredit OrderPaymentMethod = "credit"
	OrderPayPix    OrderPaymentMethod = "pix"
	OrderPayOnline OrderPaymentMethod = "online"
)

func (m OrderPaymentMethod) Valid() bool {
	switch m {
	case OrderPayMoney, OrderPayDebit, OrderPayCredit, OrderPayPix, OrderPayOnline:
		return true
	}
	return false
}

// OrderPaymentStatus mirrors the payment outcome on the order row.
type OrderPaymentStatus string

const (
	OrderPaymentPending    OrderPaymentStatus = "pending"
	OrderPaymentProcessing OrderPaymentStatus = "processing"
	OrderPaymentPaid       OrderPaymentStatus = "paid"
	OrderPaymentFailed     OrderPaymentStatus = "failed"
	OrderPaymentRefunded   OrderPaymentStatus = "refunded"
	OrderPaymentCancelled  OrderPaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "pix"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCash       PaymentMethod = "cash"
)

type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderMercadoPago Provider = "mercadopago"
	ProviderManual      Provider = "manual"
)

func (p Provider) Valid() bool {
	return p == ProviderStripe || p == ProviderMercadoPago || p == ProviderManual
}

// ProviderFor picks the gateway that settles a payment method.
func ProviderFor(m PaymentMethod) (Provider, error) {
	switch m {
	case PaymentPix:
		return ProviderMercadoPago, nil
	case PaymentCreditCard, PaymentDebitCard:
		return ProviderStripe, nil
	case PaymentCash:
		return ProviderManual, nil
	}
	return "", fmt.Errorf("%w: unsupported payment method %q", ErrValidation, m)
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted:  {PaymentRefunded},
	PaymentFailed:     {},
	PaymentRefunded:   {},
	PaymentCancelled:  {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func CheckPaymentTransition(from, to PaymentStatus) error {
	if !slices.Contains(paymentTransitions[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, from, to)
	}
	return nil
}

// OrderPaymentStatusFor maps a payment status onto the order's copy of it.
func OrderPaymentStatusFor(s PaymentStatus) OrderPaymentStatus {
	switch s {
	case PaymentProcessing:
		return OrderPaymentProcessing
	case PaymentCompleted:
		return OrderPaymentPaid
	case PaymentFailed:
		return OrderPaymentFailed
	case PaymentRefunded:
		return OrderPaymentRefunded
	case PaymentCancelled:
		return OrderPaymentCancelled
	}
	return OrderPaymentPending
}
