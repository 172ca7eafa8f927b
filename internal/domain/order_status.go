package domain

import (
	"fmt"
	"slices"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderPreparing  OrderStatus = "preparing"
	OrderReady      OrderStatus = "ready"
	OrderDelivering OrderStatus = "delivering"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderPreparing, OrderCancelled},
	OrderPreparing:  {OrderReady, OrderCancelled},
	OrderReady:      {OrderDelivering},
	OrderDelivering: {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// InProgressStatuses are the statuses staff sees as "being worked on".
var InProgressStatuses = []OrderStatus{OrderConfirmed, OrderPreparing, OrderReady, OrderDelivering}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Cancellable reports whether the owner may still cancel an order.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// CheckOrderTransition returns ErrInvalidTransition naming both states when
// to is not reachable from from in one step.
func CheckOrderTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if !slices.Contains(orderTransitions[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
