package domain

import "errors"

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")

	ErrDishNotFound      = errors.New("dish not found")
	ErrDishUnavailable   = errors.New("dish unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("order cannot be cancelled")

	ErrDuplicatePayment          = errors.New("order already has a payment")
	ErrInvalidPaymentTransition  = errors.New("invalid payment status transition")
	ErrGateway                   = errors.New("payment gateway error")
	ErrWebhookVerificationFailed = errors.New("webhook verification failed")
)
