package services

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrBookNotFound       = errors.New("book not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrStatusReserved     = errors.New("status can only be set by payment reconciliation")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrOrderNotPayable    = errors.New("order cannot be paid in its current status")
	ErrAmountMismatch     = errors.New("amount does not match order total")
	ErrPaymentPending     = errors.New("order has a pending gateway payment")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrNotQueryable       = errors.New("payment has no provider transaction to query")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
