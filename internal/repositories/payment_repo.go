package repositories

import (
	"context"
	"time"

	"bookstore/internal/models"
)

// PaymentUpdate carries the fields written by a status transition. Empty
// strings, zero attempts and nil pointers leave the stored value untouched.
type PaymentUpdate struct {
	Status            models.PaymentStatus
	TxnRef            string
	Attempt           int
	TransactionNo     string
	BankCode          string
	ResponseCode      string
	TransactionStatus string
	PayDate           string
	PaidAt            *time.Time
}

// PaymentRepository defines the interface for payment data access.
type PaymentRepository interface {
	GetAll(ctx context.Context) ([]models.Payment, error)
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	FindByTxnRef(ctx context.Context, txnRef string, method models.PaymentMethod) (*models.Payment, error)
	FindByOrder(ctx context.Context, orderID string, method models.PaymentMethod) (*models.Payment, error)
	// Create returns an error wrapping ErrDuplicate when the order already
	// has a payment with the same method.
	Create(ctx context.Context, payment *models.Payment) error
	// Transition applies update only if the payment is currently in status
	// from, and reports whether it did.
	Transition(ctx context.Context, id string, from models.PaymentStatus, update PaymentUpdate) (bool, error)
	// SetTxnRef records txnRef on a payment that has none yet. It is a no-op
	// when a reference is already stored.
	SetTxnRef(ctx context.Context, id, txnRef string) error
	SetCreateDate(ctx context.Context, id, createDate string) error
}
