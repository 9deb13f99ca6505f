package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "Cash"
	MethodCreditCard PaymentMethod = "Credit Card"
	MethodPayPal     PaymentMethod = "PayPal"
	MethodVnPay      PaymentMethod = "VnPay"
)

// Gateway reports whether the method is settled through the redirect provider.
func (m PaymentMethod) Gateway() bool {
	return m == MethodVnPay
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentCancelled PaymentStatus = "Cancelled"
)

// Payment records one payment attempt for an order. Provider fields are
// filled in by reconciliation.
type Payment struct {
	ID      string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID string          `json:"order_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_payments_order_method"`
	Amount  decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Method  PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null;uniqueIndex:idx_payments_order_method"`
	Status  PaymentStatus   `json:"status" gorm:"type:varchar(20);not null"`

	// TxnRef is the provider transaction reference of the current attempt,
	// the lookup key for callbacks. Each retry gets a new one.
	TxnRef            string     `json:"vnp_txn_ref,omitempty" gorm:"type:varchar(100);index"`
	Attempt           int        `json:"attempt" gorm:"not null;default:1"`
	TransactionNo     string     `json:"vnp_transaction_no,omitempty" gorm:"type:varchar(64)"`
	BankCode          string     `json:"vnp_bank_code,omitempty" gorm:"type:varchar(32)"`
	ResponseCode      string     `json:"vnp_response_code,omitempty" gorm:"type:varchar(8)"`
	TransactionStatus string     `json:"vnp_transaction_status,omitempty" gorm:"type:varchar(8)"`
	PayDate           string     `json:"vnp_pay_date,omitempty" gorm:"type:varchar(14)"`
	CreateDate        string     `json:"vnp_create_date,omitempty" gorm:"type:varchar(14)"` // vnp_CreateDate of the last redirect, needed by querydr
	PaidAt            *time.Time `json:"payment_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
