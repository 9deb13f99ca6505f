package repositories

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

func (r *GORMPaymentRepository) GetAll(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to get all payments: %w", err)
	}
	return payments, nil
}

func (r *GORMPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.first(ctx, fmt.Sprintf("payment with ID %s", id), "id = ?", id)
}

func (r *GORMPaymentRepository) FindByTxnRef(ctx context.Context, txnRef string, method models.PaymentMethod) (*models.Payment, error) {
	if txnRef == "" {
		return nil, fmt.Errorf("payment with empty txn ref: %w", ErrNotFound)
	}
	return r.first(ctx, fmt.Sprintf("payment with txn ref %s", txnRef), "txn_ref = ? AND method = ?", txnRef, method)
}

func (r *GORMPaymentRepository) FindByOrder(ctx context.Context, orderID string, method models.PaymentMethod) (*models.Payment, error) {
	return r.first(ctx, fmt.Sprintf("%s payment for order %s", method, orderID), "order_id = ? AND method = ?", orderID, method)
}

func (r *GORMPaymentRepository) first(ctx context.Context, what string, query string, args ...interface{}) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at asc").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(payment)
	if res.Error != nil {
		return fmt.Errorf("failed to create payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s payment for order %s: %w", payment.Method, payment.OrderID, ErrDuplicate)
	}
	return nil
}

// Transition is a compare-and-set on the status column.
func (r *GORMPaymentRepository) Transition(ctx context.Context, id string, from models.PaymentStatus, update PaymentUpdate) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updateColumns(update))
	if res.Error != nil {
		return false, fmt.Errorf("failed to move payment %s from %s to %s: %w", id, from, update.Status, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func updateColumns(u PaymentUpdate) map[string]interface{} {
	cols := map[string]interface{}{"status": u.Status}
	set := func(col, v string) {
		if v != "" {
			cols[col] = v
		}
	}
	set("txn_ref", u.TxnRef)
	if u.Attempt > 0 {
		cols["attempt"] = u.Attempt
	}
	set("transaction_no", u.TransactionNo)
	set("bank_code", u.BankCode)
	set("response_code", u.ResponseCode)
	set("transaction_status", u.TransactionStatus)
	set("pay_date", u.PayDate)
	if u.PaidAt != nil {
		cols["paid_at"] = *u.PaidAt
	}
	return cols
}

func (r *GORMPaymentRepository) SetTxnRef(ctx context.Context, id, txnRef string) error {
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND (txn_ref = '' OR txn_ref IS NULL)", id).
		Update("txn_ref", txnRef).Error
	if err != nil {
		return fmt.Errorf("failed to backfill txn ref of payment %s: %w", id, err)
	}
	return nil
}

func (r *GORMPaymentRepository) SetCreateDate(ctx context.Context, id, createDate string) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Update("create_date", createDate)
	if res.Error != nil {
		return fmt.Errorf("failed to record create date of payment %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment with ID %s: %w", id, ErrNotFound)
	}
	return nil
}
