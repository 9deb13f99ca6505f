package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bookstore/internal/models"

	"github.com/google/uuid"
)

// MockPaymentRepository is an in-memory implementation of PaymentRepository.
type MockPaymentRepository struct {
	payments map[string]models.Payment
	mu       sync.RWMutex
}

// NewMockPaymentRepository creates a new instance of MockPaymentRepository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]models.Payment),
	}
}

func (r *MockPaymentRepository) GetAll(_ context.Context) ([]models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *MockPaymentRepository) GetByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment with ID %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r *MockPaymentRepository) FindByTxnRef(_ context.Context, txnRef string, method models.PaymentMethod) (*models.Payment, error) {
	return r.find(fmt.Sprintf("payment with txn ref %s", txnRef), func(p models.Payment) bool {
		return txnRef != "" && p.TxnRef == txnRef && p.Method == method
	})
}

func (r *MockPaymentRepository) FindByOrder(_ context.Context, orderID string, method models.PaymentMethod) (*models.Payment, error) {
	return r.find(fmt.Sprintf("%s payment for order %s", method, orderID), func(p models.Payment) bool {
		return p.OrderID == orderID && p.Method == method
	})
}

func (r *MockPaymentRepository) find(what string, match func(models.Payment) bool) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Payment
	for _, p := range r.payments {
		if !match(p) {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return found, nil
}

func (r *MockPaymentRepository) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.payments {
		if p.OrderID == payment.OrderID && p.Method == payment.Method {
			return fmt.Errorf("%s payment for order %s: %w", payment.Method, payment.OrderID, ErrDuplicate)
		}
	}
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.Attempt == 0 {
		payment.Attempt = 1
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	r.payments[payment.ID] = *payment
	return nil
}

func (r *MockPaymentRepository) Transition(_ context.Context, id string, from models.PaymentStatus, u PaymentUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = u.Status
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.TxnRef, u.TxnRef)
	if u.Attempt > 0 {
		p.Attempt = u.Attempt
	}
	set(&p.TransactionNo, u.TransactionNo)
	set(&p.BankCode, u.BankCode)
	set(&p.ResponseCode, u.ResponseCode)
	set(&p.TransactionStatus, u.TransactionStatus)
	set(&p.PayDate, u.PayDate)
	if u.PaidAt != nil {
		paidAt := *u.PaidAt
		p.PaidAt = &paidAt
	}
	p.UpdatedAt = time.Now()
	r.payments[id] = p
	return true, nil
}

func (r *MockPaymentRepository) SetTxnRef(_ context.Context, id, txnRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment with ID %s: %w", id, ErrNotFound)
	}
	if p.TxnRef == "" {
		p.TxnRef = txnRef
		r.payments[id] = p
	}
	return nil
}

func (r *MockPaymentRepository) SetCreateDate(_ context.Context, id, createDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment with ID %s: %w", id, ErrNotFound)
	}
	p.CreateDate = createDate
	r.payments[id] = p
	return nil
}
