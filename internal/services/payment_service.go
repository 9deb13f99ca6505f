package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/pkg/vnpay"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionQuerier asks the provider for the state of a transaction.
type TransactionQuerier interface {
	QueryTransaction(ctx context.Context, txnRef, transactionDate, clientIP string) (map[string]interface{}, error)
}

// PaymentInput records an offline payment method.
type PaymentInput struct {
	OrderID string               `json:"orderId" validate:"required"`
	Method  models.PaymentMethod `json:"paymentMethod" validate:"required,oneof=Cash 'Credit Card' PayPal"`
}

// GatewayPaymentInput starts a redirect payment. Amount is optional; when
// present it must equal the order total.
type GatewayPaymentInput struct {
	OrderID   string           `json:"orderId" validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	OrderInfo string           `json:"orderInfo" validate:"omitempty,max=255"`
	BankCode  string           `json:"bankCode" validate:"omitempty,max=20"`
	Locale    string           `json:"locale" validate:"omitempty,oneof=vn en"`
	ClientIP  string           `json:"-"`
}

// GatewayPayment is the result of starting a redirect payment.
type GatewayPayment struct {
	PaymentURL string `json:"paymentUrl"`
	PaymentID  string `json:"paymentId"`
	TxnRef     string `json:"txnRef"`
}

// PaymentService creates payments and hands out provider redirect URLs.
type PaymentService struct {
	orderRepo   repositories.OrderRepository
	paymentRepo repositories.PaymentRepository
	builder     *vnpay.Builder
	querier     TransactionQuerier
}

// NewPaymentService creates a new PaymentService. querier may be nil, in
// which case QueryTransaction is unavailable.
func NewPaymentService(orderRepo repositories.OrderRepository, paymentRepo repositories.PaymentRepository, builder *vnpay.Builder, querier TransactionQuerier) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		builder:     builder,
		querier:     querier,
	}
}

// GetAllPayments retrieves all payments.
func (s *PaymentService) GetAllPayments(ctx context.Context) ([]models.Payment, error) {
	return s.paymentRepo.GetAll(ctx)
}

// GetPaymentByID retrieves a single payment by its ID.
func (s *PaymentService) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return payment, err
}

func (s *PaymentService) loadPayableOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	switch order.Status {
	case models.OrderPending:
		return order, nil
	case models.OrderPaid:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, orderID)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderNotPayable, orderID, order.Status)
	}
}

// CreatePayment records a Pending payment for an offline method. Calling it
// again for the same order and method returns the existing payment.
func (s *PaymentService) CreatePayment(ctx context.Context, input PaymentInput) (*models.Payment, error) {
	if input.Method.Gateway() {
		return nil, fmt.Errorf("%w: %s payments are started through the gateway flow", ErrUnsupportedMethod, input.Method)
	}
	switch input.Method {
	case models.MethodCash, models.MethodCreditCard, models.MethodPayPal:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, input.Method)
	}

	order, err := s.loadPayableOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	return s.findOrCreate(ctx, &models.Payment{
		ID:      uuid.New().String(),
		OrderID: order.ID,
		Amount:  order.Total,
		Method:  input.Method,
		Status:  models.PaymentPending,
	})
}

// findOrCreate returns the order's payment for fresh.Method, inserting fresh
// when there is none. A concurrent insert that wins the unique key is
// reloaded and returned instead.
func (s *PaymentService) findOrCreate(ctx context.Context, fresh *models.Payment) (*models.Payment, error) {
	existing, err := s.paymentRepo.FindByOrder(ctx, fresh.OrderID, fresh.Method)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	err = s.paymentRepo.Create(ctx, fresh)
	if errors.Is(err, repositories.ErrDuplicate) {
		existing, err = s.paymentRepo.FindByOrder(ctx, fresh.OrderID, fresh.Method)
		if err != nil {
			return nil, fmt.Errorf("failed to reload payment: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return fresh, nil
}

// CreateGatewayPayment finds or creates the order's gateway payment and
// returns a signed redirect URL for it. The charged amount is always the
// order total. A Failed or Cancelled attempt is re-armed to Pending under a
// fresh transaction reference so the customer can retry.
func (s *PaymentService) CreateGatewayPayment(ctx context.Context, input GatewayPaymentInput) (*GatewayPayment, error) {
	order, err := s.loadPayableOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.Amount != nil && !input.Amount.Equal(order.Total) {
		return nil, fmt.Errorf("%w: got %s, order total is %s", ErrAmountMismatch, input.Amount.String(), order.Total.String())
	}

	payment, err := s.findOrCreate(ctx, &models.Payment{
		ID:      uuid.New().String(),
		OrderID: order.ID,
		Amount:  order.Total,
		Method:  models.MethodVnPay,
		Status:  models.PaymentPending,
		TxnRef:  vnpay.AttemptRef(order.ID, 1),
		Attempt: 1,
	})
	if err != nil {
		return nil, err
	}
	if err := s.rearm(ctx, payment); err != nil {
		return nil, err
	}

	created := s.builder.Now()
	url, err := s.builder.Build(vnpay.PaymentRequest{
		OrderRef:  payment.TxnRef,
		Amount:    payment.Amount,
		OrderInfo: input.OrderInfo,
		Locale:    input.Locale,
		ClientIP:  input.ClientIP,
		BankCode:  input.BankCode,
		CreatedAt: created,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build payment URL: %w", err)
	}
	if err := s.paymentRepo.SetCreateDate(ctx, payment.ID, s.builder.CreateDate(created)); err != nil {
		log.Printf("Warning: failed to record create date for payment %s: %v", payment.ID, err)
	}

	return &GatewayPayment{
		PaymentURL: url,
		PaymentID:  payment.ID,
		TxnRef:     payment.TxnRef,
	}, nil
}

// rearm prepares a gateway payment for another redirect. A Pending payment
// keeps its reference. A Failed or Cancelled one moves back to Pending under
// a new attempt and reference, so callbacks for the closed attempt can no
// longer match it.
func (s *PaymentService) rearm(ctx context.Context, payment *models.Payment) error {
	if payment.Attempt < 1 {
		payment.Attempt = 1
	}
	if payment.TxnRef == "" {
		txnRef := vnpay.AttemptRef(payment.OrderID, payment.Attempt)
		if err := s.paymentRepo.SetTxnRef(ctx, payment.ID, txnRef); err != nil {
			return fmt.Errorf("failed to set transaction reference: %w", err)
		}
		payment.TxnRef = txnRef
	}

	switch payment.Status {
	case models.PaymentPending:
		return nil
	case models.PaymentPaid:
		return fmt.Errorf("%w: payment %s", ErrAlreadyPaid, payment.ID)
	}

	from := payment.Status
	next := payment.Attempt + 1
	update := repositories.PaymentUpdate{
		Status:  models.PaymentPending,
		TxnRef:  vnpay.AttemptRef(payment.OrderID, next),
		Attempt: next,
	}
	ok, err := s.paymentRepo.Transition(ctx, payment.ID, from, update)
	if err != nil {
		return fmt.Errorf("failed to re-arm payment %s: %w", payment.ID, err)
	}
	if !ok {
		// Someone else moved it first; use whatever attempt they armed.
		current, err := s.paymentRepo.GetByID(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to reload payment %s: %w", payment.ID, err)
		}
		if current.Status == models.PaymentPaid {
			return fmt.Errorf("%w: payment %s", ErrAlreadyPaid, payment.ID)
		}
		if current.Status != models.PaymentPending {
			return fmt.Errorf("payment %s changed to %s while re-arming", payment.ID, current.Status)
		}
		*payment = *current
		return nil
	}
	log.Printf("Re-armed payment %s for order %s as attempt %d (was %s)", payment.ID, payment.OrderID, next, from)
	payment.Status = models.PaymentPending
	payment.TxnRef = update.TxnRef
	payment.Attempt = next
	return nil
}

// QueryTransaction asks the provider for the current status of a gateway
// payment. It does not change local state.
func (s *PaymentService) QueryTransaction(ctx context.Context, paymentID, clientIP string) (map[string]interface{}, error) {
	if s.querier == nil {
		return nil, fmt.Errorf("%w: provider API is not configured", ErrNotQueryable)
	}
	payment, err := s.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.Gateway() || payment.TxnRef == "" || payment.CreateDate == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotQueryable, paymentID)
	}
	return s.querier.QueryTransaction(ctx, payment.TxnRef, payment.CreateDate, clientIP)
}
