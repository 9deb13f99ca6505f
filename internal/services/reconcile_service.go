package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/pkg/vnpay"

	"github.com/shopspring/decimal"
)

// Channel identifies which provider callback delivered an outcome.
type Channel string

const (
	ChannelIPN    Channel = "ipn"
	ChannelReturn Channel = "return"
)

// ResultCode is the terminal action taken for one callback.
type ResultCode string

const (
	ResultPaid             ResultCode = "paid"
	ResultFailed           ResultCode = "failed"
	ResultAlreadyConfirmed ResultCode = "already_confirmed"
	ResultNotFound         ResultCode = "not_found"
	ResultAmountMismatch   ResultCode = "amount_mismatch"
	ResultInvalidSignature ResultCode = "invalid_signature"
)

var amountTolerance = decimal.RequireFromString("0.01")

// ReconcileResult reports what a callback did. Payment is nil when no
// payment could be located.
type ReconcileResult struct {
	Code    ResultCode
	Outcome vnpay.Outcome
	Payment *models.Payment
}

// ReconcileService applies verified provider outcomes to payments and
// orders. Both callback channels share it and may call it concurrently for
// the same transaction; the payment status transition is a conditional
// update so only one caller ever settles a payment.
type ReconcileService struct {
	verifier    *vnpay.Verifier
	paymentRepo repositories.PaymentRepository
	orderRepo   repositories.OrderRepository
	stock       *StockService
	notifier    OrderNotifier
	now         func() time.Time
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(verifier *vnpay.Verifier, paymentRepo repositories.PaymentRepository, orderRepo repositories.OrderRepository, stock *StockService, notifier OrderNotifier) *ReconcileService {
	return &ReconcileService{
		verifier:    verifier,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		stock:       stock,
		notifier:    notifier,
		now:         time.Now,
	}
}

// ProcessCallback verifies raw callback parameters and reconciles them.
func (s *ReconcileService) ProcessCallback(ctx context.Context, ch Channel, raw vnpay.Params) (*ReconcileResult, error) {
	return s.Reconcile(ctx, ch, s.verifier.Verify(raw))
}

// Reconcile moves the payment named by outcome out of Pending. A non-nil
// error means state could not be persisted and the callback must not be
// acknowledged as processed.
func (s *ReconcileService) Reconcile(ctx context.Context, ch Channel, outcome vnpay.Outcome) (*ReconcileResult, error) {
	result := &ReconcileResult{Outcome: outcome}
	if !outcome.Valid {
		result.Code = ResultInvalidSignature
		log.Printf("[%s] rejected callback with invalid signature", ch)
		return result, nil
	}

	payment, err := s.resolvePayment(ctx, outcome.TxnRef)
	if errors.Is(err, repositories.ErrNotFound) {
		result.Code = ResultNotFound
		log.Printf("[%s] no payment for txn %q: %v", ch, outcome.TxnRef, err)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Payment = payment

	if payment.Status != models.PaymentPending {
		return s.alreadyConfirmed(ctx, ch, result)
	}

	if !amountMatches(payment.Amount, outcome) {
		result.Code = ResultAmountMismatch
		log.Printf("[%s] amount mismatch for txn %s: callback %q, payment %s", ch, outcome.TxnRef, outcome.RawAmount, payment.Amount.StringFixed(2))
		return result, nil
	}

	if outcome.Success {
		return s.markPaid(ctx, ch, result)
	}
	return s.markFailed(ctx, ch, result)
}

// resolvePayment finds the gateway payment for txnRef: by the stored
// reference first, then by order id. The order id fallback only matches a
// payment that has no reference yet, which then gets it backfilled; a payment
// already carrying another reference belongs to a newer attempt.
func (s *ReconcileService) resolvePayment(ctx context.Context, txnRef string) (*models.Payment, error) {
	if txnRef == "" {
		return nil, fmt.Errorf("empty transaction reference: %w", repositories.ErrNotFound)
	}

	payment, err := s.paymentRepo.FindByTxnRef(ctx, txnRef, models.MethodVnPay)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment by txn ref: %w", err)
	}

	payment, err = s.paymentRepo.FindByOrder(ctx, txnRef, models.MethodVnPay)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up payment by order: %w", err)
	}
	if payment.TxnRef != "" {
		return nil, fmt.Errorf("txn %s superseded by %s: %w", txnRef, payment.TxnRef, repositories.ErrNotFound)
	}
	if err := s.paymentRepo.SetTxnRef(ctx, payment.ID, txnRef); err != nil {
		return nil, err
	}
	payment.TxnRef = txnRef
	return payment, nil
}

func amountMatches(expected decimal.Decimal, outcome vnpay.Outcome) bool {
	if outcome.RawAmount == "" {
		return false
	}
	return expected.Sub(outcome.Amount).Abs().LessThanOrEqual(amountTolerance)
}

func (s *ReconcileService) markPaid(ctx context.Context, ch Channel, result *ReconcileResult) (*ReconcileResult, error) {
	payment := result.Payment
	outcome := result.Outcome
	paidAt := s.now()
	update := repositories.PaymentUpdate{
		Status:            models.PaymentPaid,
		TransactionNo:     outcome.TransactionNo,
		BankCode:          outcome.BankCode,
		ResponseCode:      outcome.ResponseCode,
		TransactionStatus: outcome.TransactionStatus,
		PayDate:           outcome.PayDate,
		PaidAt:            &paidAt,
	}

	won, err := s.paymentRepo.Transition(ctx, payment.ID, models.PaymentPending, update)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.lostRace(ctx, ch, result)
	}
	applyUpdate(payment, update)
	result.Code = ResultPaid
	log.Printf("[%s] payment %s for order %s marked Paid (txn %s)", ch, payment.ID, payment.OrderID, outcome.TransactionNo)

	if err := s.settleOrder(ctx, payment.OrderID, true); err != nil {
		return result, err
	}
	return result, nil
}

func (s *ReconcileService) markFailed(ctx context.Context, ch Channel, result *ReconcileResult) (*ReconcileResult, error) {
	payment := result.Payment
	outcome := result.Outcome
	update := repositories.PaymentUpdate{
		Status:            models.PaymentFailed,
		TransactionNo:     outcome.TransactionNo,
		BankCode:          outcome.BankCode,
		ResponseCode:      outcome.ResponseCode,
		TransactionStatus: outcome.TransactionStatus,
		PayDate:           outcome.PayDate,
	}

	won, err := s.paymentRepo.Transition(ctx, payment.ID, models.PaymentPending, update)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.lostRace(ctx, ch, result)
	}
	applyUpdate(payment, update)
	result.Code = ResultFailed
	log.Printf("[%s] payment %s for order %s marked Failed (code %s)", ch, payment.ID, payment.OrderID, outcome.ResponseCode)
	return result, nil
}

// lostRace handles a payment that left Pending between lookup and update.
func (s *ReconcileService) lostRace(ctx context.Context, ch Channel, result *ReconcileResult) (*ReconcileResult, error) {
	current, err := s.paymentRepo.GetByID(ctx, result.Payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment %s: %w", result.Payment.ID, err)
	}
	result.Payment = current
	return s.alreadyConfirmed(ctx, ch, result)
}

// alreadyConfirmed reports a duplicate callback. For a Paid payment it also
// finishes any order settlement an earlier caller did not get to; this is a
// no-op once the order is Paid and its stock is decremented.
func (s *ReconcileService) alreadyConfirmed(ctx context.Context, ch Channel, result *ReconcileResult) (*ReconcileResult, error) {
	result.Code = ResultAlreadyConfirmed
	log.Printf("[%s] payment %s already %s, ignoring callback", ch, result.Payment.ID, result.Payment.Status)
	if result.Payment.Status != models.PaymentPaid {
		return result, nil
	}
	if err := s.settleOrder(ctx, result.Payment.OrderID, false); err != nil {
		return result, err
	}
	return result, nil
}

// settleOrder marks the order Paid and decrements its stock. first is set
// only for the caller that moved the payment to Paid; other callers only
// advance an order still left in Pending. The order status changes by
// conditional update, so exactly one caller notifies. A failed stock claim
// is returned so the provider retries; retries reach here again through
// alreadyConfirmed.
func (s *ReconcileService) settleOrder(ctx context.Context, orderID string, first bool) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Warning: order %s of a paid payment no longer exists", orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	if order.Status == models.OrderPending || (first && order.Status != models.OrderPaid) {
		won, err := s.orderRepo.TransitionStatus(ctx, orderID, order.Status, models.OrderPaid)
		if err != nil {
			return err
		}
		if won {
			order.Status = models.OrderPaid
			notifyInBackground(s.notifier, orderID, models.OrderPaid)
		} else if order, err = s.orderRepo.GetByID(ctx, orderID); err != nil {
			return fmt.Errorf("failed to reload order %s: %w", orderID, err)
		}
	}
	if order.Status != models.OrderPaid {
		log.Printf("Warning: order %s is %s, leaving its stock untouched", orderID, order.Status)
		return nil
	}

	err = s.stock.DecrementForOrder(ctx, order)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Warning: order %s disappeared before its stock was decremented", orderID)
		return nil
	}
	return err
}

func applyUpdate(p *models.Payment, u repositories.PaymentUpdate) {
	p.Status = u.Status
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.TransactionNo, u.TransactionNo)
	set(&p.BankCode, u.BankCode)
	set(&p.ResponseCode, u.ResponseCode)
	set(&p.TransactionStatus, u.TransactionStatus)
	set(&p.PayDate, u.PayDate)
	if u.PaidAt != nil {
		p.PaidAt = u.PaidAt
	}
}
