package services_test

import (
	"context"
	"sync"
	"testing"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/pkg/vnpay"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testHashSecret = "TESTSECRET"

// recordingNotifier captures notifications sent in the background.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.OrderStatus
	sent  chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan string, 16)}
}

func (n *recordingNotifier) NotifyOrderStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	n.mu.Lock()
	n.calls = append(n.calls, status)
	n.mu.Unlock()
	n.sent <- orderID
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fixture struct {
	orders    *repositories.MockOrderRepository
	books     *repositories.MockBookRepository
	payments  *repositories.MockPaymentRepository
	notifier  *recordingNotifier
	stock     *services.StockService
	reconcile *services.ReconcileService
}

func newFixture() *fixture {
	f := &fixture{
		orders:   repositories.NewMockOrderRepository(),
		books:    repositories.NewMockBookRepository(),
		payments: repositories.NewMockPaymentRepository(),
		notifier: newRecordingNotifier(),
	}
	f.stock = services.NewStockService(f.orders, f.books)
	f.reconcile = services.NewReconcileService(vnpay.NewVerifier(testHashSecret), f.payments, f.orders, f.stock, f.notifier)
	return f
}

func (f *fixture) addBook(t *testing.T, title string, price int64, stock int) *models.Book {
	t.Helper()
	book := &models.Book{Title: title, Price: decimal.NewFromInt(price), Stock: stock}
	require.NoError(t, f.books.Create(context.Background(), book))
	return book
}

func (f *fixture) addOrder(t *testing.T, items ...models.OrderItem) *models.Order {
	t.Helper()
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	order := &models.Order{
		Fullname: "Tran Thi B",
		Phone:    "0901234567",
		Address:  "12 Le Loi, District 1",
		Items:    items,
		Total:    total,
		Status:   models.OrderPending,
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

// addGatewayPayment stores a Pending VnPay payment for order with txnRef set.
func (f *fixture) addGatewayPayment(t *testing.T, order *models.Order) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		OrderID: order.ID,
		Amount:  order.Total,
		Method:  models.MethodVnPay,
		Status:  models.PaymentPending,
		TxnRef:  vnpay.TruncateRef(order.ID),
	}
	require.NoError(t, f.payments.Create(context.Background(), payment))
	return payment
}

func itemFor(book *models.Book, qty int) models.OrderItem {
	return models.OrderItem{BookID: book.ID, Title: book.Title, Price: book.Price, Quantity: qty}
}

// callback returns provider callback parameters signed with testHashSecret.
func callback(txnRef, responseCode string, amount decimal.Decimal) vnpay.Params {
	params := vnpay.Params{
		"vnp_TmnCode":       "DEMO0001",
		"vnp_TxnRef":        txnRef,
		"vnp_Amount":        decimal.NewFromInt(vnpay.ToSmallestUnit(amount)).String(),
		"vnp_ResponseCode":  responseCode,
		"vnp_TransactionNo": "14012345",
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       "20260302003512",
		"vnp_OrderInfo":     "Thanh toan don hang #" + txnRef,
	}
	params[vnpay.FieldSecureHash] = vnpay.Sign(params, testHashSecret)
	return params
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	book, err := f.books.GetByID(context.Background(), id)
	require.NoError(t, err)
	return book.Stock
}
