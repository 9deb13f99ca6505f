package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"bookstore/internal/config"
	"bookstore/internal/models"
	"bookstore/internal/server"
	"bookstore/pkg/vnpay"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testHashSecret = "INTEGRATIONSECRET"
	frontendURL    = "http://shop.test"
)

type testEnv struct {
	app         *fiber.App
	repos       server.Repositories
	srv         *server.Server
	adminToken  string
	readerToken string
	readerID    string
}

// setupApp builds the full app over a private in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, server.Migrate(db))

	cfg := &config.Config{
		DBDriver:    "sqlite",
		JWTSecret:   "test_jwt_secret",
		FrontendURL: frontendURL,
		VNPay: config.VNPay{
			TmnCode:    "DEMO0001",
			HashSecret: testHashSecret,
			PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "http://localhost:4001/api/v1/payment/vnpay/callback",
		},
		IPNRateLimit: 1000,
		IPNRateBurst: 1000,
	}
	repos := server.NewRepositories(db)
	srv := server.New(cfg, repos, nil, server.Options{})
	t.Cleanup(srv.Close)

	ctx := context.Background()
	admin := &models.Customer{Fullname: "Admin", Email: "admin@bookstore.test", Password: "x", IsAdmin: true}
	require.NoError(t, repos.Customers.Create(ctx, admin))
	reader := &models.Customer{Fullname: "Reader", Email: "reader@bookstore.test", Password: "x"}
	require.NoError(t, repos.Customers.Create(ctx, reader))

	adminToken, err := srv.AuthService.IssueToken(admin)
	require.NoError(t, err)
	readerToken, err := srv.AuthService.IssueToken(reader)
	require.NoError(t, err)

	return &testEnv{app: srv.App, repos: repos, srv: srv, adminToken: adminToken, readerToken: readerToken, readerID: reader.ID}
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) seedBook(t *testing.T, title string, price int64, stock int) *models.Book {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/books", e.adminToken, map[string]interface{}{
		"title": title, "author": "Nguyen Nhat Anh", "price": price, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var book models.Book
	decode(t, resp, &book)
	return &book
}

func (e *testEnv) checkout(t *testing.T, book *models.Book, qty int) *models.Order {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/orders", e.readerToken, map[string]interface{}{
		"fullname": "Reader One",
		"phone":    "0901234567",
		"address":  "1 Dong Khoi, HCMC",
		"items":    []map[string]interface{}{{"book_id": book.ID, "quantity": qty}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	return &order
}

func (e *testEnv) startGatewayPayment(t *testing.T, orderID string) url.Values {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/payments/vnpay/create", e.readerToken, map[string]interface{}{"orderId": orderID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		PaymentURL string `json:"paymentUrl"`
		PaymentID  string `json:"paymentId"`
	}
	decode(t, resp, &out)
	u, err := url.Parse(out.PaymentURL)
	require.NoError(t, err)
	return u.Query()
}

// providerCallback simulates the provider's signed callback query.
func providerCallback(txnRef, amount, responseCode string) string {
	params := vnpay.Params{
		"vnp_TmnCode":       "DEMO0001",
		"vnp_TxnRef":        txnRef,
		"vnp_Amount":        amount,
		"vnp_ResponseCode":  responseCode,
		"vnp_TransactionNo": "14099999",
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       "20260302010203",
		"vnp_OrderInfo":     "Thanh toan don hang #" + txnRef,
	}
	params[vnpay.FieldSecureHash] = vnpay.Sign(params, testHashSecret)
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return q.Encode()
}

func ipnCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	return body["RspCode"]
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	register := map[string]interface{}{
		"fullname": "New Reader",
		"email":    "new@example.com",
		"password": "password123",
		"is_admin": true,
	}
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var registerResp map[string]interface{}
	decode(t, resp, &registerResp)
	assert.Equal(t, "Customer registered successfully", registerResp["message"])
	customer := registerResp["customer"].(map[string]interface{})
	assert.Equal(t, false, customer["is_admin"])
	assert.NotContains(t, customer, "password")

	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "new@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])

	claims, err := env.srv.AuthService.ValidateToken(loginResp["token"])
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", claims["email"])
	assert.Equal(t, false, claims["is_admin"])

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "new@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestBookEndpoints(t *testing.T) {
	env := setupApp(t)
	book := env.seedBook(t, "Mat Biec", 110000, 4)

	resp := env.do(t, http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var books []models.Book
	decode(t, resp, &books)
	assert.Len(t, books, 1)

	resp = env.do(t, http.MethodGet, "/api/v1/books/"+book.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/books", "", map[string]interface{}{"title": "x", "price": 1})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(t, http.MethodPost, "/api/v1/books", env.readerToken, map[string]interface{}{"title": "x", "price": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPut, "/api/v1/books/"+book.ID, env.adminToken, map[string]interface{}{
		"title": "Mat Biec (tai ban)", "price": "120000", "stock": 9,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	stored, err := env.repos.Books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mat Biec (tai ban)", stored.Title)
	assert.Equal(t, 9, stored.Stock)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(120000)))

	resp = env.do(t, http.MethodDelete, "/api/v1/books/"+book.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/books/"+book.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGatewayPaymentEndToEnd(t *testing.T) {
	env := setupApp(t)
	ctx := context.Background()
	book := env.seedBook(t, "Toi La Beo", 75000, 10)
	order := env.checkout(t, book, 2)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, models.OrderPending, order.Status)

	q := env.startGatewayPayment(t, order.ID)
	assert.Equal(t, "15000000", q.Get("vnp_Amount"))
	assert.Equal(t, order.ID, q.Get("vnp_TxnRef"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))

	callback := providerCallback(order.ID, "15000000", "00")

	// Browser redirect lands first.
	resp := env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?"+callback, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, frontendURL+"/payment/success?orderId="+order.ID, resp.Header.Get("Location"))

	// Provider notification for the same transaction is a duplicate.
	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+callback, "", nil)
	assert.Equal(t, "02", ipnCode(t, resp))

	// A repeated redirect still shows success.
	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?"+callback, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/payment/success")

	stored, err := env.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
	assert.True(t, stored.StockDecreased)

	storedBook, err := env.repos.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, storedBook.Stock)

	payment, err := env.repos.Payments.FindByOrder(ctx, order.ID, models.MethodVnPay)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, payment.Status)
	assert.Equal(t, "14099999", payment.TransactionNo)
	assert.NotNil(t, payment.PaidAt)

	// Paid orders cannot start another payment.
	resp = env.do(t, http.MethodPost, "/api/v1/payments/vnpay/create", env.readerToken, map[string]interface{}{"orderId": order.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestIPNResponseCodes(t *testing.T) {
	env := setupApp(t)
	book := env.seedBook(t, "Kinh Van Hoa", 50000, 10)
	order := env.checkout(t, book, 1)
	env.startGatewayPayment(t, order.ID)

	tampered := strings.Replace(providerCallback(order.ID, "5000000", "00"), "vnp_Amount=5000000", "vnp_Amount=100", 1)
	resp := env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+tampered, "", nil)
	assert.Equal(t, "97", ipnCode(t, resp))

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+providerCallback("unknown-ref", "5000000", "00"), "", nil)
	assert.Equal(t, "01", ipnCode(t, resp))

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn", "", nil)
	assert.Equal(t, "99", ipnCode(t, resp))

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+providerCallback(order.ID, "100", "00"), "", nil)
	assert.Equal(t, "04", ipnCode(t, resp))

	// Form-encoded POST body is accepted as well.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/vnpay/ipn", strings.NewReader(providerCallback(order.ID, "5000000", "00")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "00", ipnCode(t, resp))

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+providerCallback(order.ID, "5000000", "00"), "", nil)
	assert.Equal(t, "02", ipnCode(t, resp))
}

func TestIPNRateLimitStillAnswers200(t *testing.T) {
	env := setupApp(t)
	cfg := &config.Config{
		JWTSecret:    "test_jwt_secret",
		VNPay:        config.VNPay{TmnCode: "DEMO0001", HashSecret: testHashSecret, PayURL: "https://pay.test", ReturnURL: "https://return.test"},
		IPNRateLimit: 0.001,
		IPNRateBurst: 1,
	}
	limited := server.New(cfg, env.repos, nil, server.Options{})
	defer limited.Close()

	unknown := "/api/v1/payment/vnpay/ipn?" + providerCallback("unknown-ref", "100", "00")
	for i, want := range []string{"01", "99", "99"} {
		resp, err := limited.App.Test(httptest.NewRequest(http.MethodGet, unknown, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, want, ipnCode(t, resp), "request %d", i)
	}
}

func TestReturnRedirectOnFailure(t *testing.T) {
	env := setupApp(t)
	ctx := context.Background()
	book := env.seedBook(t, "Ngoi Nha Nho Tren Thao Nguyen", 60000, 3)
	order := env.checkout(t, book, 1)
	env.startGatewayPayment(t, order.ID)

	cancelled := providerCallback(order.ID, "6000000", "24")
	resp := env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?"+cancelled, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/payment/failed", location.Path)
	assert.Contains(t, location.Query().Get("message"), "24")

	stored, err := env.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Status)
	storedBook, err := env.repos.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, storedBook.Stock)

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?vnp_TxnRef="+order.ID, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/payment/failed?message=Invalid+signature")

	// The failed attempt can be retried.
	q := env.startGatewayPayment(t, order.ID)
	assert.Equal(t, order.ID+"-2", q.Get("vnp_TxnRef"))
	payment, err := env.repos.Payments.FindByOrder(ctx, order.ID, models.MethodVnPay)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)

	// Replays of the cancelled attempt no longer touch the payment.
	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?"+cancelled, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/payment/failed?message=Payment+not+found")
	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+cancelled, "", nil)
	assert.Equal(t, "01", ipnCode(t, resp))

	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/ipn?"+providerCallback(order.ID+"-2", "6000000", "00"), "", nil)
	assert.Equal(t, "00", ipnCode(t, resp))
	resp = env.do(t, http.MethodGet, "/api/v1/payment/vnpay/callback?"+providerCallback(order.ID+"-2", "6000000", "00"), "", nil)
	assert.Equal(t, frontendURL+"/payment/success?orderId="+order.ID, resp.Header.Get("Location"))

	stored, err = env.repos.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
	storedBook, err = env.repos.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, storedBook.Stock)
}

func TestOrderEndpoints(t *testing.T) {
	env := setupApp(t)
	book := env.seedBook(t, "Co Gai Den Tu Hom Qua", 70000, 5)
	order := env.checkout(t, book, 1)

	resp := env.do(t, http.MethodGet, "/api/v1/orders/my", env.readerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []models.Order
	decode(t, resp, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)
	assert.Len(t, mine[0].Items, 1)

	resp = env.do(t, http.MethodGet, "/api/v1/orders", env.readerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(t, http.MethodGet, "/api/v1/orders", env.adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID+"/status", env.adminToken, map[string]string{"status": "Paid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID+"/status", env.readerToken, map[string]string{"status": "Shipped"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(t, http.MethodPut, "/api/v1/orders/"+order.ID+"/status", env.adminToken, map[string]string{"status": "Processing"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/orders", env.readerToken, map[string]interface{}{
		"fullname": "Reader One", "phone": "0901234567", "address": "1 Dong Khoi, HCMC",
		"items": []map[string]interface{}{{"book_id": book.ID, "quantity": 99}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/orders", "", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderDeleteBlockedByPendingPayment(t *testing.T) {
	env := setupApp(t)
	book := env.seedBook(t, "Ngay Xua Co Mot Chuyen Tinh", 85000, 5)
	order := env.checkout(t, book, 1)
	env.startGatewayPayment(t, order.ID)

	resp := env.do(t, http.MethodDelete, "/api/v1/orders/"+order.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	other := env.checkout(t, book, 1)
	resp = env.do(t, http.MethodDelete, "/api/v1/orders/"+other.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCashPaymentAndAdminListing(t *testing.T) {
	env := setupApp(t)
	book := env.seedBook(t, "Chuyen Co Tich Cho Nguoi Lon", 65000, 5)
	order := env.checkout(t, book, 1)

	resp := env.do(t, http.MethodPost, "/api/v1/payments", env.readerToken, map[string]string{"orderId": order.ID, "paymentMethod": "Credit Card"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var payment models.Payment
	decode(t, resp, &payment)
	assert.Equal(t, models.MethodCreditCard, payment.Method)
	assert.Equal(t, models.PaymentPending, payment.Status)

	resp = env.do(t, http.MethodPost, "/api/v1/payments", env.readerToken, map[string]string{"orderId": order.ID, "paymentMethod": "VnPay"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/payments", env.readerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = env.do(t, http.MethodGet, "/api/v1/payments", env.adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var payments []models.Payment
	decode(t, resp, &payments)
	assert.Len(t, payments, 1)

	resp = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
