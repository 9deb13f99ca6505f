package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/services"
	"bookstore/pkg/vnpay"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// IPN response codes understood by the provider.
const (
	ipnConfirmed        = "00"
	ipnOrderNotFound    = "01"
	ipnAlreadyConfirmed = "02"
	ipnInvalidAmount    = "04"
	ipnInvalidSignature = "97"
	ipnUnknownError     = "99"
)

// PaymentHandler handles payment creation and the provider callbacks.
type PaymentHandler struct {
	payments    *services.PaymentService
	orders      *services.OrderService
	reconcile   *services.ReconcileService
	limiter     *middleware.IPLimiter
	frontendURL string
	validate    *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler. limiter may be nil to
// leave the notification endpoint unthrottled.
func NewPaymentHandler(payments *services.PaymentService, orders *services.OrderService, reconcile *services.ReconcileService, limiter *middleware.IPLimiter, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		payments:    payments,
		orders:      orders,
		reconcile:   reconcile,
		limiter:     limiter,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the payment routes. The provider callbacks are
// public; everything else needs a token.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	callbacks := router.Group("/payment/vnpay")
	ipn := []fiber.Handler{h.HandleIPN}
	if h.limiter != nil {
		ipn = append([]fiber.Handler{middleware.RateLimit(h.limiter, func(c *fiber.Ctx) error {
			return ipnRespond(c, ipnUnknownError, "Too many requests")
		})}, ipn...)
	}
	callbacks.Get("/ipn", ipn...)
	callbacks.Post("/ipn", ipn...)
	callbacks.Get("/callback", h.HandleReturn)

	paymentRoutes := router.Group("/payments", requireAuth)
	paymentRoutes.Post("/", h.HandleCreatePayment)
	paymentRoutes.Post("/vnpay/create", h.HandleCreateGatewayPayment)
	paymentRoutes.Get("/", middleware.AdminRequired(), h.HandleGetPayments)
	paymentRoutes.Get("/:id/query", middleware.AdminRequired(), h.HandleQueryTransaction)
}

// authorizeOrder checks that the caller may pay for orderID.
func (h *PaymentHandler) authorizeOrder(c *fiber.Ctx, orderID string) error {
	order, err := h.orders.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return err
	}
	if !canAccessOrder(c, order) {
		return fmt.Errorf("%w: %s", services.ErrOrderNotFound, orderID)
	}
	return nil
}

// HandleCreatePayment records an offline payment.
func (h *PaymentHandler) HandleCreatePayment(c *fiber.Ctx) error {
	var input services.PaymentInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}
	if err := h.authorizeOrder(c, input.OrderID); err != nil {
		return serviceError(c, err, "Could not create payment")
	}

	payment, err := h.payments.CreatePayment(c.UserContext(), input)
	if err != nil {
		log.Printf("Error creating payment for order %s: %v", input.OrderID, err)
		return serviceError(c, err, "Could not create payment")
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// HandleCreateGatewayPayment returns the provider redirect URL for an order.
func (h *PaymentHandler) HandleCreateGatewayPayment(c *fiber.Ctx) error {
	var input services.GatewayPaymentInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}
	if err := h.authorizeOrder(c, input.OrderID); err != nil {
		return serviceError(c, err, "Could not create payment URL")
	}
	input.ClientIP = c.IP()

	res, err := h.payments.CreateGatewayPayment(c.UserContext(), input)
	if err != nil {
		log.Printf("Error creating gateway payment for order %s: %v", input.OrderID, err)
		return serviceError(c, err, "Could not create payment URL")
	}
	return c.JSON(res)
}

// HandleGetPayments lists all payments.
func (h *PaymentHandler) HandleGetPayments(c *fiber.Ctx) error {
	payments, err := h.payments.GetAllPayments(c.UserContext())
	if err != nil {
		log.Printf("Error getting payments: %v", err)
		return serviceError(c, err, "Could not retrieve payments")
	}
	return c.JSON(payments)
}

// HandleQueryTransaction asks the provider about a gateway payment.
func (h *PaymentHandler) HandleQueryTransaction(c *fiber.Ctx) error {
	id := c.Params("id")
	out, err := h.payments.QueryTransaction(c.UserContext(), id, c.IP())
	if err != nil {
		log.Printf("Error querying transaction of payment %s: %v", id, err)
		return serviceError(c, err, "Could not query transaction")
	}
	return c.JSON(out)
}

func ipnRespond(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"RspCode": code,
		"Message": message,
	})
}

func ipnCodeFor(code services.ResultCode) (string, string) {
	switch code {
	case services.ResultPaid, services.ResultFailed:
		return ipnConfirmed, "Confirm Success"
	case services.ResultAlreadyConfirmed:
		return ipnAlreadyConfirmed, "Order already confirmed"
	case services.ResultNotFound:
		return ipnOrderNotFound, "Order not found"
	case services.ResultAmountMismatch:
		return ipnInvalidAmount, "Invalid amount"
	case services.ResultInvalidSignature:
		return ipnInvalidSignature, "Invalid signature"
	}
	return ipnUnknownError, "Unknown error"
}

// HandleIPN processes the provider's server-to-server notification. It
// always answers 200 with an RspCode body.
func (h *PaymentHandler) HandleIPN(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while handling IPN: %v", r)
			err = ipnRespond(c, ipnUnknownError, "Unknown error")
		}
	}()

	params := callbackParams(c, true)
	if len(params) == 0 {
		return ipnRespond(c, ipnUnknownError, "Missing parameters")
	}

	result, err := h.reconcile.ProcessCallback(c.UserContext(), services.ChannelIPN, params)
	if err != nil {
		log.Printf("Error reconciling IPN for txn %s: %v", params["vnp_TxnRef"], err)
		return ipnRespond(c, ipnUnknownError, "Unknown error")
	}
	code, message := ipnCodeFor(result.Code)
	return ipnRespond(c, code, message)
}

// HandleReturn processes the customer's browser redirect back from the
// provider and sends them on to the frontend result page.
func (h *PaymentHandler) HandleReturn(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while handling payment return: %v", r)
			err = h.redirectFailed(c, "Payment processing error")
		}
	}()

	params := callbackParams(c, false)
	if len(params) == 0 {
		return h.redirectFailed(c, "Missing payment parameters")
	}

	result, err := h.reconcile.ProcessCallback(c.UserContext(), services.ChannelReturn, params)
	if err != nil {
		log.Printf("Error reconciling payment return for txn %s: %v", params["vnp_TxnRef"], err)
		return h.redirectFailed(c, "Payment processing error")
	}

	switch result.Code {
	case services.ResultPaid, services.ResultAlreadyConfirmed:
		if result.Payment != nil && result.Payment.Status == models.PaymentPaid {
			return c.Redirect(h.frontendURL+"/payment/success?orderId="+url.QueryEscape(result.Payment.OrderID), fiber.StatusFound)
		}
		return h.redirectFailed(c, result.Outcome.Message)
	case services.ResultInvalidSignature:
		return h.redirectFailed(c, "Invalid signature")
	case services.ResultNotFound:
		return h.redirectFailed(c, "Payment not found")
	case services.ResultAmountMismatch:
		return h.redirectFailed(c, "Invalid amount")
	}
	return h.redirectFailed(c, result.Outcome.Message)
}

func (h *PaymentHandler) redirectFailed(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Payment failed"
	}
	return c.Redirect(h.frontendURL+"/payment/failed?message="+url.QueryEscape(message), fiber.StatusFound)
}

// callbackParams collects the provider parameters from the query string and,
// when withBody is set, from a form or JSON body. Empty values are dropped.
func callbackParams(c *fiber.Ctx, withBody bool) vnpay.Params {
	params := vnpay.Params{}
	add := func(k, v string) {
		if k != "" && v != "" {
			params[k] = v
		}
	}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		add(string(k), string(v))
	})
	if !withBody || len(c.Body()) == 0 {
		return params
	}

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		var body map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			log.Printf("Ignoring malformed IPN JSON body: %v", err)
			return params
		}
		for k, v := range body {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				add(k, s)
			} else {
				add(k, fmt.Sprint(v))
			}
		}
		return params
	}

	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		add(string(k), string(v))
	})
	return params
}
