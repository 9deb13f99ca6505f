package handlers

import (
	"fmt"
	"log"

	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes on an authenticated router.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/my", h.HandleGetMyOrders)
	orderRoutes.Get("/", middleware.AdminRequired(), h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", middleware.AdminRequired(), h.HandleUpdateOrderStatus)
	orderRoutes.Delete("/:id", middleware.AdminRequired(), h.HandleDeleteOrder)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return serviceError(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetMyOrders retrieves the caller's own orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrdersForCustomer(c.UserContext(), middleware.UserID(c))
	if err != nil {
		log.Printf("Error getting orders of %s: %v", middleware.UserID(c), err)
		return serviceError(c, err, "Could not retrieve orders")
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order. Customers only see their own.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err == nil && !canAccessOrder(c, order) {
		err = fmt.Errorf("%w: %s", services.ErrOrderNotFound, orderID)
	}
	if err != nil {
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return serviceError(c, err, "Could not retrieve order")
	}
	return c.JSON(order)
}

func canAccessOrder(c *fiber.Ctx, order *models.Order) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	return order.CustomerID != nil && *order.CustomerID == middleware.UserID(c)
}

// HandleCreateOrder creates a new order for the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}

	createdOrder, err := h.service.CreateOrder(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return serviceError(c, err, "Could not create order")
	}
	return c.Status(fiber.StatusCreated).JSON(createdOrder)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status models.OrderStatus `json:"status"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		log.Printf("Error parsing request body for status update: %v", err)
		return invalidBody(c, err)
	}
	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	if err := h.service.UpdateOrderStatus(c.UserContext(), orderID, updateData.Status); err != nil {
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return serviceError(c, err, "Could not update order status")
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, updateData.Status),
	})
}

// HandleDeleteOrder removes an order.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.DeleteOrder(c.UserContext(), orderID); err != nil {
		log.Printf("Error deleting order %s: %v", orderID, err)
		return serviceError(c, err, "Could not delete order")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
