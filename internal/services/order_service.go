package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bookstore/internal/models"
	"bookstore/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemInput is one requested line of a checkout.
type OrderItemInput struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0,lte=1000"`
}

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	Fullname string           `json:"fullname" validate:"required,min=2,max=255"`
	Phone    string           `json:"phone" validate:"required,min=6,max=32"`
	Address  string           `json:"address" validate:"required,min=5,max=500"`
	Note     string           `json:"note" validate:"omitempty,max=1000"`
	Items    []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	bookRepo    repositories.BookRepository
	paymentRepo repositories.PaymentRepository
	notifier    OrderNotifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, bookRepo repositories.BookRepository, paymentRepo repositories.PaymentRepository, notifier OrderNotifier) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		bookRepo:    bookRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// GetOrdersForCustomer retrieves the orders placed by one customer.
func (s *OrderService) GetOrdersForCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.orderRepo.GetByCustomer(ctx, customerID)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return order, err
}

// CreateOrder snapshots the requested books into a new Pending order. An
// empty customerID places a guest order. Stock is checked but not reserved;
// it is decremented once the order is paid.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for book %s must be positive", item.BookID)
		}
		book, err := s.bookRepo.GetByID(ctx, item.BookID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, item.BookID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load book %s: %w", item.BookID, err)
		}
		if book.Stock < item.Quantity {
			return nil, fmt.Errorf("%w for book %s (requested: %d, available: %d)", ErrInsufficientStock, book.Title, item.Quantity, book.Stock)
		}

		items = append(items, models.OrderItem{
			BookID:   book.ID,
			Title:    book.Title,
			Price:    book.Price,
			Quantity: item.Quantity,
			Image:    book.Image,
		})
		total = total.Add(book.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &models.Order{
		ID:       uuid.New().String(),
		Fullname: input.Fullname,
		Phone:    input.Phone,
		Address:  input.Address,
		Note:     input.Note,
		Items:    items,
		Total:    total,
		Status:   models.OrderPending,
	}
	if customerID != "" {
		order.CustomerID = &customerID
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}
	log.Printf("Created order %s with %d items, total %s", order.ID, len(order.Items), order.Total.StringFixed(2))
	return order, nil
}

// UpdateOrderStatus sets an administrative status. Paid and Failed are
// reserved for payment reconciliation.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if status == models.OrderPaid || status == models.OrderFailed {
		return fmt.Errorf("%w: %s", ErrStatusReserved, status)
	}

	err := s.orderRepo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}

	notifyInBackground(s.notifier, id, status)
	return nil
}

// DeleteOrder removes an order unless a gateway payment for it is still
// waiting on the provider.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	payment, err := s.paymentRepo.FindByOrder(ctx, id, models.MethodVnPay)
	switch {
	case err == nil && payment.Status == models.PaymentPending:
		return fmt.Errorf("%w: %s", ErrPaymentPending, id)
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("failed to check payments for order %s: %w", id, err)
	}

	err = s.orderRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return err
}
