package repositories

import (
	"context"

	"bookstore/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	// TransitionStatus sets status to "to" only if it is currently "from".
	TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)
	// ClaimStockDecrement sets stock_decreased if it is still false and
	// reports whether this call was the one that set it.
	ClaimStockDecrement(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
