package repositories

import (
	"context"

	"bookstore/internal/models"
)

// CustomerRepository defines the interface for customer data access.
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetByID(ctx context.Context, id string) (*models.Customer, error)
}
