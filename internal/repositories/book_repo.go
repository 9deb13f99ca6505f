package repositories

import (
	"context"

	"bookstore/internal/models"
)

// BookRepository defines the interface for catalog data access.
type BookRepository interface {
	GetAll(ctx context.Context) ([]models.Book, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts quantity when at least that much is in stock.
	// It returns false, nil when stock is insufficient.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
}
