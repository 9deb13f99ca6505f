package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// StockService applies the inventory effect of a paid order.
type StockService struct {
	orderRepo repositories.OrderRepository
	bookRepo  repositories.BookRepository
}

// NewStockService creates a new StockService.
func NewStockService(orderRepo repositories.OrderRepository, bookRepo repositories.BookRepository) *StockService {
	return &StockService{
		orderRepo: orderRepo,
		bookRepo:  bookRepo,
	}
}

// DecrementForOrder subtracts each item's quantity from its book, at most
// once per order. The order's stock flag is claimed before any book is
// touched, so concurrent callers cannot both decrement. Missing books and
// items with insufficient stock are logged and skipped; the order still
// counts as done.
func (s *StockService) DecrementForOrder(ctx context.Context, order *models.Order) error {
	if order.StockDecreased {
		return nil
	}

	claimed, err := s.orderRepo.ClaimStockDecrement(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to claim stock decrement for order %s: %w", order.ID, err)
	}
	order.StockDecreased = true
	if !claimed {
		return nil
	}

	for _, item := range order.Items {
		ok, err := s.bookRepo.DecrementStock(ctx, item.BookID, item.Quantity)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			log.Printf("Warning: book %s in order %s no longer exists, skipping stock decrement", item.BookID, order.ID)
		case err != nil:
			log.Printf("Warning: failed to decrement stock of book %s for order %s: %v", item.BookID, order.ID, err)
		case !ok:
			log.Printf("Warning: insufficient stock of book %s for order %s (wanted %d), skipping", item.BookID, order.ID, item.Quantity)
		}
	}
	return nil
}
