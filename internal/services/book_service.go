package services

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// BookService handles business logic related to the catalog.
type BookService struct {
	repo repositories.BookRepository
}

// NewBookService creates a new BookService.
func NewBookService(repo repositories.BookRepository) *BookService {
	return &BookService{
		repo: repo,
	}
}

// GetAllBooks retrieves all books.
func (s *BookService) GetAllBooks(ctx context.Context) ([]models.Book, error) {
	return s.repo.GetAll(ctx)
}

// GetBookByID retrieves a single book by its ID.
func (s *BookService) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return book, err
}

// CreateBook creates a new book.
func (s *BookService) CreateBook(ctx context.Context, book *models.Book) error {
	if book.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	return s.repo.Create(ctx, book)
}

// UpdateBook updates an existing book.
func (s *BookService) UpdateBook(ctx context.Context, book *models.Book) error {
	if book.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	err := s.repo.Update(ctx, book)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBookNotFound, book.ID)
	}
	return err
}

// DeleteBook deletes a book by its ID.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return err
}
