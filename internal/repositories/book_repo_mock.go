package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bookstore/internal/models"

	"github.com/google/uuid"
)

// MockBookRepository is an in-memory implementation of BookRepository.
type MockBookRepository struct {
	books map[string]models.Book
	mu    sync.RWMutex
}

// NewMockBookRepository creates a new instance of MockBookRepository.
func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books: make(map[string]models.Book),
	}
}

// GetAll returns all books.
func (r *MockBookRepository) GetAll(_ context.Context) ([]models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookList := make([]models.Book, 0, len(r.books))
	for _, b := range r.books {
		bookList = append(bookList, b)
	}
	sort.Slice(bookList, func(i, j int) bool { return bookList[i].Title < bookList[j].Title })
	return bookList, nil
}

// GetByID returns a book by its ID.
func (r *MockBookRepository) GetByID(_ context.Context, id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	return &book, nil
}

// Create adds a new book.
func (r *MockBookRepository) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	r.books[book.ID] = *book
	return nil
}

// Update modifies an existing book.
func (r *MockBookRepository) Update(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return fmt.Errorf("book with ID %s: %w", book.ID, ErrNotFound)
	}
	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = time.Now()
	r.books[book.ID] = *book
	return nil
}

// Delete removes a book by its ID.
func (r *MockBookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	delete(r.books, id)
	return nil
}

// DecrementStock subtracts quantity under the write lock.
func (r *MockBookRepository) DecrementStock(_ context.Context, id string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return false, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	if book.Stock < quantity {
		return false, nil
	}
	book.Stock -= quantity
	book.UpdatedAt = time.Now()
	r.books[id] = book
	return true, nil
}
