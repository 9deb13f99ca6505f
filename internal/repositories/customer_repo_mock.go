package repositories

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookstore/internal/models"

	"github.com/google/uuid"
)

// MockCustomerRepository is an in-memory implementation of CustomerRepository.
type MockCustomerRepository struct {
	customers map[string]models.Customer
	mu        sync.RWMutex
}

func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]models.Customer),
	}
}

func (r *MockCustomerRepository) Create(_ context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	customer.Email = strings.ToLower(customer.Email)
	for _, c := range r.customers {
		if c.Email == customer.Email {
			return fmt.Errorf("failed to create customer: email %s already exists", customer.Email)
		}
	}
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	now := time.Now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.customers[customer.ID] = *customer
	return nil
}

func (r *MockCustomerRepository) GetByEmail(_ context.Context, email string) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.customers {
		if c.Email == strings.ToLower(email) {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("customer with email %s: %w", email, ErrNotFound)
}

func (r *MockCustomerRepository) GetByID(_ context.Context, id string) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer with ID %s: %w", id, ErrNotFound)
	}
	return &c, nil
}
