package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bookstore/internal/models"
	"bookstore/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	customerRepo repositories.CustomerRepository
	jwtSecret    []byte
	tokenDurat   time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(customerRepo repositories.CustomerRepository, jwtSecret string) *AuthService {
	return &AuthService{
		customerRepo: customerRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenDurat:   24 * time.Hour,
	}
}

// Register creates a customer account with a hashed password. Accounts
// created here are never administrators.
func (s *AuthService) Register(ctx context.Context, customer *models.Customer) error {
	return s.register(ctx, customer, false)
}

// RegisterAdmin creates an administrator account. It is only reachable from
// the command line.
func (s *AuthService) RegisterAdmin(ctx context.Context, customer *models.Customer) error {
	return s.register(ctx, customer, true)
}

func (s *AuthService) register(ctx context.Context, customer *models.Customer, admin bool) error {
	customer.Email = strings.ToLower(strings.TrimSpace(customer.Email))
	if existing, err := s.customerRepo.GetByEmail(ctx, customer.Email); err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrEmailTaken, customer.Email)
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(customer.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	customer.Password = string(hashedPassword)
	customer.IsAdmin = admin

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return fmt.Errorf("failed to register customer: %w", err)
	}
	return nil
}

// Login authenticates a customer and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	customer, err := s.customerRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(customer)
}

// IssueToken signs a token carrying the customer's identity and role.
func (s *AuthService) IssueToken(customer *models.Customer) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  customer.ID,
		"email":    customer.Email,
		"is_admin": customer.IsAdmin,
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
