// Package server wires repositories, services and handlers into a Fiber app.
package server

import (
	"time"

	"bookstore/internal/config"
	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/pkg/vnpay"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// Repositories groups the GORM-backed stores.
type Repositories struct {
	Orders    repositories.OrderRepository
	Payments  repositories.PaymentRepository
	Books     repositories.BookRepository
	Customers repositories.CustomerRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Orders:    repositories.NewGORMOrderRepository(db),
		Payments:  repositories.NewGORMPaymentRepository(db),
		Books:     repositories.NewGORMBookRepository(db),
		Customers: repositories.NewGORMCustomerRepository(db),
	}
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Customer{}, &models.Book{}, &models.Order{}, &models.OrderItem{}, &models.Payment{})
}

// Server is the assembled HTTP application.
type Server struct {
	App         *fiber.App
	AuthService *services.AuthService
	limiter     *middleware.IPLimiter
}

// Options tweak how New builds the app.
type Options struct {
	// RequestLogging enables fiber's request logger.
	RequestLogging bool
	// Now overrides the clock used for provider timestamps.
	Now func() time.Time
}

// New builds the Fiber app. notifier may be nil to disable status emails.
func New(cfg *config.Config, repos Repositories, notifier services.OrderNotifier, opts Options) *Server {
	vnpayCfg := vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		APIURL:     cfg.VNPay.APIURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
		Now:        opts.Now,
	}

	authService := services.NewAuthService(repos.Customers, cfg.JWTSecret)
	bookService := services.NewBookService(repos.Books)
	orderService := services.NewOrderService(repos.Orders, repos.Books, repos.Payments, notifier)
	stockService := services.NewStockService(repos.Orders, repos.Books)
	paymentService := services.NewPaymentService(repos.Orders, repos.Payments, vnpay.NewBuilder(vnpayCfg), vnpay.NewQueryClient(vnpayCfg))
	reconcileService := services.NewReconcileService(vnpay.NewVerifier(cfg.VNPay.HashSecret), repos.Payments, repos.Orders, stockService, notifier)

	var limiter *middleware.IPLimiter
	if cfg.IPNRateLimit > 0 && cfg.IPNRateBurst > 0 {
		limiter = middleware.NewIPLimiter(cfg.IPNRateLimit, cfg.IPNRateBurst)
	}

	authHandler := handlers.NewAuthHandler(authService)
	bookHandler := handlers.NewBookHandler(bookService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, orderService, reconcileService, limiter, cfg.FrontendURL)

	app := fiber.New(fiber.Config{AppName: "bookstore"})
	app.Use(recover.New())
	if opts.RequestLogging {
		app.Use(logger.New())
	}

	requireAuth := middleware.AuthRequired(authService)
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	bookHandler.RegisterRoutes(apiV1, requireAuth)
	paymentHandler.RegisterRoutes(apiV1, requireAuth)
	orderHandler.RegisterRoutes(apiV1.Group("", requireAuth))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &Server{App: app, AuthService: authService, limiter: limiter}
}

// Close releases background resources. It does not stop the listener.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}
