package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/config"
	"bookstore/internal/notify"
	"bookstore/internal/server"
	"bookstore/internal/services"
	"bookstore/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// orderEventsQueue carries order status events to the mail worker.
const orderEventsQueue = "order_events"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bookstore",
		Short:        "Bookstore API with VNPay checkout",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	var (
		seed          bool
		adminEmail    string
		adminPassword string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create or update the database schema.

Examples:
  bookstore migrate
  bookstore migrate --seed
  bookstore migrate --admin-email admin@example.com --admin-password secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New())
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if err := server.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Println("Database schema is up to date")

			ctx := cmd.Context()
			repos := server.NewRepositories(db)
			if seed {
				n, err := seedCatalog(ctx, repos.Books)
				if err != nil {
					return err
				}
				log.Printf("Seeded %d books", n)
			}
			if adminEmail != "" {
				if err := createAdmin(ctx, services.NewAuthService(repos.Customers, cfg.JWTSecret), adminEmail, adminPassword); err != nil {
					return err
				}
				log.Printf("Created administrator %s", adminEmail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the sample catalog when it is empty")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "create an administrator with this email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for --admin-email")
	return cmd
}

// openDatabase connects with the driver named by cfg.DBDriver.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// buildNotifier returns the order status notifier. Events go through
// RabbitMQ when it is reachable and straight to SMTP otherwise. The returned
// func releases the queue connection.
func buildNotifier(ctx context.Context, cfg *config.Config, repos server.Repositories) (services.OrderNotifier, func()) {
	if cfg.SMTP.User == "" {
		log.Println("SMTP_USER not set, order status emails are disabled")
		return nil, func() {}
	}
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	mail := notify.NewMailNotifier(repos.Orders, repos.Customers, mailer, cfg.FrontendURL)

	if cfg.RabbitMQURL == "" {
		return mail, func() {}
	}
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: orderEventsQueue})
	if err != nil {
		log.Printf("RabbitMQ unavailable, sending emails inline: %v", err)
		return mail, func() {}
	}
	if err := mqClient.Consume(ctx, notify.NewWorker(mail).Handle); err != nil {
		log.Printf("Failed to start order event consumer, sending emails inline: %v", err)
		mqClient.Close()
		return mail, func() {}
	}
	return notify.NewQueueNotifier(mqClient), func() {
		if err := mqClient.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		return err
	}

	// --- Database ---
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := server.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	repos := server.NewRepositories(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Notifications ---
	notifier, closeNotifier := buildNotifier(ctx, cfg, repos)
	defer closeNotifier()

	// --- HTTP server ---
	srv := server.New(cfg, repos, notifier, server.Options{RequestLogging: true})
	defer srv.Close()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		listenErr <- srv.App.Listen(cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}
	log.Println("Shutting down server...")

	if err := srv.App.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
	return nil
}
