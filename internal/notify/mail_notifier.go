package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// MailNotifier emails the customer who placed an order about its status.
type MailNotifier struct {
	orders      repositories.OrderRepository
	customers   repositories.CustomerRepository
	mailer      Mailer
	frontendURL string
}

func NewMailNotifier(orders repositories.OrderRepository, customers repositories.CustomerRepository, mailer Mailer, frontendURL string) *MailNotifier {
	return &MailNotifier{
		orders:      orders,
		customers:   customers,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// NotifyOrderStatus sends the email. Guest orders have no address on file
// and are skipped.
func (n *MailNotifier) NotifyOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	order, err := n.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.CustomerID == nil {
		log.Printf("Order %s is a guest order, skipping status email", orderID)
		return nil
	}
	customer, err := n.customers.GetByID(ctx, *order.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer of order %s: %w", orderID, err)
	}

	email := OrderStatusEmail{
		Fullname:  customer.Fullname,
		OrderID:   order.ID,
		Status:    status,
		OrderDate: order.CreatedAt,
	}
	if n.frontendURL != "" {
		email.HistoryURL = n.frontendURL + "/order-history"
	}
	subject, body, err := email.Render()
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, customer.Email, subject, body); err != nil {
		return err
	}
	log.Printf("Sent %s status email for order %s to %s", status, orderID, customer.Email)
	return nil
}
