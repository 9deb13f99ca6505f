package services

import (
	"context"
	"log"
	"time"

	"bookstore/internal/models"
)

const notifyTimeout = 30 * time.Second

// OrderNotifier delivers order status notifications to customers.
type OrderNotifier interface {
	NotifyOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// notifyInBackground runs the notification detached from the caller. It must
// only be called after the status change it reports has been persisted.
func notifyInBackground(n OrderNotifier, orderID string, status models.OrderStatus) {
	if n == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Warning: order %s status notification panicked: %v", orderID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.NotifyOrderStatus(ctx, orderID, status); err != nil {
			log.Printf("Warning: failed to notify status %s for order %s: %v", status, orderID, err)
		}
	}()
}
