// Package notify delivers order status emails, either directly or through
// the order event queue.
package notify

import (
	"context"
	"fmt"
	"time"

	"bookstore/internal/models"
)

// EventOrderStatusChanged is the type of events published on the order queue.
const EventOrderStatusChanged = "order.status_changed"

// Event is the message body published to the queue.
type Event struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	Status     models.OrderStatus `json:"status"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher publishes a JSON-encodable message.
type Publisher interface {
	PublishJSON(ctx context.Context, v interface{}) error
}

// QueueNotifier hands status changes to the queue for the Worker to send.
type QueueNotifier struct {
	publisher Publisher
	now       func() time.Time
}

func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, now: time.Now}
}

func (n *QueueNotifier) NotifyOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	event := Event{
		Type:       EventOrderStatusChanged,
		OrderID:    orderID,
		Status:     status,
		OccurredAt: n.now().UTC(),
	}
	if err := n.publisher.PublishJSON(ctx, event); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w", event.Type, orderID, err)
	}
	return nil
}
