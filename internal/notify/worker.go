package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"bookstore/internal/models"
)

// StatusNotifier is implemented by MailNotifier.
type StatusNotifier interface {
	NotifyOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// Worker consumes order events and sends the corresponding emails.
type Worker struct {
	next StatusNotifier
}

func NewWorker(next StatusNotifier) *Worker {
	return &Worker{next: next}
}

// Handle processes one queue message body. Unknown event types are acked
// and ignored; malformed bodies are rejected.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode order event: %w", err)
	}
	if event.Type != EventOrderStatusChanged {
		log.Printf("Ignoring order event of type %q", event.Type)
		return nil
	}
	if event.OrderID == "" || !event.Status.Valid() {
		return fmt.Errorf("invalid order event: %s", string(body))
	}
	return w.next.NotifyOrderStatus(ctx, event.OrderID, event.Status)
}
