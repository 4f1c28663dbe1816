package events

import (
	"context"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
)

// Subjects published after lifecycle transitions
const (
	SubjectOrderArchived      = "order.archived"
	SubjectOrderRestored      = "order.restored"
	SubjectOrderStatusChanged = "order.status_changed"
	SubjectOrderDeleted       = "order.deleted"

	StreamName = "ORDER_LIFECYCLE"
)

// OrderEvent is the payload of every lifecycle notification
type OrderEvent struct {
	EventID         string     `json:"eventId"`
	EventType       string     `json:"eventType"`
	OrderID         uuid.UUID  `json:"orderId"`
	ReferenceNumber string     `json:"referenceNumber"`
	OwnerID         uuid.UUID  `json:"ownerId"`
	ActorID         uuid.UUID  `json:"actorId"`
	ArchiveID       *uuid.UUID `json:"archiveId,omitempty"`
	PreviousStatus  string     `json:"previousStatus,omitempty"`
	NewStatus       string     `json:"newStatus,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Notifier delivers lifecycle notifications. Notify must return without
// waiting for delivery; failures are the notifier's to log.
type Notifier interface {
	Notify(ctx context.Context, event OrderEvent)
}

// NewOrderEvent builds an event for order
func NewOrderEvent(subject string, order *models.Order, actorID uuid.UUID) OrderEvent {
	return OrderEvent{
		EventID:         uuid.New().String(),
		EventType:       subject,
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		OwnerID:         order.OwnerID,
		ActorID:         actorID,
		Timestamp:       time.Now().UTC(),
	}
}

// NoopNotifier drops every event. Used when NATS is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, OrderEvent) {}
