// Package audit records order mutations as an append-only event trail.
package audit

import (
	"time"

	"github.com/google/uuid"

	"storefront-orders/internal/model"
)

// Event types double as RabbitMQ routing keys.
const (
	TypeOrderCreated    = "order.created"
	TypeStatusChanged   = "order.status_changed"
	TypeOrderCancelled  = "order.cancelled"
	TypeRefundRequested = "order.refund_requested"
	TypeRefundResolved  = "order.refund_resolved"
)

type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber,omitempty"`
	ActorID     string         `json:"actorId"`
	ActorRole   model.Role     `json:"actorRole"`
	Data        map[string]any `json:"data,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// NewEvent stamps a fresh id and the current time on an event about order.
func NewEvent(eventType string, order *model.Order, actor model.Actor, data map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		OrderID:     order.ID.Hex(),
		OrderNumber: order.OrderNumber,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Data:        data,
		OccurredAt:  time.Now().UTC(),
	}
}
