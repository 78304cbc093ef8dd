package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"storefront-orders/internal/audit"
)

var errMalformed = errors.New("malformed audit message")

type appender interface {
	Append(ctx context.Context, e audit.Event) error
}

// AuditConsumer persists order events delivered on the audit queue.
type AuditConsumer struct {
	store  appender
	logger *slog.Logger
}

func NewAuditConsumer(store appender, logger *slog.Logger) *AuditConsumer {
	return &AuditConsumer{store: store, logger: logger}
}

// Handle decodes one message body and appends it to the store. Appends are
// idempotent on the event id, so redeliveries are harmless.
func (c *AuditConsumer) Handle(ctx context.Context, body []byte) error {
	var e audit.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if e.ID == "" || e.Type == "" || e.OrderID == "" {
		return fmt.Errorf("%w: missing id, type or order id", errMalformed)
	}
	if err := c.store.Append(ctx, e); err != nil {
		return fmt.Errorf("append event %s: %w", e.ID, err)
	}
	return nil
}

// Run processes deliveries until ctx is cancelled or the channel closes.
// Malformed messages are dropped, store failures are requeued.
func (c *AuditConsumer) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("audit deliveries closed")
				return
			}
			c.process(ctx, d)
		}
	}
}

func (c *AuditConsumer) process(ctx context.Context, d amqp091.Delivery) {
	err := c.Handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("audit ack failed", "message_id", d.MessageId, "error", ackErr)
		}
	case errors.Is(err, errMalformed):
		c.logger.Warn("audit message rejected", "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("audit nack failed", "message_id", d.MessageId, "error", nackErr)
		}
	default:
		c.logger.Error("audit message requeued", "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("audit nack failed", "message_id", d.MessageId, "error", nackErr)
		}
	}
}
