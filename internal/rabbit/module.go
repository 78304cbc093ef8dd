package rabbit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"

	"storefront-orders/internal/audit"
	"storefront-orders/internal/config"
)

// Module connects to RabbitMQ when RABBIT_URL is set.
var Module = fx.Provide(newBroker)

// ConsumerModule runs the audit consumer when both the broker and the audit
// store are configured.
var ConsumerModule = fx.Invoke(startConsumer)

// Broker holds the connection with one channel for publishing and one for
// consuming.
type Broker struct {
	conn *amqp091.Connection
	pub  *amqp091.Channel
	sub  *amqp091.Channel
}

// Publisher returns the audit sink publishing on the broker.
func (b *Broker) Publisher() *Publisher {
	return NewPublisher(b.pub)
}

func (b *Broker) Close() error {
	if b.sub != nil {
		b.sub.Close()
	}
	if b.pub != nil {
		b.pub.Close()
	}
	return b.conn.Close()
}

func newBroker(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*Broker, error) {
	if cfg.RabbitURL == "" {
		logger.Info("rabbitmq disabled")
		return nil, nil
	}

	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	b := &Broker{conn: conn}
	if b.pub, err = conn.Channel(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if b.sub, err = conn.Channel(); err != nil {
		b.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := Declare(b.pub); err != nil {
		b.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
	logger.Info("rabbitmq connected", "exchange", ExchangeName)
	return b, nil
}

func startConsumer(lc fx.Lifecycle, b *Broker, store *audit.Store, logger *slog.Logger) {
	if b == nil || store == nil {
		return
	}

	consumer := NewAuditConsumer(store, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := b.sub.Qos(16, 0, false); err != nil {
				return fmt.Errorf("set audit prefetch: %w", err)
			}
			deliveries, err := b.sub.Consume(QueueName, "", false, false, false, false, nil)
			if err != nil {
				return fmt.Errorf("consume %s: %w", QueueName, err)
			}
			go func() {
				defer close(done)
				consumer.Run(ctx, deliveries)
			}()
			logger.Info("audit consumer started", "queue", QueueName, "binding", BindingKey)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
