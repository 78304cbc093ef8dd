package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"storefront-orders/internal/config"
)

const connectTimeout = 10 * time.Second

// Module wires the MongoDB client and the repositories built on it.
var Module = fx.Options(
	fx.Provide(
		newClient,
		newDatabase,
		NewOrderRepository,
		NewProductRepository,
		NewCartRepository,
		NewCounterRepository,
		func(client *mongo.Client, cfg *config.Config) *Transactor {
			return NewTransactor(client, cfg.MongoTransactions)
		},
	),
	fx.Invoke(registerLifecycle),
)

func newClient(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

func newDatabase(client *mongo.Client, cfg *config.Config) *mongo.Database {
	return client.Database(cfg.MongoDBName)
}

func registerLifecycle(lc fx.Lifecycle, client *mongo.Client, orders *OrderRepository, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx, nil); err != nil {
				return fmt.Errorf("ping mongo: %w", err)
			}
			if err := orders.EnsureIndexes(ctx); err != nil {
				logger.Warn("order indexes not created", "error", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
}
