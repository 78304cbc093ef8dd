package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"storefront-orders/internal/config"
)

// Module provides the lookup cache. An empty REDIS_ADDR selects Noop.
var Module = fx.Provide(NewFromConfig)

func NewFromConfig(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) Cache {
	if cfg.RedisAddr == "" {
		log.Info("redis disabled, lookups are not cached")
		return Noop{}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// lookups fall through to Mongo on cache errors
				log.Warn("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewRedisCache(client)
}
