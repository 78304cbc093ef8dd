package service

import (
	"log/slog"

	"go.uber.org/fx"

	"storefront-orders/internal/audit"
	"storefront-orders/internal/cache"
	"storefront-orders/internal/config"
	"storefront-orders/internal/repository"
)

// Module wires the order services.
var Module = fx.Options(
	fx.Provide(
		newDeps,
		NewOrderService,
		NewStatusService,
		NewRefundService,
		func(d Deps, cfg *config.Config) *DashboardService {
			return NewDashboardService(d, cfg.PendingActionThreshold, cfg.Location())
		},
		NewAutomationService,
		func(cfg *config.Config) *AuthService {
			return NewAuthService(cfg.AuthURL, nil)
		},
	),
)

type depsParams struct {
	fx.In

	Orders   *repository.OrderRepository
	Products *repository.ProductRepository
	Carts    *repository.CartRepository
	Counters *repository.CounterRepository
	Tx       *repository.Transactor
	Events   audit.Emitter
	Cache    cache.Cache
	Config   *config.Config
	Logger   *slog.Logger
}

func newDeps(p depsParams) Deps {
	return Deps{
		Orders:   p.Orders,
		Products: p.Products,
		Carts:    p.Carts,
		Counters: p.Counters,
		Tx:       p.Tx,
		Events:   p.Events,
		Cache:    p.Cache,
		CacheTTL: p.Config.CacheTTL,
		Logger:   p.Logger,
		Clock:    systemClock,
	}
}
