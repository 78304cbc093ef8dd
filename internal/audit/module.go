package audit

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"storefront-orders/internal/config"
)

// Module provides the audit store and its read side. The store is nil when
// AUDIT_DATABASE_URI is empty.
var Module = fx.Options(
	fx.Provide(newStore),
	fx.Provide(newReader),
	fx.Invoke(registerLifecycle),
)

type storeParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

func newStore(p storeParams) (*Store, error) {
	if p.Config.AuditDatabaseURI == "" {
		p.Logger.Info("audit database disabled")
		return nil, nil
	}
	return NewStore(p.Ctx, p.Config.AuditDatabaseURI, p.Logger)
}

func newReader(store *Store) Reader {
	if store == nil {
		return Disabled{}
	}
	return store
}

func registerLifecycle(lc fx.Lifecycle, store *Store) {
	if store == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
}
