package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"storefront-orders/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fxApp := fx.New(
		fx.Provide(func() context.Context { return ctx }),
		app.Module(),
	)

	run(ctx, fxApp)
}
