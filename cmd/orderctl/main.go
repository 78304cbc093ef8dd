// Command orderctl runs operator tasks against the order database.
//
//	orderctl [flags] dashboard   print status counts and today's totals
//	orderctl [flags] sweep       run the automated status sweep once
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"storefront-orders/internal/app"
	"storefront-orders/internal/config"
	"storefront-orders/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cfg        *config.Config
		dashboards *service.DashboardService
		automation *service.AutomationService
	)
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		app.Core(),
		fx.Populate(&cfg, &dashboards, &automation),
	)
	if err := fxApp.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	err := execute(ctx, os.Stdout, cfg.Args, dashboards, automation)

	if stopErr := fxApp.Stop(context.Background()); stopErr != nil {
		fmt.Fprintf(os.Stderr, "failed to stop: %v\n", stopErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "orderctl: %v\n", err)
		os.Exit(1)
	}
}
