// Package app composes the fx graph of the order service.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"storefront-orders/internal/audit"
	"storefront-orders/internal/cache"
	"storefront-orders/internal/config"
	"storefront-orders/internal/logger"
	"storefront-orders/internal/rabbit"
	"storefront-orders/internal/repository"
	"storefront-orders/internal/router"
	"storefront-orders/internal/service"
	"storefront-orders/internal/worker"
)

// Core wires storage, integrations, the audit pipeline and the services.
// It starts no listener and is shared by the server and the CLI.
func Core(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		repository.Module,
		cache.Module,
		audit.Module,
		rabbit.Module,
		fx.Provide(
			newSink,
			newEmitter,
			func(e *audit.AsyncEmitter) audit.Emitter { return e },
		),
		fx.Invoke(registerEmitter),
		service.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

// Module is the full server: Core plus the HTTP API, the audit consumer and
// the sweeper.
func Module(opts ...fx.Option) fx.Option {
	return Core(
		append([]fx.Option{
			rabbit.ConsumerModule,
			router.Module,
			fx.Provide(newHTTPServer, newSweeper),
			fx.Invoke(registerLifecycle),
		}, opts...)...,
	)
}

type sinkParams struct {
	fx.In

	Broker *rabbit.Broker
	Store  *audit.Store
	Logger *slog.Logger
}

// newSink publishes to RabbitMQ when available, writes straight to the audit
// store otherwise, and falls back to the log.
func newSink(p sinkParams) audit.Sink {
	switch {
	case p.Broker != nil:
		return p.Broker.Publisher()
	case p.Store != nil:
		return p.Store
	default:
		return audit.LogSink{Logger: p.Logger}
	}
}

func newEmitter(sink audit.Sink, cfg *config.Config, log *slog.Logger) *audit.AsyncEmitter {
	return audit.NewAsyncEmitter(sink, cfg.AuditBuffer, log)
}

func registerEmitter(lc fx.Lifecycle, e *audit.AsyncEmitter) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			e.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Stop(ctx)
		},
	})
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    net.JoinHostPort("", p.Config.Port),
		Handler: p.Router,
	}
}

func newSweeper(a *service.AutomationService, cfg *config.Config, log *slog.Logger) *worker.Sweeper {
	return worker.NewSweeper(a, cfg.SweepInterval, log)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Sweeper    *worker.Sweeper
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting storefront-orders", slog.String("addr", p.Server.Addr))
			p.Sweeper.Start(context.WithoutCancel(ctx))
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Sweeper.Stop()
			p.Logger.Info("storefront-orders stopped")
			return nil
		},
	})
}
