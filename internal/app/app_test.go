package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"storefront-orders/internal/audit"
	"storefront-orders/internal/cache"
	"storefront-orders/internal/config"
	"storefront-orders/internal/worker"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		MongoURI:               "mongodb://localhost:27017",
		MongoDBName:            "storefront_test",
		AuthURL:                "http://localhost:3000",
		CacheTTL:               time.Minute,
		PendingActionThreshold: 24 * time.Hour,
		Timezone:               "UTC",
		ShutdownTimeout:        time.Second,
		AuditBuffer:            4,
	}
}

func TestModuleComposesGraph(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var (
		engine  *gin.Engine
		server  *http.Server
		sweeper *worker.Sweeper
		emitter audit.Emitter
		sink    audit.Sink
		c       cache.Cache
		reader  audit.Reader
	)
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		Module(
			fx.Replace(testConfig()),
			fx.Replace(logger),
		),
		fx.Populate(&engine, &server, &sweeper, &emitter, &sink, &c, &reader),
	)
	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx app returned error: %v", err)
	}

	if engine == nil || server == nil || sweeper == nil || emitter == nil {
		t.Fatal("expected server components to be populated")
	}
	if server.Addr != ":0" {
		t.Fatalf("unexpected server address %q", server.Addr)
	}
	if sweeper.Enabled() {
		t.Fatal("sweeper must be disabled without SWEEP_INTERVAL")
	}
	if _, ok := sink.(audit.LogSink); !ok {
		t.Fatalf("expected log sink without broker or store, got %T", sink)
	}
	if _, ok := c.(cache.Noop); !ok {
		t.Fatalf("expected no-op cache without redis, got %T", c)
	}
	if _, ok := reader.(audit.Disabled); !ok {
		t.Fatalf("expected disabled audit reader, got %T", reader)
	}
}

func TestCoreStartsWithoutHTTP(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var server *http.Server
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		Core(fx.Replace(testConfig()), fx.Replace(logger)),
		fx.Populate(&server),
	)
	if fxApp.Err() == nil {
		t.Fatal("core graph must not provide an HTTP server")
	}
}
