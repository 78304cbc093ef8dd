package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"storefront-orders/internal/config"
	"storefront-orders/internal/test"
)

func TestNewFromConfigWithoutRedis(t *testing.T) {
	lc := &test.LifecycleRecorder{}
	c := NewFromConfig(lc, &config.Config{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	if _, ok := c.(Noop); !ok {
		t.Fatalf("expected Noop cache, got %T", c)
	}
	if len(lc.Hooks) != 0 {
		t.Fatalf("expected no lifecycle hooks, got %d", len(lc.Hooks))
	}
}

func TestNewFromConfigWithRedis(t *testing.T) {
	lc := &test.LifecycleRecorder{}
	c := NewFromConfig(lc, &config.Config{RedisAddr: "127.0.0.1:1"}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	if _, ok := c.(*redisCache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	if len(lc.Hooks) != 1 {
		t.Fatalf("expected one lifecycle hook, got %d", len(lc.Hooks))
	}

	// an unreachable redis only logs a warning
	if err := lc.Hooks[0].OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart returned error: %v", err)
	}
	if err := lc.Hooks[0].OnStop(context.Background()); err != nil {
		t.Fatalf("OnStop returned error: %v", err)
	}
}
