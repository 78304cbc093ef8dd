package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memCache struct {
	Noop
	values map[string]string
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	return nil
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func TestGenerateKey(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	if got := c.GenerateKey("order-number", "ORD-1"); got != "storefront-orders:order-number:ORD-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := (Noop{}).GenerateKey("tracking", "TRK1"); got != "storefront-orders:tracking:TRK1" {
		t.Fatalf("unexpected noop key %q", got)
	}
}

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "" {
		t.Fatalf("expected miss, got %q, %v", v, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := &memCache{values: map[string]string{}}

	type view struct {
		OrderNumber string `json:"orderNumber"`
		Status      string `json:"status"`
	}

	var dst view
	hit, err := GetJSON(ctx, c, "missing", &dst)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	if err := SetJSON(ctx, c, "k", view{OrderNumber: "ORD-1", Status: "shipped"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	hit, err = GetJSON(ctx, c, "k", &dst)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if dst.OrderNumber != "ORD-1" || dst.Status != "shipped" {
		t.Fatalf("unexpected decoded value %+v", dst)
	}

	c.values["bad"] = "{not json"
	if _, err := GetJSON(ctx, c, "bad", &dst); err == nil {
		t.Fatal("expected decode error")
	}
}
