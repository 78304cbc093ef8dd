package test

import (
	"context"
	"sync"
	"time"

	"storefront-orders/internal/audit"
)

// EmitterStub records emitted audit events.
type EmitterStub struct {
	mu     sync.Mutex
	events []audit.Event
}

func (e *EmitterStub) Emit(_ context.Context, ev audit.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

// Events returns a copy of everything emitted so far.
func (e *EmitterStub) Events() []audit.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]audit.Event(nil), e.events...)
}

// Types lists the emitted event types in order.
func (e *EmitterStub) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

// CacheStub is an in-memory cache.Cache that ignores TTLs.
type CacheStub struct {
	mu      sync.Mutex
	Values  map[string]string
	Deleted []string
	GetErr  error
}

func NewCacheStub() *CacheStub {
	return &CacheStub{Values: make(map[string]string)}
}

func (c *CacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.Values[key] = string(v)
	case string:
		c.Values[key] = v
	}
	return nil
}

func (c *CacheStub) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return "", c.GetErr
	}
	return c.Values[key], nil
}

func (c *CacheStub) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.Values, k)
		c.Deleted = append(c.Deleted, k)
	}
	return nil
}

func (c *CacheStub) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func (c *CacheStub) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Values[key]
	return ok
}
