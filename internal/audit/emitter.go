package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Emitter accepts events from request paths. Emit never blocks.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Sink is the destination the async emitter drains into.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// AsyncEmitter buffers events in a bounded channel drained by one goroutine.
// Events are dropped with a warning when the buffer is full.
type AsyncEmitter struct {
	sink   Sink
	logger *slog.Logger
	events chan Event

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

const writeTimeout = 5 * time.Second

func NewAsyncEmitter(sink Sink, buffer int, logger *slog.Logger) *AsyncEmitter {
	if buffer <= 0 {
		buffer = 1
	}
	return &AsyncEmitter{
		sink:   sink,
		logger: logger,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (a *AsyncEmitter) Emit(_ context.Context, e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		a.logger.Warn("audit event after shutdown dropped", "type", e.Type, "order_id", e.OrderID)
		return
	}
	select {
	case a.events <- e:
	default:
		a.logger.Warn("audit buffer full, event dropped", "type", e.Type, "order_id", e.OrderID)
	}
}

// Start launches the drain goroutine.
func (a *AsyncEmitter) Start() {
	go func() {
		defer close(a.done)
		for e := range a.events {
			a.write(e)
		}
	}()
}

// Stop closes the buffer and waits until it is drained or ctx expires.
func (a *AsyncEmitter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.stopped {
		a.stopped = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncEmitter) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.sink.Write(ctx, e); err != nil {
		a.logger.Error("audit sink write failed", "type", e.Type, "order_id", e.OrderID, "error", err)
	}
}

// LogSink writes events to the structured log. Used when no broker or
// store is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(_ context.Context, e Event) error {
	s.Logger.Info("audit event",
		"id", e.ID,
		"type", e.Type,
		"order_id", e.OrderID,
		"order_number", e.OrderNumber,
		"actor_id", e.ActorID,
		"actor_role", e.ActorRole,
	)
	return nil
}
