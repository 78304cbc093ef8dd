// Package worker runs background jobs of the order service.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storefront-orders/internal/model"
	"storefront-orders/internal/service"
)

// SweepRunner is implemented by service.AutomationService.
type SweepRunner interface {
	RunAutomatedUpdates(ctx context.Context, actor model.Actor) (*service.SweepResult, error)
}

// Sweeper runs the automated status sweep on a fixed interval.
type Sweeper struct {
	runner   SweepRunner
	interval time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewSweeper builds a sweeper. A non-positive interval disables it.
func NewSweeper(runner SweepRunner, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{runner: runner, interval: interval, logger: logger}
}

func (s *Sweeper) Enabled() bool {
	return s.interval > 0
}

// Start launches the ticker loop.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Info("status sweeper disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(runCtx)
	s.logger.Info("status sweeper started", slog.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.runner.RunAutomatedUpdates(ctx, model.SystemActor)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("status sweep failed", slog.String("error", err.Error()))
		}
		return
	}
	if res.Failed > 0 {
		s.logger.Warn("status sweep had failures", slog.Int("failed", res.Failed), slog.Int("updated", res.Updated))
	}
}
