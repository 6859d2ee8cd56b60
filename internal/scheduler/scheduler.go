// Package scheduler sweeps registered strategies at a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type strategySource interface {
	List() []domain.Strategy
	ActiveDeals() int
	TriggerUser(ctx context.Context, userID string) error
}

// Scheduler drives periodic rebalancing checks over all strategies.
type Scheduler struct {
	registry strategySource
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler.
func New(registry strategySource, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{registry: registry, interval: interval, logger: logger}
}

// Run ticks until the context is cancelled. One strategy's failure never
// aborts the rest of the sweep, and a sweep failure never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	strategies := s.registry.List()
	if len(strategies) == 0 {
		s.logger.Debug("no strategies to process")
		return
	}

	s.logger.Info("checking strategies for rebalancing",
		zap.Int("strategies", len(strategies)),
		zap.Int("active_deals", s.registry.ActiveDeals()))

	for _, strategy := range strategies {
		if err := s.registry.TriggerUser(ctx, strategy.UserID); err != nil {
			s.logger.Error("failed to process strategy",
				zap.String("user", strategy.UserID),
				zap.Error(err))
		}
	}

	s.logger.Info("completed rebalancing check")
}
