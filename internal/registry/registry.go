// Package registry stores registered strategies and guards per-user
// trigger dispatch.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

// ErrStrategyNotFound is returned when triggering an unknown user.
var ErrStrategyNotFound = errors.New("no strategy found for user")

// Launcher dispatches a rebalancing computation for a strategy. The done
// callback reports completion and releases the in-flight guard.
type Launcher interface {
	Launch(ctx context.Context, strategy domain.Strategy, done func(domain.DealStatus)) (dealID string, err error)
}

// Registry is the in-memory strategy store plus the throttle and
// in-flight guard applied by both the scheduler sweep and the manual
// trigger path.
type Registry struct {
	mu         sync.Mutex
	strategies map[string]*domain.Strategy

	guard    *Guard
	cooldown time.Duration
	launcher Launcher
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// New creates a registry.
func New(launcher Launcher, cooldown, guardExpiry time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]*domain.Strategy),
		guard:      NewGuard(guardExpiry),
		cooldown:   cooldown,
		launcher:   launcher,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// Upsert stores or overwrites the strategy for the user.
func (r *Registry) Upsert(userID, walletAddress, protectedDataAddress string) domain.Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &domain.Strategy{
		UserID:               userID,
		WalletAddress:        walletAddress,
		ProtectedDataAddress: protectedDataAddress,
		CreatedAt:            r.nowFunc(),
	}
	r.strategies[userID] = s

	r.logger.Info("strategy stored",
		zap.String("user", userID),
		zap.String("wallet", walletAddress),
		zap.String("protected_data", protectedDataAddress))
	return *s
}

// Get returns the strategy for the user.
func (r *Registry) Get(userID string) (domain.Strategy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[userID]
	if !ok {
		return domain.Strategy{}, false
	}
	return *s, true
}

// List returns all stored strategies.
func (r *Registry) List() []domain.Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, *s)
	}
	return out
}

// Count returns the number of stored strategies.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.strategies)
}

// ActiveDeals returns the number of users with an in-flight deal.
func (r *Registry) ActiveDeals() int {
	return r.guard.Len()
}

// TriggerUser dispatches a rebalancing deal for the user, applying the
// cool-down throttle and the in-flight guard. A skipped trigger is not
// an error; only an unknown user or a failed launch is.
func (r *Registry) TriggerUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	strategy, ok := r.strategies[userID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrStrategyNotFound, userID)
	}

	now := r.nowFunc()
	if strategy.LastTriggered != nil && now.Sub(*strategy.LastTriggered) < r.cooldown {
		elapsed := now.Sub(*strategy.LastTriggered)
		r.mu.Unlock()
		r.logger.Info("skipping user, triggered recently",
			zap.String("user", userID),
			zap.Int64("seconds_ago", int64(elapsed.Seconds())))
		return nil
	}
	r.mu.Unlock()

	if !r.guard.Acquire(userID) {
		r.logger.Info("skipping user, deal already in progress", zap.String("user", userID))
		return nil
	}

	r.mu.Lock()
	triggeredAt := r.nowFunc()
	strategy.LastTriggered = &triggeredAt
	strategy.LastDealStatus = domain.DealStatusPending
	launchCopy := *strategy
	r.mu.Unlock()

	dealID, err := r.launcher.Launch(ctx, launchCopy, func(status domain.DealStatus) {
		r.completeDeal(userID, status)
	})
	if err != nil {
		r.guard.Release(userID)
		r.setDealState(userID, "", domain.DealStatusFailed)
		return errors.Wrapf(err, "failed to launch deal for user %s", userID)
	}

	r.markRunning(userID, dealID)
	r.logger.Info("deal launched",
		zap.String("user", userID),
		zap.String("deal", dealID))
	return nil
}

func (r *Registry) completeDeal(userID string, status domain.DealStatus) {
	r.guard.Release(userID)
	r.setDealState(userID, "", status)
	r.logger.Info("deal finished",
		zap.String("user", userID),
		zap.String("status", string(status)))
}

// markRunning upgrades pending to running. The deal may already have
// completed by the time the launch call returns; a terminal status wins.
func (r *Registry) markRunning(userID, dealID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[userID]
	if !ok || s.LastDealStatus != domain.DealStatusPending {
		return
	}
	s.ActiveDealID = dealID
	s.LastDealStatus = domain.DealStatusRunning
}

func (r *Registry) setDealState(userID, dealID string, status domain.DealStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[userID]
	if !ok {
		return
	}
	s.ActiveDealID = dealID
	s.LastDealStatus = status
}
