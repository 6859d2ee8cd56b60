// Package deal launches rebalancing computations for triggered
// strategies.
package deal

import (
	"context"

	"github.com/google/uuid"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type rebalanceRunner interface {
	RebalanceOnce(ctx context.Context, privateKeyHex string) error
}

// LocalLauncher runs the rebalance cycle in-process with the operator
// key. It stands where a confidential-compute deal would be created when
// no worker app is configured; the guard lifecycle is identical either
// way: launch fast, report completion through the done callback.
type LocalLauncher struct {
	runner     rebalanceRunner
	privateKey string
	logger     *zap.Logger
}

// NewLocalLauncher creates an in-process launcher.
func NewLocalLauncher(runner rebalanceRunner, privateKey string, logger *zap.Logger) *LocalLauncher {
	return &LocalLauncher{runner: runner, privateKey: privateKey, logger: logger}
}

// Launch starts one rebalance cycle in the background and returns a deal
// identifier immediately. The done callback fires exactly once with the
// terminal status.
func (l *LocalLauncher) Launch(ctx context.Context, strategy domain.Strategy, done func(domain.DealStatus)) (string, error) {
	dealID := uuid.NewString()

	go func() {
		if err := l.runner.RebalanceOnce(context.WithoutCancel(ctx), l.privateKey); err != nil {
			l.logger.Error("rebalance cycle failed",
				zap.String("user", strategy.UserID),
				zap.String("deal", dealID),
				zap.Error(err))
			done(domain.DealStatusFailed)
			return
		}
		done(domain.DealStatusCompleted)
	}()

	return dealID, nil
}
