// Package swap drives one order through the auction-based settlement
// venue: quote, order build, submission, then status polling until a
// terminal outcome.
package swap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrNoRoute means the venue returned no usable auction preset for
	// the intent.
	ErrNoRoute = errors.New("no viable route for swap")
	// ErrOrderUndetermined means the order reached no terminal state
	// within the allowed wait; the order may still fill at the venue.
	ErrOrderUndetermined = errors.New("order outcome undetermined within max wait")
)

type venue interface {
	GetQuote(ctx context.Context, intent domain.SwapIntent) (*clients.FusionQuote, error)
	BuildOrder(ctx context.Context, quote *clients.FusionQuote, intent domain.SwapIntent) (*clients.FusionOrder, error)
	SubmitOrder(ctx context.Context, order *clients.FusionOrder) (string, error)
	OrderStatus(ctx context.Context, orderHash string) (*clients.FusionOrderStatus, error)
}

// Executor runs the swap state machine against the settlement venue.
type Executor struct {
	venue        venue
	pollInterval time.Duration
	// maxWait bounds the poll loop; zero means wait forever.
	maxWait time.Duration
	logger  *zap.Logger
}

// NewExecutor creates a swap executor.
func NewExecutor(v venue, pollInterval, maxWait time.Duration, logger *zap.Logger) *Executor {
	return &Executor{venue: v, pollInterval: pollInterval, maxWait: maxWait, logger: logger}
}

// Swap submits the intent and polls until the order is filled, expired or
// cancelled. Transient poll errors are logged and retried on the next
// tick; only a terminal status, the max wait or context cancellation ends
// the loop.
func (e *Executor) Swap(ctx context.Context, intent domain.SwapIntent) (*domain.SwapResult, error) {
	e.logger.Info("requesting quote", zap.String("intent", intent.String()))

	quote, err := e.venue.GetQuote(ctx, intent)
	if err != nil {
		return nil, errors.Wrap(err, "quote request failed")
	}
	if !quote.Viable() {
		return nil, errors.Wrapf(ErrNoRoute, "intent %s", intent.String())
	}
	e.logger.Info("quote obtained",
		zap.String("quote_id", quote.QuoteID),
		zap.String("preset", quote.RecommendedPreset))

	order, err := e.venue.BuildOrder(ctx, quote, intent)
	if err != nil {
		return nil, errors.Wrap(err, "order build failed")
	}
	e.logger.Info("order created", zap.String("order_hash", order.OrderHash))

	orderHash, err := e.venue.SubmitOrder(ctx, order)
	if err != nil {
		return nil, errors.Wrap(err, "order submission failed")
	}
	e.logger.Info("order submitted", zap.String("order_hash", orderHash))

	start := time.Now()
	result, err := e.pollUntilTerminal(ctx, orderHash, start)
	if err != nil {
		return nil, err
	}

	e.logger.Info("order reached terminal state",
		zap.String("order_hash", orderHash),
		zap.String("status", string(result.Status)),
		zap.String("fill_tx", result.FillTxHash),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (e *Executor) pollUntilTerminal(ctx context.Context, orderHash string, start time.Time) (*domain.SwapResult, error) {
	var deadline <-chan time.Time
	if e.maxWait > 0 {
		t := time.NewTimer(e.maxWait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		status, err := e.venue.OrderStatus(ctx, orderHash)
		switch {
		case err != nil:
			// transient: keep polling, the venue owns the order
			e.logger.Warn("order status check failed, retrying on next tick",
				zap.String("order_hash", orderHash),
				zap.Error(err))
		case status.Status.Terminal():
			result := &domain.SwapResult{OrderHash: orderHash, Status: status.Status}
			if status.Status == domain.OrderStatusFilled {
				if len(status.Fills) == 0 {
					return nil, errors.Errorf("order %s filled but venue reported no fills", orderHash)
				}
				result.FillTxHash = status.Fills[0].TxHash
			}
			return result, nil
		default:
			e.logger.Info("order still pending",
				zap.String("order_hash", orderHash),
				zap.Duration("elapsed", time.Since(start)))
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "polling aborted for order %s", orderHash)
		case <-deadline:
			return nil, errors.Wrapf(ErrOrderUndetermined, "order %s after %s", orderHash, time.Since(start))
		case <-time.After(e.pollInterval):
		}
	}
}
