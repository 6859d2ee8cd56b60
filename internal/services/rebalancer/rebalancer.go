package rebalancer

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type balanceReader interface {
	ValuesUSD(ctx context.Context, walletAddress string, pair domain.Pair) (base, quote decimal.Decimal, err error)
}

type priceReader interface {
	PricesUSD(ctx context.Context, tokenAddresses []string) map[string]string
}

type allowanceManager interface {
	EnsureAllowance(ctx context.Context, token domain.Token, amount *big.Int) error
}

type swapExecutor interface {
	Swap(ctx context.Context, intent domain.SwapIntent) (*domain.SwapResult, error)
}

// ExecutionProvider builds per-key execution dependencies: the signing key
// determines the wallet everything in the cycle acts for.
type ExecutionProvider interface {
	ForKey(privateKeyHex string) (walletAddress string, am AllowanceManager, se SwapExecutor, err error)
}

// AllowanceManager and SwapExecutor re-export the internal contracts for
// providers living outside this package.
type AllowanceManager = allowanceManager
type SwapExecutor = swapExecutor

// Service runs one end-to-end rebalance cycle for a wallet.
type Service struct {
	balances  balanceReader
	prices    priceReader
	exec      ExecutionProvider
	pair      domain.Pair
	tolerance decimal.Decimal
	logger    *zap.Logger
}

// NewService creates the cycle orchestrator.
func NewService(balances balanceReader, prices priceReader, exec ExecutionProvider,
	pair domain.Pair, tolerance decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		balances:  balances,
		prices:    prices,
		exec:      exec,
		pair:      pair,
		tolerance: tolerance,
		logger:    logger,
	}
}

// RebalanceOnce derives the wallet from the signing key, evaluates the
// imbalance and, when a swap is needed, runs approval then the swap.
// Re-running after a completed rebalance finds the wallet in band and
// no-ops.
func (s *Service) RebalanceOnce(ctx context.Context, privateKeyHex string) error {
	wallet, allowanceMgr, swapper, err := s.exec.ForKey(privateKeyHex)
	if err != nil {
		return errors.Wrap(err, "failed to prepare execution for key")
	}

	logger := s.logger.With(zap.String("wallet", wallet), zap.String("pair", s.pair.String()))
	logger.Info("starting rebalance cycle")

	baseUSD, quoteUSD, err := s.balances.ValuesUSD(ctx, wallet, s.pair)
	if err != nil {
		return errors.Wrap(err, "failed to read balances")
	}

	prices := s.prices.PricesUSD(ctx, s.pair.Addresses())

	decision, err := Evaluate(s.pair, baseUSD, quoteUSD, prices, s.tolerance, wallet)
	if err != nil {
		return errors.Wrap(err, "imbalance evaluation failed")
	}
	if decision == nil {
		logger.Info("portfolio within tolerance, no swap needed",
			zap.String("base_usd", baseUSD.String()),
			zap.String("quote_usd", quoteUSD.String()),
			zap.String("tolerance", s.tolerance.String()))
		return nil
	}

	logger.Info("rebalance needed",
		zap.String("direction", decision.Direction.String()),
		zap.String("excess_usd", decision.ExcessUSD.String()),
		zap.String("intent", decision.Intent.String()))

	if err := allowanceMgr.EnsureAllowance(ctx, decision.Intent.FromToken, decision.Intent.Amount); err != nil {
		return errors.Wrap(err, "allowance preparation failed")
	}

	result, err := swapper.Swap(ctx, decision.Intent)
	if err != nil {
		return errors.Wrap(err, "swap execution failed")
	}

	logger.Info("rebalance cycle finished",
		zap.String("order_hash", result.OrderHash),
		zap.String("status", string(result.Status)),
		zap.String("fill_tx", result.FillTxHash))
	return nil
}
