// Package allowance ensures the settlement venue may spend the token
// amount about to be swapped.
package allowance

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/rebalancer/internal/chain"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type approvalClient interface {
	Allowance(ctx context.Context, tokenAddress, walletAddress string) (*clients.AllowanceResponse, error)
	ApproveTransaction(ctx context.Context, tokenAddress, amount string) (*clients.ApproveTxResponse, error)
}

type txSender interface {
	Address() string
	SendTransaction(ctx context.Context, payload chain.TxPayload) (string, error)
}

// Manager checks and, when short, raises the venue's spending allowance.
type Manager struct {
	api    approvalClient
	sender txSender
	// settlementWait gives the approval transaction time to be mined
	// before the swap is attempted.
	settlementWait time.Duration
	logger         *zap.Logger
}

// NewManager creates an allowance manager.
func NewManager(api approvalClient, sender txSender, settlementWait time.Duration, logger *zap.Logger) *Manager {
	return &Manager{api: api, sender: sender, settlementWait: settlementWait, logger: logger}
}

// EnsureAllowance no-ops when the current allowance covers the amount,
// otherwise issues an approval transaction and blocks for the settlement
// delay. Construction, signing or broadcast failure is fatal for the cycle.
func (m *Manager) EnsureAllowance(ctx context.Context, token domain.Token, amount *big.Int) error {
	resp, err := m.api.Allowance(ctx, token.Address, m.sender.Address())
	if err != nil {
		return errors.Wrapf(err, "failed to check allowance for %s", token.Symbol)
	}

	current, ok := new(big.Int).SetString(resp.Allowance, 10)
	if !ok {
		return errors.Errorf("venue returned malformed allowance %q for %s", resp.Allowance, token.Symbol)
	}

	if current.Cmp(amount) >= 0 {
		m.logger.Info("allowance sufficient for swap",
			zap.String("token", token.Symbol),
			zap.String("allowance", current.String()),
			zap.String("required", amount.String()))
		return nil
	}

	m.logger.Info("allowance insufficient, creating approval transaction",
		zap.String("token", token.Symbol),
		zap.String("allowance", current.String()),
		zap.String("required", amount.String()))

	approveTx, err := m.api.ApproveTransaction(ctx, token.Address, amount.String())
	if err != nil {
		return errors.Wrapf(err, "failed to build approval transaction for %s", token.Symbol)
	}

	txHash, err := m.sender.SendTransaction(ctx, chain.TxPayload{
		To:       approveTx.To,
		Data:     approveTx.Data,
		Value:    approveTx.Value,
		GasPrice: approveTx.GasPrice,
	})
	if err != nil {
		return errors.Wrapf(err, "approval transaction failed for %s", token.Symbol)
	}

	m.logger.Info("approval transaction sent, waiting for confirmation",
		zap.String("token", token.Symbol),
		zap.String("tx", txHash),
		zap.Duration("wait", m.settlementWait))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.settlementWait):
	}
	return nil
}
