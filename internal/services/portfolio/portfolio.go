// Package portfolio reads USD-denominated token balances for a wallet.
package portfolio

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type snapshotClient interface {
	PortfolioSnapshot(ctx context.Context, walletAddress string) ([]clients.PortfolioPosition, error)
}

// Reader fetches USD values of the two tracked tokens from the
// aggregator's portfolio snapshot.
type Reader struct {
	client snapshotClient
	logger *zap.Logger
}

// NewReader creates a balance reader.
func NewReader(client snapshotClient, logger *zap.Logger) *Reader {
	return &Reader{client: client, logger: logger}
}

// ValuesUSD returns the wallet's USD value for each token of the pair.
// A token absent from the snapshot counts as zero; a failed fetch is
// returned as an error.
func (r *Reader) ValuesUSD(ctx context.Context, walletAddress string, pair domain.Pair) (base, quote decimal.Decimal, err error) {
	positions, err := r.client.PortfolioSnapshot(ctx, walletAddress)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "failed to fetch portfolio for %s", walletAddress)
	}

	base = valueFor(positions, pair.Base)
	quote = valueFor(positions, pair.Quote)

	r.logger.Info("portfolio snapshot",
		zap.String("wallet", walletAddress),
		zap.String(pair.Base.Symbol+"_usd", base.String()),
		zap.String(pair.Quote.Symbol+"_usd", quote.String()))

	return base, quote, nil
}

func valueFor(positions []clients.PortfolioPosition, token domain.Token) decimal.Decimal {
	for _, p := range positions {
		if strings.EqualFold(p.ContractAddress, token.Address) {
			return decimal.NewFromFloat(p.ValueUSD)
		}
	}
	return decimal.Zero
}
