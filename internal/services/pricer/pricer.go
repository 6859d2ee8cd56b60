// Package pricer reads spot USD prices for tracked tokens.
package pricer

import (
	"context"
	"strings"
	"time"

	"github.com/vadiminshakov/rebalancer/pkg/retrier"
	"go.uber.org/zap"
)

type priceClient interface {
	TokenPricesUSD(ctx context.Context, tokenAddresses []string) (map[string]string, error)
}

// Pricer fetches unit USD prices from the aggregator spot-price API.
type Pricer struct {
	client  priceClient
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewPricer creates a price reader.
func NewPricer(client priceClient, logger *zap.Logger) *Pricer {
	return &Pricer{
		client: client,
		retrier: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithMaxInterval(2*time.Second),
		),
		logger: logger,
	}
}

// PricesUSD returns a map of lower-cased token address to USD price string.
// A failed fetch yields an empty map; the caller fails later when a price
// it needs is missing.
func (p *Pricer) PricesUSD(ctx context.Context, tokenAddresses []string) map[string]string {
	prices, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) (map[string]string, error) {
		return p.client.TokenPricesUSD(ctx, tokenAddresses)
	})
	if err != nil {
		p.logger.Warn("price fetch failed, returning empty price map",
			zap.Strings("tokens", tokenAddresses),
			zap.Error(err))
		return map[string]string{}
	}

	normalized := make(map[string]string, len(prices))
	for addr, price := range prices {
		normalized[strings.ToLower(addr)] = price
	}
	return normalized
}
