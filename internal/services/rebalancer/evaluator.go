// Package rebalancer holds the imbalance evaluator and the cycle
// orchestrator composing balance reads, allowance and swap execution.
package rebalancer

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/rebalancer/internal/domain"
)

var two = decimal.NewFromInt(2)

// MissingPriceError reports that a required token price was absent or
// unparseable, with the intermediate values needed to diagnose offline.
type MissingPriceError struct {
	Token     domain.Token
	RawPrice  string
	ExcessUSD decimal.Decimal
	BaseUSD   decimal.Decimal
	QuoteUSD  decimal.Decimal
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no usable USD price for %s (%s): raw=%q excess=%s balances=%s/%s",
		e.Token.Symbol, e.Token.Address, e.RawPrice,
		e.ExcessUSD.String(), e.BaseUSD.String(), e.QuoteUSD.String())
}

// Evaluate decides whether a swap is needed to restore a 50/50 USD split.
// Pure: no I/O, same inputs always produce the same decision. Returns nil
// when both balances sit inside the tolerance band around the midpoint.
//
// Amounts are floor-rounded to smallest token units so the swap never
// overshoots the target.
func Evaluate(pair domain.Pair, baseUSD, quoteUSD decimal.Decimal, prices map[string]string,
	tolerance decimal.Decimal, walletAddress string) (*domain.Decision, error) {

	total := baseUSD.Add(quoteUSD)
	target := total.Div(two)
	threshold := target.Add(target.Mul(tolerance))

	switch {
	case baseUSD.GreaterThan(threshold):
		excess := baseUSD.Sub(target)
		return buildDecision(domain.DirectionBaseToQuote, pair.Base, pair.Quote,
			excess, baseUSD, quoteUSD, prices, walletAddress)
	case quoteUSD.GreaterThan(threshold):
		excess := quoteUSD.Sub(target)
		return buildDecision(domain.DirectionQuoteToBase, pair.Quote, pair.Base,
			excess, baseUSD, quoteUSD, prices, walletAddress)
	default:
		return nil, nil
	}
}

func buildDecision(direction domain.Direction, from, to domain.Token,
	excessUSD, baseUSD, quoteUSD decimal.Decimal, prices map[string]string,
	walletAddress string) (*domain.Decision, error) {

	raw, ok := prices[from.AddressLower()]
	if !ok {
		return nil, &MissingPriceError{Token: from, ExcessUSD: excessUSD, BaseUSD: baseUSD, QuoteUSD: quoteUSD}
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || price.IsZero() || price.IsNegative() {
		return nil, &MissingPriceError{Token: from, RawPrice: raw, ExcessUSD: excessUSD, BaseUSD: baseUSD, QuoteUSD: quoteUSD}
	}

	// quotient truncated at zero fractional digits is the exact floor
	// in smallest units, independent of division precision
	amountQuo, _ := excessUSD.Shift(int32(from.Decimals)).QuoRem(price, 0)
	amountSmallest := amountQuo.BigInt()
	if amountSmallest.Sign() < 0 {
		return nil, errors.Errorf("negative swap amount %s for %s (excess=%s price=%s)",
			amountSmallest.String(), from.Symbol, excessUSD.String(), price.String())
	}
	if amountSmallest.Sign() == 0 {
		// excess below one smallest unit, nothing to move
		return nil, nil
	}

	return &domain.Decision{
		Direction: direction,
		ExcessUSD: excessUSD,
		Intent: domain.SwapIntent{
			FromToken:     from,
			ToToken:       to,
			Amount:        amountSmallest,
			WalletAddress: walletAddress,
		},
	}, nil
}
