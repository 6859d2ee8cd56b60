package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Direction says which way a rebalancing swap goes.
type Direction int

const (
	DirectionBaseToQuote Direction = iota
	DirectionQuoteToBase
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionBaseToQuote:
		return "base_to_quote"
	case DirectionQuoteToBase:
		return "quote_to_base"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one imbalance evaluation. A nil *Decision
// means the portfolio is inside the tolerance band and no swap is needed.
type Decision struct {
	Direction Direction
	// ExcessUSD is the USD value to be moved to restore the 50/50 split.
	ExcessUSD decimal.Decimal
	// Intent is the swap to execute, amount in smallest token units.
	Intent SwapIntent
}

// SwapIntent describes one swap in smallest token units.
// Immutable once built.
type SwapIntent struct {
	FromToken     Token
	ToToken       Token
	Amount        *big.Int
	WalletAddress string
}

// String returns the string representation of the intent.
func (i SwapIntent) String() string {
	return fmt.Sprintf("%s->%s amount %s wallet %s",
		i.FromToken.Symbol, i.ToToken.Symbol, i.Amount.String(), i.WalletAddress)
}
