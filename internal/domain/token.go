// Package domain defines core data structures used throughout the rebalancer.
package domain

import "strings"

// Token is an ERC-20 token tracked by the rebalancer.
type Token struct {
	// Address is the chain-specific contract address.
	Address string
	// Symbol is the human-readable ticker.
	Symbol string
	// Decimals is the token's decimal precision.
	Decimals uint
}

// AddressLower returns the contract address lower-cased,
// matching the keying of upstream price maps.
func (t Token) AddressLower() string {
	return strings.ToLower(t.Address)
}

// Pair is the two tokens rebalanced against each other.
type Pair struct {
	Base  Token
	Quote Token
}

// String returns the string representation.
func (p Pair) String() string {
	return p.Base.Symbol + "_" + p.Quote.Symbol
}

// Addresses returns both token addresses, base first.
func (p Pair) Addresses() []string {
	return []string{p.Base.Address, p.Quote.Address}
}
