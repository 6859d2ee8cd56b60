package domain

// OrderStatus is the lifecycle state of a swap order at the settlement venue.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status ends the poll loop.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

// SwapResult is the terminal outcome of one swap.
type SwapResult struct {
	OrderHash string
	Status    OrderStatus
	// FillTxHash is the settlement transaction hash, set when Status is filled.
	FillTxHash string
}
