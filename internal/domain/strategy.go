package domain

import "time"

// DealStatus is the last known state of a user's downstream rebalancing deal.
type DealStatus string

const (
	DealStatusPending   DealStatus = "pending"
	DealStatusRunning   DealStatus = "running"
	DealStatusCompleted DealStatus = "completed"
	DealStatusFailed    DealStatus = "failed"
)

// Strategy is a registered per-user rebalancing subscription.
// Lives in process memory only; lost on restart.
type Strategy struct {
	UserID               string     `json:"userId"`
	WalletAddress        string     `json:"walletAddress"`
	ProtectedDataAddress string     `json:"protectedDataAddress"`
	CreatedAt            time.Time  `json:"createdAt"`
	LastTriggered        *time.Time `json:"lastTriggered,omitempty"`
	ActiveDealID         string     `json:"activeDealId,omitempty"`
	LastDealStatus       DealStatus `json:"lastDealStatus,omitempty"`
}
