package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserAuctionStats accumulates a user's lifetime auction activity.
type UserAuctionStats struct {
	TotalBidsPlaced int             `json:"total_bids_placed"`
	TotalWins       int             `json:"total_wins"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	TotalRefunded   decimal.Decimal `json:"total_refunded"`
}

// User represents a participant in the auction system.
//
// Balance is the total funds deposited minus confirmed spend; Reserved is
// the amount currently held against live bids. Available funds are always
// Balance - Reserved, and 0 <= Reserved <= Balance holds at all times.
// Both fields are mutated only through ledger operations.
type User struct {
	UserID    string           `json:"user_id"`
	Username  string           `json:"username"`
	Balance   decimal.Decimal  `json:"balance"`
	Reserved  decimal.Decimal  `json:"reserved"`
	Stats     UserAuctionStats `json:"stats"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Available returns the portion of the balance not held by reservations.
func (u User) Available() decimal.Decimal {
	return u.Balance.Sub(u.Reserved)
}
