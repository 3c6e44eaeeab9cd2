package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GiftStatus is a closed set of prize-slot states.
type GiftStatus string

const (
	GiftAvailable GiftStatus = "available"
	GiftAwarded   GiftStatus = "awarded"
	GiftClaimed   GiftStatus = "claimed"
)

// Gift is a numbered prize slot of an auction, awarded exactly once to the
// bid whose rank matches its number within the settling round.
type Gift struct {
	GiftID    string `json:"gift_id"`
	AuctionID string `json:"auction_id"`
	RoundID   string `json:"round_id,omitempty"`

	GiftNumber int        `json:"gift_number"`
	Status     GiftStatus `json:"status"`

	WinnerID      string          `json:"winner_id,omitempty"`
	WinningBidID  string          `json:"winning_bid_id,omitempty"`
	WinningAmount decimal.Decimal `json:"winning_amount"`

	AwardedAt *time.Time `json:"awarded_at,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
