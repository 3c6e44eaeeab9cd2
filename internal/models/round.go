package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus is a closed set of round lifecycle states. A round moves
// pending -> active -> processing -> completed and never re-enters a state.
type RoundStatus string

const (
	RoundPending    RoundStatus = "pending"
	RoundActive     RoundStatus = "active"
	RoundProcessing RoundStatus = "processing"
	RoundCompleted  RoundStatus = "completed"
)

// Round is one bidding window of an auction. ItemsCount is the number of
// winners; the top ItemsCount ranked bids each take a gift slot when the
// round settles.
type Round struct {
	RoundID   string `json:"round_id"`
	AuctionID string `json:"auction_id"`

	RoundNumber int         `json:"round_number"`
	ItemsCount  int         `json:"items_count"`
	Status      RoundStatus `json:"status"`

	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	ScheduledEndAt  *time.Time `json:"scheduled_end_at,omitempty"`
	ActualEndAt     *time.Time `json:"actual_end_at,omitempty"`

	ExtensionsUsed int        `json:"extensions_used"`
	LastExtendedAt *time.Time `json:"last_extended_at,omitempty"`

	TotalBids        int             `json:"total_bids"`
	UniqueBidders    int             `json:"unique_bidders"`
	HighestBid       decimal.Decimal `json:"highest_bid"`
	LowestWinningBid decimal.Decimal `json:"lowest_winning_bid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
