package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus is a closed set of bid states. Winning and losing are advisory
// refinements of a live bid, recomputed by the scheduler; won and refunded
// are terminal.
type BidStatus string

const (
	BidActive   BidStatus = "active"
	BidWinning  BidStatus = "winning"
	BidLosing   BidStatus = "losing"
	BidWon      BidStatus = "won"
	BidRefunded BidStatus = "refunded"
)

// IsLive reports whether the bid still participates in a round.
func (s BidStatus) IsLive() bool {
	return s == BidActive || s == BidWinning || s == BidLosing
}

// LiveBidStatuses lists the states of a bid that still holds a reservation
// in an open round.
var LiveBidStatuses = []BidStatus{BidActive, BidWinning, BidLosing}

// BidChangeReason records why a bid's amount or round changed.
type BidChangeReason string

const (
	BidChangeInitial BidChangeReason = "initial"
	BidChangeRaise   BidChangeReason = "raise"
	BidChangeCarried BidChangeReason = "carried"
)

// BidHistoryEntry is an append-only audit record of one bid change.
type BidHistoryEntry struct {
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Reason      BidChangeReason `json:"reason"`
	FromRoundID string          `json:"from_round_id,omitempty"`
}

// Bid is a user's single live bid within a round. A user holds at most one
// bid per round; raising mutates the record in place. When a losing bid is
// carried into the next round its RoundID is reassigned but its identity
// and history persist.
type Bid struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	RoundID   string `json:"round_id"`
	UserID    string `json:"user_id"`

	Amount        decimal.Decimal `json:"amount"`
	InitialAmount decimal.Decimal `json:"initial_amount"`

	Status BidStatus `json:"status"`

	// Rank is advisory: it is the last rank persisted by the scheduler,
	// never the authoritative ranking, which is re-derived on read.
	Rank int `json:"rank,omitempty"`

	History []BidHistoryEntry `json:"history"`

	OriginalRoundID    string `json:"original_round_id"`
	CarriedFromRoundID string `json:"carried_from_round_id,omitempty"`
	CarriedToRoundID   string `json:"carried_to_round_id,omitempty"`
	CarryCount         int    `json:"carry_count"`

	PlacedAt      time.Time `json:"placed_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
