package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is a closed set of auction lifecycle states.
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "draft"
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionActive    AuctionStatus = "active"
	AuctionCompleted AuctionStatus = "completed"
	AuctionCancelled AuctionStatus = "cancelled"
)

// RoundConfig describes one configured round slot of an auction.
type RoundConfig struct {
	RoundNumber     int `json:"round_number"`
	ItemsCount      int `json:"items_count"`
	DurationSeconds int `json:"duration_seconds"`
}

// AntiSnipingConfig controls automatic deadline extension on late bids.
type AntiSnipingConfig struct {
	Enabled          bool `json:"enabled"`
	ThresholdSeconds int  `json:"threshold_seconds"`
	ExtensionSeconds int  `json:"extension_seconds"`
	MaxExtensions    int  `json:"max_extensions"`
}

// Auction is a timed, multi-round sealed-style auction.
//
// CurrentRound is 0 before the auction starts and then tracks the 1-based
// number of the round in progress. CurrentRound and Status are mutated only
// by the auction orchestrator.
type Auction struct {
	AuctionID   string        `json:"auction_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`

	TotalRounds  int           `json:"total_rounds"`
	TotalItems   int           `json:"total_items"`
	RoundsConfig []RoundConfig `json:"rounds_config"`

	CurrentRound int           `json:"current_round"`
	Status       AuctionStatus `json:"status"`

	MinBidAmount decimal.Decimal `json:"min_bid_amount"`
	BidStep      decimal.Decimal `json:"bid_step"`

	AntiSniping AntiSnipingConfig `json:"anti_sniping"`

	ScheduledStartAt *time.Time `json:"scheduled_start_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
