package helpers

import (
	"time"

	model "gift-auction/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs

type CreateUserRequest struct {
	Username       string          `json:"username" binding:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type UserResponse struct {
	UserID    string          `json:"user_id"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
	CreatedAt string          `json:"created_at"`
}

type DepositRequest struct {
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
}

type BalanceOperationResponse struct {
	TransactionID string          `json:"transaction_id"`
	Balance       decimal.Decimal `json:"balance"`
	Reserved      decimal.Decimal `json:"reserved"`
	Duplicate     bool            `json:"duplicate"`
}

type RoundConfigRequest struct {
	RoundNumber     int `json:"round_number" binding:"required"`
	ItemsCount      int `json:"items_count" binding:"required"`
	DurationSeconds int `json:"duration_seconds" binding:"required"`
}

type AntiSnipingRequest struct {
	Enabled          bool `json:"enabled"`
	ThresholdSeconds int  `json:"threshold_seconds"`
	ExtensionSeconds int  `json:"extension_seconds"`
	MaxExtensions    int  `json:"max_extensions"`
}

type CreateAuctionRequest struct {
	Title            string                `json:"title" binding:"required"`
	Description      string                `json:"description"`
	Rounds           []RoundConfigRequest  `json:"rounds" binding:"required"`
	MinBidAmount     decimal.Decimal       `json:"min_bid_amount" binding:"required"`
	BidStep          decimal.Decimal       `json:"bid_step"`
	AntiSniping      *AntiSnipingRequest   `json:"anti_sniping"`
	ScheduledStartAt *time.Time            `json:"scheduled_start_at"`
	CreatedBy        string                `json:"created_by"`
}

type PlaceBidRequest struct {
	UserID    string          `json:"user_id" binding:"required"`
	AuctionID string          `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

type BidResponse struct {
	BidID     string          `json:"bid_id"`
	RoundID   string          `json:"round_id"`
	AuctionID string          `json:"auction_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    model.BidStatus `json:"status"`
	PlacedAt  string          `json:"placed_at"`
}

// NewBidResponse converts a bid model to its transport form.
func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		RoundID:   bid.RoundID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		Status:    bid.Status,
		PlacedAt:  bid.PlacedAt.UTC().Format(time.RFC3339),
	}
}
