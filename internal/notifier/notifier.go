package notifier

import "github.com/shopspring/decimal"

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=notifier

// RoundWinner is the serializable summary of one settled winning bid.
type RoundWinner struct {
	Username   string          `json:"username"`
	Amount     decimal.Decimal `json:"amount"`
	GiftNumber int             `json:"gift_number"`
}

// Notifier receives fire-and-forget events from the auction engine.
// Delivery is at most once; a missed event is recoverable by polling
// current state.
type Notifier interface {
	// BidUpdated signals that the round's ranking changed.
	BidUpdated(auctionID, roundID string)
	// RoundEnded carries the settled winners and the next round number,
	// nil when the auction has no further rounds.
	RoundEnded(auctionID string, roundNumber int, winners []RoundWinner, nextRound *int)
	// AuctionEnded signals that the final round settled.
	AuctionEnded(auctionID string)
	// TimerTick reports the seconds remaining in an active round.
	TimerTick(roundID string, timeRemaining int)
}

// Noop discards all events.
type Noop struct{}

func (Noop) BidUpdated(string, string)                       {}
func (Noop) RoundEnded(string, int, []RoundWinner, *int)     {}
func (Noop) AuctionEnded(string)                             {}
func (Noop) TimerTick(string, int)                           {}
