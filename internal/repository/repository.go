package repository

import (
	"time"

	model "gift-auction/internal/models"

	"github.com/shopspring/decimal"
)

// UserStore owns user records and the balance/reservation accounting
// primitives. Every balance mutation is a single atomic check-and-mutate
// against the user's record; reservations for different users never contend.
type UserStore interface {
	CreateUser(user model.User) error
	GetUser(userID string) (model.User, error)
	GetUserByUsername(username string) (model.User, error)

	// ReleaseReserved decreases reserved iff reserved >= amount.
	ReleaseReserved(userID string, amount decimal.Decimal) error
	// ConfirmReserved decreases balance and reserved together iff both
	// cover amount; reserved funds leave the system as spend.
	ConfirmReserved(userID string, amount decimal.Decimal) error

	// ReserveAndJournal increases reserved iff balance - reserved >=
	// amount and records tx as the same guarded mutation: the funds
	// check, the idempotency key claim and both writes happen under the
	// user's record lock, so of two concurrent calls carrying the same
	// key exactly one reserves. The loser gets ErrAlreadyProcessed and
	// leaves no hold behind.
	ReserveAndJournal(userID string, amount decimal.Decimal, tx model.Transaction) error
	// DepositAndJournal increases balance unconditionally and records
	// tx, claiming tx's idempotency key in the same guarded mutation.
	DepositAndJournal(userID string, amount decimal.Decimal, tx model.Transaction) error

	AddUserStats(userID string, delta model.UserAuctionStats) error
}

// AuctionStore owns auction records. Lifecycle mutations are guarded on the
// current status so that concurrent drivers cannot replay a transition.
type AuctionStore interface {
	CreateAuction(auction model.Auction) error
	GetAuction(auctionID string) (model.Auction, error)
	ListAuctions(status model.AuctionStatus) ([]model.Auction, error)
	ActiveAuctions() ([]model.Auction, error)
	AuctionsScheduledBefore(t time.Time) ([]model.Auction, error)

	// ActivateAuction flips draft/scheduled to active and sets the first
	// round as current.
	ActivateAuction(auctionID string, now time.Time) error
	// AdvanceAuctionRound moves current round forward; auction must be active.
	AdvanceAuctionRound(auctionID string, roundNumber int) error
	// CompleteAuction flips active to completed.
	CompleteAuction(auctionID string, now time.Time) error
	// CancelAuction flips draft/scheduled to cancelled.
	CancelAuction(auctionID string, now time.Time) error
}

// RoundStore owns round records with a unique (auction, roundNumber)
// constraint.
type RoundStore interface {
	CreateRounds(rounds []model.Round) error
	GetRound(roundID string) (model.Round, error)
	RoundByNumber(auctionID string, roundNumber int) (model.Round, error)
	RoundsByAuction(auctionID string) ([]model.Round, error)
	ActiveRound(auctionID string) (model.Round, error)

	// StartRound flips pending to active and stamps the deadline.
	StartRound(roundID string, now, scheduledEndAt time.Time) error
	// MarkRoundProcessing flips active to processing; new bids for the
	// round are rejected from this point on.
	MarkRoundProcessing(roundID string, now time.Time) error
	// CompleteRound flips processing to completed and records final stats.
	CompleteRound(roundID string, now time.Time, stats model.Round) error
	// ExtendRound pushes the deadline back iff the round is active and
	// fewer than maxExtensions extensions were used. Returns whether the
	// extension fired.
	ExtendRound(roundID string, extension time.Duration, maxExtensions int, now time.Time) (bool, error)

	// DueRounds returns rounds whose settlement is owed: active rounds
	// past their deadline plus processing rounds left over from an
	// interrupted settlement.
	DueRounds(now time.Time) ([]model.Round, error)

	IncrementRoundBids(roundID string) error
}

// BidStore owns bid records with a unique (round, user) constraint and
// compare-and-set amount mutation.
type BidStore interface {
	CreateBid(bid model.Bid) error
	GetBid(bidID string) (model.Bid, error)
	BidByUserAndRound(userID, roundID string) (model.Bid, error)
	// BidsByRound returns the round's bids ordered by amount descending,
	// ties broken by earliest placement.
	BidsByRound(roundID string) ([]model.Bid, error)
	BidsByAuction(auctionID string) ([]model.Bid, error)
	BidsByUser(userID string) ([]model.Bid, error)

	// RaiseBid sets a new amount iff the current amount equals expect.
	RaiseBid(bidID string, expect, newAmount decimal.Decimal, entry model.BidHistoryEntry) error
	// SetBidStatus moves the bid to status iff its current status is one
	// of from.
	SetBidStatus(bidID string, from []model.BidStatus, to model.BidStatus) error
	// CarryBid reassigns a live bid from one round to the next, keeping
	// its identity and history.
	CarryBid(bidID, fromRoundID, toRoundID string, entry model.BidHistoryEntry) error
	// SetBidRank persists an advisory rank; the authoritative ranking is
	// always re-derived from (amount, placedAt).
	SetBidRank(bidID string, rank int) error
}

// GiftStore owns prize slots. Awarding is guarded on the available status so
// a slot is awarded exactly once.
type GiftStore interface {
	CreateGifts(gifts []model.Gift) error
	GetGift(giftID string) (model.Gift, error)
	GiftsByAuction(auctionID string) ([]model.Gift, error)
	GiftsByWinner(userID string) ([]model.Gift, error)

	AwardGift(giftID, winnerID, bidID string, amount decimal.Decimal, roundID string, now time.Time) error
}

// TransactionStore owns the append-only ledger journal with a unique
// constraint on the idempotency key.
type TransactionStore interface {
	CreateTransaction(tx model.Transaction) error
	TransactionByIdempotencyKey(key string) (model.Transaction, error)
	TransactionsByUser(userID string, limit int) ([]model.Transaction, error)
}

// AuctionDB is the full storage contract consumed by the auction engine.
type AuctionDB interface {
	UserStore
	AuctionStore
	RoundStore
	BidStore
	GiftStore
	TransactionStore
}
