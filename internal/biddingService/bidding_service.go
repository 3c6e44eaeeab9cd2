package bidding

import (
	"errors"
	"fmt"
	"time"

	"gift-auction/internal/auctionerrors"
	"gift-auction/internal/ledgerService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/utils"

	"github.com/shopspring/decimal"
)

// BidBook owns the set of bids for a round: placement, raising, ranking and
// the carry-over bookkeeping prerequisites. Fund movement goes through the
// ledger; this service never writes balances directly.
type BidBook struct {
	db     repository.AuctionDB
	ledger *ledger.Service
	notify notifier.Notifier
}

// NewBidBook creates a new BidBook instance
func NewBidBook(db repository.AuctionDB, ledgerSvc *ledger.Service, notify notifier.Notifier) *BidBook {
	return &BidBook{db: db, ledger: ledgerSvc, notify: notify}
}

// RankedBid is one entry of a round's leaderboard, tagged winning or losing
// at the round's items-count boundary.
type RankedBid struct {
	Rank      int       `json:"rank"`
	Bid       model.Bid `json:"bid"`
	Username  string    `json:"username"`
	IsWinning bool      `json:"is_winning"`
}

// PlaceBid records or raises the user's bid in the auction's active round.
// The first bid of a user in a round reserves the full amount; a subsequent
// call is a raise and reserves only the difference. Idempotency keys are
// derived deterministically so a retried request cannot double-reserve.
func (b *BidBook) PlaceBid(userID, auctionID string, amount decimal.Decimal) (model.Bid, error) {
	auction, err := b.db.GetAuction(auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}
	if auction.Status != model.AuctionActive {
		return model.Bid{}, fmt.Errorf("bidding: auction %s is %s: %w", auctionID, auction.Status, auctionerrors.ErrInvalidState)
	}

	round, err := b.db.ActiveRound(auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return model.Bid{}, fmt.Errorf("bidding: auction %s has no active round: %w", auctionID, auctionerrors.ErrInvalidState)
		}
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}

	if amount.LessThan(auction.MinBidAmount) {
		return model.Bid{}, fmt.Errorf("bidding: minimum bid is %s: %w", auction.MinBidAmount, auctionerrors.ErrValidation)
	}

	existing, err := b.db.BidByUserAndRound(userID, round.RoundID)
	switch {
	case err == nil:
		return b.raiseBid(auction, round, existing, amount)
	case errors.Is(err, auctionerrors.ErrNotFound):
		return b.createBid(auction, round, userID, amount)
	default:
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}
}

func (b *BidBook) createBid(auction model.Auction, round model.Round, userID string, amount decimal.Decimal) (model.Bid, error) {
	refs := []model.TransactionReference{
		{Type: model.RefAuction, ID: auction.AuctionID},
		{Type: model.RefRound, ID: round.RoundID},
	}
	// one reservation per (user, round) no matter how often the request
	// is retried
	idemKey := fmt.Sprintf("bid-%s-%s", userID, round.RoundID)

	if _, err := b.ledger.Reserve(userID, amount, refs, "Bid placed on auction", idemKey); err != nil {
		return model.Bid{}, fmt.Errorf("bidding: reserve for bid: %w", err)
	}

	now := time.Now().UTC()
	bid := model.Bid{
		BidID:         utils.GenerateID(),
		AuctionID:     auction.AuctionID,
		RoundID:       round.RoundID,
		UserID:        userID,
		Amount:        amount,
		InitialAmount: amount,
		Status:        model.BidActive,
		History: []model.BidHistoryEntry{{
			Amount:    amount,
			Timestamp: now,
			Reason:    model.BidChangeInitial,
		}},
		OriginalRoundID: round.RoundID,
		PlacedAt:        now,
		LastUpdatedAt:   now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := b.db.CreateBid(bid); err != nil {
		// a concurrent request for the same (user, round) won the insert;
		// the deterministic reservation key kept funds held exactly once
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}

	if err := b.db.IncrementRoundBids(round.RoundID); err != nil {
		utils.Warn("bidding: failed to bump round bid counter", map[string]any{"round_id": round.RoundID, "error": err.Error()})
	}
	if err := b.db.AddUserStats(userID, model.UserAuctionStats{TotalBidsPlaced: 1}); err != nil {
		utils.Warn("bidding: failed to bump user stats", map[string]any{"user_id": userID, "error": err.Error()})
	}

	b.checkAntiSniping(auction, round.RoundID)
	b.notify.BidUpdated(auction.AuctionID, round.RoundID)

	return bid, nil
}

func (b *BidBook) raiseBid(auction model.Auction, round model.Round, existing model.Bid, newAmount decimal.Decimal) (model.Bid, error) {
	if newAmount.Cmp(existing.Amount) <= 0 {
		return model.Bid{}, fmt.Errorf("bidding: new amount must exceed current bid %s: %w", existing.Amount, auctionerrors.ErrValidation)
	}
	difference := newAmount.Sub(existing.Amount)
	if difference.LessThan(auction.BidStep) {
		return model.Bid{}, fmt.Errorf("bidding: minimum raise is %s: %w", auction.BidStep, auctionerrors.ErrValidation)
	}

	refs := []model.TransactionReference{
		{Type: model.RefAuction, ID: auction.AuctionID},
		{Type: model.RefRound, ID: round.RoundID},
		{Type: model.RefBid, ID: existing.BidID},
	}
	// the key carries the base amount: a retry after a lost raise re-reads
	// the bid and reserves a fresh difference under a new key
	idemKey := fmt.Sprintf("bid-raise-%s-%s-%s", existing.BidID, existing.Amount, newAmount)

	if _, err := b.ledger.Reserve(existing.UserID, difference, refs, "Bid raised on auction", idemKey); err != nil {
		return model.Bid{}, fmt.Errorf("bidding: reserve raise: %w", err)
	}

	entry := model.BidHistoryEntry{
		Amount:    newAmount,
		Timestamp: time.Now().UTC(),
		Reason:    model.BidChangeRaise,
	}
	if err := b.db.RaiseBid(existing.BidID, existing.Amount, newAmount, entry); err != nil {
		if errors.Is(err, auctionerrors.ErrConcurrentModification) {
			// lost the compare-and-set to another raise; give the hold for
			// this attempt back so only the landed amount stays reserved
			if _, relErr := b.ledger.Release(existing.UserID, difference, refs, "Released raise lost to a concurrent update"); relErr != nil {
				utils.Error("bidding: failed to release lost raise", map[string]any{
					"bid_id": existing.BidID, "user_id": existing.UserID, "error": relErr.Error(),
				})
			}
		}
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}

	updated, err := b.db.GetBid(existing.BidID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("bidding: %w", err)
	}

	b.checkAntiSniping(auction, round.RoundID)
	b.notify.BidUpdated(auction.AuctionID, round.RoundID)

	return updated, nil
}

// checkAntiSniping extends the round deadline when a bid lands strictly
// inside the threshold window, at most MaxExtensions times per round.
func (b *BidBook) checkAntiSniping(auction model.Auction, roundID string) {
	if !auction.AntiSniping.Enabled {
		return
	}
	round, err := b.db.GetRound(roundID)
	if err != nil || round.ScheduledEndAt == nil {
		return
	}

	now := time.Now().UTC()
	timeLeft := round.ScheduledEndAt.Sub(now)
	threshold := time.Duration(auction.AntiSniping.ThresholdSeconds) * time.Second

	if timeLeft <= 0 || timeLeft > threshold {
		return
	}

	extension := time.Duration(auction.AntiSniping.ExtensionSeconds) * time.Second
	extended, err := b.db.ExtendRound(roundID, extension, auction.AntiSniping.MaxExtensions, now)
	if err != nil {
		utils.Warn("bidding: anti-sniping extension failed", map[string]any{"round_id": roundID, "error": err.Error()})
		return
	}
	if extended {
		utils.Info("bidding: round extended by anti-sniping", map[string]any{
			"round_id":   roundID,
			"auction_id": auction.AuctionID,
			"extension":  auction.AntiSniping.ExtensionSeconds,
		})
	}
}

// Ranking returns the round's full leaderboard, rank 1 first. The order is
// re-derived from (amount, placedAt) on every call; nothing is cached.
func (b *BidBook) Ranking(roundID string) ([]RankedBid, error) {
	round, err := b.db.GetRound(roundID)
	if err != nil {
		return nil, fmt.Errorf("bidding: %w", err)
	}

	bids, err := b.db.BidsByRound(roundID)
	if err != nil {
		return nil, fmt.Errorf("bidding: %w", err)
	}

	out := make([]RankedBid, 0, len(bids))
	for i, bid := range bids {
		username := "unknown"
		if user, err := b.db.GetUser(bid.UserID); err == nil {
			username = user.Username
		}
		out = append(out, RankedBid{
			Rank:      i + 1,
			Bid:       bid,
			Username:  username,
			IsWinning: i < round.ItemsCount,
		})
	}
	return out, nil
}

// RefreshBidStatuses recomputes the winning/losing refinement for every live
// bid of the round and persists advisory ranks. Driven by the scheduler.
func (b *BidBook) RefreshBidStatuses(roundID string) error {
	round, err := b.db.GetRound(roundID)
	if err != nil {
		return fmt.Errorf("bidding: %w", err)
	}

	bids, err := b.db.BidsByRound(roundID)
	if err != nil {
		return fmt.Errorf("bidding: %w", err)
	}

	for i, bid := range bids {
		if !bid.Status.IsLive() {
			continue
		}
		newStatus := model.BidLosing
		if i < round.ItemsCount {
			newStatus = model.BidWinning
		}
		if bid.Status != newStatus {
			if err := b.db.SetBidStatus(bid.BidID, model.LiveBidStatuses, newStatus); err != nil {
				// the bid settled between read and write, skip it
				continue
			}
		}
		if err := b.db.SetBidRank(bid.BidID, i+1); err != nil {
			utils.Debug("bidding: failed to persist advisory rank", map[string]any{"bid_id": bid.BidID, "error": err.Error()})
		}
	}
	return nil
}

// UserBids returns every bid the user ever placed, newest first.
func (b *BidBook) UserBids(userID string) ([]model.Bid, error) {
	bids, err := b.db.BidsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("bidding: %w", err)
	}
	return bids, nil
}

// UserActiveBids returns the user's live bids only.
func (b *BidBook) UserActiveBids(userID string) ([]model.Bid, error) {
	bids, err := b.db.BidsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("bidding: %w", err)
	}
	out := bids[:0]
	for _, bid := range bids {
		if bid.Status.IsLive() {
			out = append(out, bid)
		}
	}
	return out, nil
}
