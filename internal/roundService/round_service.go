package rounds

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
)

// Service drives the round lifecycle: pending -> active -> processing ->
// completed. No state is ever re-entered. Settlement awards prizes to the
// top-ranked bids, carries losing bids into the next round, and refunds
// them when no round remains.
type Service struct {
	db     repository.AuctionDB
	ledger *ledger.Service
	notify notifier.Notifier
}

// NewService creates a new round Service instance
func NewService(db repository.AuctionDB, ledgerSvc *ledger.Service, notify notifier.Notifier) *Service {
	return &Service{db: db, ledger: ledgerSvc, notify: notify}
}

// Settlement reports the outcome of ending one round.
type Settlement struct {
	Winners         []SettledWinner
	Carried         []model.Bid
	Refunded        []model.Bid
	NextRoundNumber *int
}

// SettledWinner pairs a winning bid with the gift slot it took.
type SettledWinner struct {
	Bid  model.Bid
	Gift model.Gift
}

// CreateForAuction creates one pending round per configured slot.
func (s *Service) CreateForAuction(auctionID string, configs []model.RoundConfig) ([]model.Round, error) {
	now := time.Now().UTC()
	rounds := make([]model.Round, 0, len(configs))
	for _, cfg := range configs {
		rounds = append(rounds, model.Round{
			RoundID:         utils.GenerateID(),
			AuctionID:       auctionID,
			RoundNumber:     cfg.RoundNumber,
			ItemsCount:      cfg.ItemsCount,
			Status:          model.RoundPending,
			DurationSeconds: cfg.DurationSeconds,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if err := s.db.CreateRounds(rounds); err != nil {
		return nil, fmt.Errorf("rounds: %w", err)
	}
	return rounds, nil
}

// Start moves a pending round to active and stamps its deadline.
func (s *Service) Start(roundID string) (model.Round, error) {
	round, err := s.db.GetRound(roundID)
	if err != nil {
		return model.Round{}, fmt.Errorf("rounds: %w", err)
	}

	now := time.Now().UTC()
	endAt := now.Add(time.Duration(round.DurationSeconds) * time.Second)
	if err := s.db.StartRound(roundID, now, endAt); err != nil {
		return model.Round{}, fmt.Errorf("rounds: %w", err)
	}

	started, err := s.db.GetRound(roundID)
	if err != nil {
		return model.Round{}, fmt.Errorf("rounds: %w", err)
	}
	utils.Info("round started", map[string]any{
		"round_id":     roundID,
		"auction_id":   round.AuctionID,
		"round_number": round.RoundNumber,
		"ends_at":      endAt.Format(time.RFC3339),
	})
	return started, nil
}

// End settles the round. An active round past its deadline is first moved to
// processing, which shuts out new bids; a round already processing resumes
// an interrupted settlement; a completed round is a no-op. Each bid is
// settled in an independent idempotent step so a retry never re-processes
// already-settled bids.
func (s *Service) End(roundID string) (Settlement, error) {
	round, err := s.db.GetRound(roundID)
	if err != nil {
		return Settlement{}, fmt.Errorf("rounds: %w", err)
	}

	now := time.Now().UTC()
	switch round.Status {
	case model.RoundActive:
		if round.ScheduledEndAt == nil || now.Before(*round.ScheduledEndAt) {
			return Settlement{}, fmt.Errorf("rounds: round %s has not reached its deadline: %w", roundID, auctionerrors.ErrInvalidState)
		}
		if err := s.db.MarkRoundProcessing(roundID, now); err != nil {
			return Settlement{}, fmt.Errorf("rounds: %w", err)
		}
	case model.RoundProcessing:
		// retrying an interrupted settlement
	case model.RoundCompleted:
		return Settlement{}, nil
	default:
		return Settlement{}, fmt.Errorf("rounds: end round %s from %s: %w", roundID, round.Status, auctionerrors.ErrInvalidState)
	}

	return s.settle(round, now)
}

func (s *Service) settle(round model.Round, now time.Time) (Settlement, error) {
	auction, err := s.db.GetAuction(round.AuctionID)
	if err != nil {
		return Settlement{}, fmt.Errorf("rounds: %w", err)
	}

	allBids, err := s.db.BidsByRound(round.RoundID)
	if err != nil {
		return Settlement{}, fmt.Errorf("rounds: %w", err)
	}

	boundary := round.ItemsCount
	if boundary > len(allBids) {
		boundary = len(allBids)
	}
	winningBids := allBids[:boundary]
	losingBids := allBids[boundary:]

	var result Settlement

	allGifts, err := s.db.GiftsByAuction(auction.AuctionID)
	if err != nil {
		return Settlement{}, fmt.Errorf("rounds: %w", err)
	}
	// a gift already bound to a winning bid marks an interrupted award;
	// the retry resumes it rather than taking a second slot
	awardedByBid := make(map[string]model.Gift)
	var gifts []model.Gift
	for _, g := range allGifts {
		switch g.Status {
		case model.GiftAwarded:
			awardedByBid[g.WinningBidID] = g
		case model.GiftAvailable:
			gifts = append(gifts, g)
		}
	}
	giftIdx := 0
	for _, bid := range winningBids {
		if bid.Status == model.BidWon {
			continue // settled on a previous attempt
		}
		gift, resuming := awardedByBid[bid.BidID]
		if !resuming {
			if giftIdx >= len(gifts) {
				utils.Error("rounds: no gift slot left for winning bid", map[string]any{
					"round_id": round.RoundID, "bid_id": bid.BidID,
				})
				break
			}
			gift = gifts[giftIdx]
			giftIdx++
		}

		if err := s.awardWinner(auction, round, bid, gift, resuming, now); err != nil {
			utils.Error("rounds: failed to settle winner, will retry next tick", map[string]any{
				"round_id": round.RoundID, "bid_id": bid.BidID, "error": err.Error(),
			})
			return result, fmt.Errorf("rounds: settle winner: %w", err)
		}

		settledGift, err := s.db.GetGift(gift.GiftID)
		if err != nil {
			settledGift = gift
		}
		result.Winners = append(result.Winners, SettledWinner{Bid: bid, Gift: settledGift})
	}

	nextRound, err := s.db.RoundByNumber(auction.AuctionID, round.RoundNumber+1)
	hasNext := err == nil
	if err != nil && !errors.Is(err, auctionerrors.ErrNotFound) {
		return result, fmt.Errorf("rounds: %w", err)
	}

	for _, bid := range losingBids {
		switch {
		case hasNext:
			carried, err := s.carryLoser(round, nextRound, bid)
			if err != nil {
				return result, fmt.Errorf("rounds: carry bid: %w", err)
			}
			if carried != nil {
				result.Carried = append(result.Carried, *carried)
			}
		default:
			refunded, err := s.refundLoser(auction, round, bid)
			if err != nil {
				return result, fmt.Errorf("rounds: refund bid: %w", err)
			}
			if refunded != nil {
				result.Refunded = append(result.Refunded, *refunded)
			}
		}
	}

	stats := model.Round{UniqueBidders: countUniqueBidders(allBids)}
	if len(winningBids) > 0 {
		stats.HighestBid = winningBids[0].Amount
		stats.LowestWinningBid = winningBids[len(winningBids)-1].Amount
	}
	if err := s.db.CompleteRound(round.RoundID, now, stats); err != nil {
		return result, fmt.Errorf("rounds: %w", err)
	}

	if hasNext {
		n := nextRound.RoundNumber
		result.NextRoundNumber = &n
	}

	s.notify.RoundEnded(auction.AuctionID, round.RoundNumber, s.winnerSummaries(result.Winners), result.NextRoundNumber)

	utils.Info("round settled", map[string]any{
		"round_id":     round.RoundID,
		"auction_id":   auction.AuctionID,
		"round_number": round.RoundNumber,
		"winners":      len(result.Winners),
		"carried":      len(result.Carried),
		"refunded":     len(result.Refunded),
	})
	return result, nil
}

func (s *Service) awardWinner(auction model.Auction, round model.Round, bid model.Bid, gift model.Gift, resuming bool, now time.Time) error {
	if !resuming {
		if err := s.db.AwardGift(gift.GiftID, bid.UserID, bid.BidID, bid.Amount, round.RoundID, now); err != nil {
			return err
		}
	}

	refs := []model.TransactionReference{
		{Type: model.RefAuction, ID: auction.AuctionID},
		{Type: model.RefRound, ID: round.RoundID},
		{Type: model.RefBid, ID: bid.BidID},
		{Type: model.RefGift, ID: gift.GiftID},
	}
	description := fmt.Sprintf("Won gift #%d in auction", gift.GiftNumber)
	// keyed per bid so a resumed settlement cannot spend twice
	idemKey := fmt.Sprintf("win-%s", bid.BidID)
	if _, err := s.ledger.Confirm(bid.UserID, bid.Amount, refs, description, idemKey); err != nil {
		return err
	}

	return s.db.SetBidStatus(bid.BidID, model.LiveBidStatuses, model.BidWon)
}

// carryLoser moves a losing bid into the next round; funds stay reserved.
// Returns nil without error when the bid was already carried.
func (s *Service) carryLoser(round, nextRound model.Round, bid model.Bid) (*model.Bid, error) {
	if bid.RoundID != round.RoundID || !bid.Status.IsLive() {
		return nil, nil // settled on a previous attempt
	}
	entry := model.BidHistoryEntry{
		Amount:      bid.Amount,
		Timestamp:   time.Now().UTC(),
		Reason:      model.BidChangeCarried,
		FromRoundID: round.RoundID,
	}
	if err := s.db.CarryBid(bid.BidID, round.RoundID, nextRound.RoundID, entry); err != nil {
		if errors.Is(err, auctionerrors.ErrConcurrentModification) {
			return nil, nil
		}
		return nil, err
	}
	carried, err := s.db.GetBid(bid.BidID)
	if err != nil {
		return nil, err
	}
	return &carried, nil
}

// refundLoser releases the loser's reservation at the end of the final
// round. Returns nil without error when the bid was already refunded.
func (s *Service) refundLoser(auction model.Auction, round model.Round, bid model.Bid) (*model.Bid, error) {
	if bid.Status == model.BidRefunded {
		return nil, nil
	}
	refs := []model.TransactionReference{
		{Type: model.RefAuction, ID: auction.AuctionID},
		{Type: model.RefRound, ID: round.RoundID},
		{Type: model.RefBid, ID: bid.BidID},
	}
	if _, err := s.ledger.Release(bid.UserID, bid.Amount, refs, "Refund for auction ended"); err != nil {
		return nil, err
	}
	if err := s.db.SetBidStatus(bid.BidID, model.LiveBidStatuses, model.BidRefunded); err != nil {
		return nil, err
	}
	refunded, err := s.db.GetBid(bid.BidID)
	if err != nil {
		return nil, err
	}
	return &refunded, nil
}

func (s *Service) winnerSummaries(winners []SettledWinner) []notifier.RoundWinner {
	out := make([]notifier.RoundWinner, 0, len(winners))
	for _, w := range winners {
		username := "unknown"
		if user, err := s.db.GetUser(w.Bid.UserID); err == nil {
			username = user.Username
		}
		out = append(out, notifier.RoundWinner{
			Username:   username,
			Amount:     w.Bid.Amount,
			GiftNumber: w.Gift.GiftNumber,
		})
	}
	return out
}

func countUniqueBidders(bids []model.Bid) int {
	seen := make(map[string]struct{}, len(bids))
	for _, b := range bids {
		seen[b.UserID] = struct{}{}
	}
	return len(seen)
}

// TimeRemaining returns the whole seconds left in the round, clamped at
// zero. Rounds without a deadline report zero.
func (s *Service) TimeRemaining(roundID string) (int, error) {
	round, err := s.db.GetRound(roundID)
	if err != nil {
		return 0, fmt.Errorf("rounds: %w", err)
	}
	if round.ScheduledEndAt == nil {
		return 0, nil
	}
	remaining := int(time.Until(*round.ScheduledEndAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// DueRounds returns the rounds the scheduler owes a settlement.
func (s *Service) DueRounds(now time.Time) ([]model.Round, error) {
	due, err := s.db.DueRounds(now)
	if err != nil {
		return nil, fmt.Errorf("rounds: %w", err)
	}
	return due, nil
}
