package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"gift-auction/internal/auctionService"
	"gift-auction/internal/auctionerrors"
	"gift-auction/internal/biddingService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/internal/roundService"
	"gift-auction/utils"
)

// Scheduler drives the time-based transitions: starting scheduled auctions,
// settling rounds whose deadline passed, and pushing timer updates for
// active rounds. It never mutates state directly, it only calls the
// services, so a crashed tick leaves nothing half-done that the next tick
// cannot resume.
type Scheduler struct {
	db       repository.AuctionDB
	auctions *auctions.Service
	rounds   *rounds.Service
	bids     *bidding.BidBook
	notify   notifier.Notifier
	interval time.Duration

	ticking atomic.Bool
}

// New creates a Scheduler ticking at the given interval.
func New(db repository.AuctionDB, auctionSvc *auctions.Service, roundSvc *rounds.Service, bidBook *bidding.BidBook, notify notifier.Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		db:       db,
		auctions: auctionSvc,
		rounds:   roundSvc,
		bids:     bidBook,
		notify:   notify,
		interval: interval,
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	utils.Info("scheduler started", map[string]any{"interval": s.interval.String()})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			utils.Info("scheduler stopped", nil)
			return
		case now := <-ticker.C:
			s.Tick(now.UTC())
		}
	}
}

// Tick runs one scheduler pass. A pass that is still running when the next
// one fires is not overlapped; the later tick is skipped.
func (s *Scheduler) Tick(now time.Time) {
	if !s.ticking.CompareAndSwap(false, true) {
		utils.Warn("scheduler tick skipped, previous still running", nil)
		return
	}
	defer s.ticking.Store(false)

	s.startScheduledAuctions(now)
	s.endDueRounds(now)
	s.updateActiveRounds(now)
}

func (s *Scheduler) startScheduledAuctions(now time.Time) {
	due, err := s.db.AuctionsScheduledBefore(now)
	if err != nil {
		utils.Error("scheduler failed to list scheduled auctions", map[string]any{"error": err.Error()})
		return
	}
	for _, auction := range due {
		if _, err := s.auctions.Start(auction.AuctionID); err != nil {
			utils.Error("scheduler failed to start auction", map[string]any{
				"auction_id": auction.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		utils.Info("scheduled auction started", map[string]any{"auction_id": auction.AuctionID})
	}
}

func (s *Scheduler) endDueRounds(now time.Time) {
	due, err := s.rounds.DueRounds(now)
	if err != nil {
		utils.Error("scheduler failed to list due rounds", map[string]any{"error": err.Error()})
		return
	}
	for _, round := range due {
		err := s.auctions.ProcessRoundEnd(round.RoundID)
		switch {
		case err == nil:
		case errors.Is(err, auctionerrors.ErrConcurrentModification):
			// lost a race with a concurrent bid or another settlement step,
			// the round stays due and the next tick retries
			utils.Warn("round settlement deferred", map[string]any{
				"round_id": round.RoundID,
				"error":    err.Error(),
			})
		default:
			utils.Error("scheduler failed to end round", map[string]any{
				"round_id": round.RoundID,
				"error":    err.Error(),
			})
		}
	}
}

func (s *Scheduler) updateActiveRounds(now time.Time) {
	active, err := s.db.ActiveAuctions()
	if err != nil {
		utils.Error("scheduler failed to list active auctions", map[string]any{"error": err.Error()})
		return
	}
	for _, auction := range active {
		round, err := s.db.ActiveRound(auction.AuctionID)
		if err != nil {
			if !errors.Is(err, auctionerrors.ErrNotFound) {
				utils.Error("scheduler failed to load active round", map[string]any{
					"auction_id": auction.AuctionID,
					"error":      err.Error(),
				})
			}
			continue
		}
		if err := s.bids.RefreshBidStatuses(round.RoundID); err != nil {
			utils.Warn("bid status refresh failed", map[string]any{
				"round_id": round.RoundID,
				"error":    err.Error(),
			})
		}
		s.notify.TimerTick(round.RoundID, remainingSeconds(round, now))
	}
}

func remainingSeconds(round model.Round, now time.Time) int {
	if round.ScheduledEndAt == nil {
		return 0
	}
	left := int(round.ScheduledEndAt.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}
