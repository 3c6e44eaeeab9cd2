package auctions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gift-auction/internal/auctionerrors"
	"gift-auction/internal/biddingService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/internal/roundService"
	"gift-auction/utils"

	"github.com/shopspring/decimal"
)

// Service orchestrates auctions: creation with their rounds and gift slots,
// starting, sequencing rounds as each one settles, and completion.
type Service struct {
	db     repository.AuctionDB
	rounds *rounds.Service
	bids   *bidding.BidBook
	notify notifier.Notifier
}

// NewService creates a new auction Service instance
func NewService(db repository.AuctionDB, roundSvc *rounds.Service, bidBook *bidding.BidBook, notify notifier.Notifier) *Service {
	return &Service{db: db, rounds: roundSvc, bids: bidBook, notify: notify}
}

// CreateInput carries the auction configuration supplied at creation time.
type CreateInput struct {
	Title            string
	Description      string
	RoundsConfig     []model.RoundConfig
	MinBidAmount     decimal.Decimal
	BidStep          decimal.Decimal
	AntiSniping      model.AntiSnipingConfig
	ScheduledStartAt *time.Time
	CreatedBy        string
}

// Create validates the configuration and creates the auction together with
// its pending rounds and numbered gift slots.
func (s *Service) Create(input CreateInput) (model.Auction, error) {
	if strings.TrimSpace(input.Title) == "" {
		return model.Auction{}, fmt.Errorf("auctions: title is required: %w", auctionerrors.ErrValidation)
	}
	if len(input.RoundsConfig) == 0 {
		return model.Auction{}, fmt.Errorf("auctions: at least one round is required: %w", auctionerrors.ErrValidation)
	}
	if !input.MinBidAmount.IsPositive() {
		return model.Auction{}, fmt.Errorf("auctions: minimum bid must be positive: %w", auctionerrors.ErrValidation)
	}

	totalItems := 0
	for i, cfg := range input.RoundsConfig {
		if cfg.RoundNumber != i+1 {
			return model.Auction{}, fmt.Errorf("auctions: round numbers must be consecutive from 1: %w", auctionerrors.ErrValidation)
		}
		if cfg.ItemsCount <= 0 || cfg.DurationSeconds <= 0 {
			return model.Auction{}, fmt.Errorf("auctions: round %d needs positive items and duration: %w", cfg.RoundNumber, auctionerrors.ErrValidation)
		}
		totalItems += cfg.ItemsCount
	}

	bidStep := input.BidStep
	if !bidStep.IsPositive() {
		bidStep = decimal.NewFromInt(1)
	}

	status := model.AuctionDraft
	if input.ScheduledStartAt != nil {
		status = model.AuctionScheduled
	}

	now := time.Now().UTC()
	auction := model.Auction{
		AuctionID:        utils.GenerateID(),
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		TotalRounds:      len(input.RoundsConfig),
		TotalItems:       totalItems,
		RoundsConfig:     input.RoundsConfig,
		Status:           status,
		MinBidAmount:     input.MinBidAmount,
		BidStep:          bidStep,
		AntiSniping:      input.AntiSniping,
		ScheduledStartAt: input.ScheduledStartAt,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.CreateAuction(auction); err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	if _, err := s.rounds.CreateForAuction(auction.AuctionID, input.RoundsConfig); err != nil {
		return model.Auction{}, err
	}
	if err := s.createGifts(auction.AuctionID, totalItems, now); err != nil {
		return model.Auction{}, err
	}

	utils.Info("auction created", map[string]any{
		"auction_id":   auction.AuctionID,
		"total_rounds": auction.TotalRounds,
		"total_items":  totalItems,
		"status":       string(status),
	})
	return auction, nil
}

func (s *Service) createGifts(auctionID string, count int, now time.Time) error {
	gifts := make([]model.Gift, 0, count)
	for i := 1; i <= count; i++ {
		gifts = append(gifts, model.Gift{
			GiftID:     utils.GenerateID(),
			AuctionID:  auctionID,
			GiftNumber: i,
			Status:     model.GiftAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := s.db.CreateGifts(gifts); err != nil {
		return fmt.Errorf("auctions: %w", err)
	}
	return nil
}

// Start begins the auction's first round and flips the auction to active.
func (s *Service) Start(auctionID string) (model.Auction, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	switch auction.Status {
	case model.AuctionDraft, model.AuctionScheduled:
	default:
		return model.Auction{}, fmt.Errorf("auctions: cannot start from %s: %w", auction.Status, auctionerrors.ErrInvalidState)
	}

	firstRound, err := s.db.RoundByNumber(auctionID, 1)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	if _, err := s.rounds.Start(firstRound.RoundID); err != nil {
		return model.Auction{}, err
	}
	if err := s.db.ActivateAuction(auctionID, time.Now().UTC()); err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}

	started, err := s.db.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	return started, nil
}

// NextRound starts the round after the current one, or completes the
// auction when no round remains.
func (s *Service) NextRound(auctionID string) (model.Auction, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	if auction.Status != model.AuctionActive {
		return model.Auction{}, fmt.Errorf("auctions: auction is %s: %w", auction.Status, auctionerrors.ErrInvalidState)
	}

	nextNumber := auction.CurrentRound + 1
	if nextNumber > auction.TotalRounds {
		return s.complete(auctionID)
	}

	next, err := s.db.RoundByNumber(auctionID, nextNumber)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	// an interrupted advance can leave the next round already started;
	// only the pointer still needs to move then
	if next.Status == model.RoundPending {
		if _, err := s.rounds.Start(next.RoundID); err != nil {
			return model.Auction{}, err
		}
	}
	if err := s.db.AdvanceAuctionRound(auctionID, nextNumber); err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}

	advanced, err := s.db.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	return advanced, nil
}

func (s *Service) complete(auctionID string) (model.Auction, error) {
	if err := s.db.CompleteAuction(auctionID, time.Now().UTC()); err != nil {
		return model.Auction{}, fmt.Errorf("auctions: %w", err)
	}
	s.notify.AuctionEnded(auctionID)
	utils.Info("auction completed", map[string]any{"auction_id": auctionID})
	return s.db.GetAuction(auctionID)
}

// ProcessRoundEnd settles a due round and then advances the auction: the
// next round starts, or the auction completes after the final round. The
// scheduler invokes this for every round past its deadline; every step is
// idempotent so a retry after a partial failure is safe.
func (s *Service) ProcessRoundEnd(roundID string) error {
	round, err := s.db.GetRound(roundID)
	if err != nil {
		return fmt.Errorf("auctions: %w", err)
	}

	settlement, err := s.rounds.End(roundID)
	if err != nil {
		return err
	}

	auction, err := s.db.GetAuction(round.AuctionID)
	if err != nil {
		return fmt.Errorf("auctions: %w", err)
	}
	if auction.Status != model.AuctionActive {
		return nil // already finalized by a previous attempt
	}
	if auction.CurrentRound > round.RoundNumber {
		return nil // a previous attempt already advanced past this round
	}
	// a stale pointer means an earlier advance was interrupted after the
	// next round started; catch it up to the round that just settled
	for auction.CurrentRound < round.RoundNumber {
		if err := s.db.AdvanceAuctionRound(auction.AuctionID, auction.CurrentRound+1); err != nil {
			return fmt.Errorf("auctions: %w", err)
		}
		auction.CurrentRound++
	}

	if settlement.NextRoundNumber != nil || round.RoundNumber < auction.TotalRounds {
		_, err = s.NextRound(auction.AuctionID)
	} else {
		_, err = s.complete(auction.AuctionID)
	}
	return err
}

// State is the polled view of an auction: status plus, while active, the
// current round and its leaderboard.
type State struct {
	Auction       model.Auction       `json:"auction"`
	CurrentRound  *RoundState         `json:"current_round,omitempty"`
	Leaderboard   []bidding.RankedBid `json:"leaderboard,omitempty"`
}

// RoundState summarizes the active round for polling clients.
type RoundState struct {
	RoundID       string `json:"round_id"`
	RoundNumber   int    `json:"round_number"`
	ItemsCount    int    `json:"items_count"`
	TimeRemaining int    `json:"time_remaining"`
	TotalBids     int    `json:"total_bids"`
}

// GetState returns the auction with its live round data when one is active.
func (s *Service) GetState(auctionID string) (State, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return State{}, fmt.Errorf("auctions: %w", err)
	}

	state := State{Auction: auction}
	if auction.Status != model.AuctionActive {
		return state, nil
	}

	active, err := s.db.ActiveRound(auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return state, nil // between rounds
		}
		return State{}, fmt.Errorf("auctions: %w", err)
	}

	remaining, err := s.rounds.TimeRemaining(active.RoundID)
	if err != nil {
		return State{}, err
	}
	leaderboard, err := s.bids.Ranking(active.RoundID)
	if err != nil {
		return State{}, err
	}

	state.CurrentRound = &RoundState{
		RoundID:       active.RoundID,
		RoundNumber:   active.RoundNumber,
		ItemsCount:    active.ItemsCount,
		TimeRemaining: remaining,
		TotalBids:     active.TotalBids,
	}
	state.Leaderboard = leaderboard
	return state, nil
}

// List returns auctions filtered by status; an empty status returns all.
func (s *Service) List(status model.AuctionStatus) ([]model.Auction, error) {
	auctions, err := s.db.ListAuctions(status)
	if err != nil {
		return nil, fmt.Errorf("auctions: %w", err)
	}
	return auctions, nil
}

// Gifts returns the auction's prize slots in slot order.
func (s *Service) Gifts(auctionID string) ([]model.Gift, error) {
	if _, err := s.db.GetAuction(auctionID); err != nil {
		return nil, fmt.Errorf("auctions: %w", err)
	}
	gifts, err := s.db.GiftsByAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("auctions: %w", err)
	}
	return gifts, nil
}

// UserGifts returns every gift a user has won.
func (s *Service) UserGifts(userID string) ([]model.Gift, error) {
	gifts, err := s.db.GiftsByWinner(userID)
	if err != nil {
		return nil, fmt.Errorf("auctions: %w", err)
	}
	return gifts, nil
}

// RoundResult is the settled view of one round in the results report.
type RoundResult struct {
	RoundNumber int                   `json:"round_number"`
	ItemsCount  int                   `json:"items_count"`
	Status      model.RoundStatus     `json:"status"`
	Winners     []notifier.RoundWinner `json:"winners"`
	TotalBids   int                   `json:"total_bids"`
	HighestBid  decimal.Decimal       `json:"highest_bid"`
}

// OverallWinner aggregates one user's wins across the whole auction.
type OverallWinner struct {
	Rank       int             `json:"rank"`
	Username   string          `json:"username"`
	GiftsWon   int             `json:"gifts_won"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// Results is the full post-auction report.
type Results struct {
	Auction        model.Auction   `json:"auction"`
	Rounds         []RoundResult   `json:"rounds"`
	OverallWinners []OverallWinner `json:"overall_winners"`
}

// Results builds the per-round and overall winners report.
func (s *Service) Results(auctionID string) (Results, error) {
	auction, err := s.db.GetAuction(auctionID)
	if err != nil {
		return Results{}, fmt.Errorf("auctions: %w", err)
	}

	roundList, err := s.db.RoundsByAuction(auctionID)
	if err != nil {
		return Results{}, fmt.Errorf("auctions: %w", err)
	}
	gifts, err := s.db.GiftsByAuction(auctionID)
	if err != nil {
		return Results{}, fmt.Errorf("auctions: %w", err)
	}

	out := Results{Auction: auction}
	for _, round := range roundList {
		rr := RoundResult{
			RoundNumber: round.RoundNumber,
			ItemsCount:  round.ItemsCount,
			Status:      round.Status,
			TotalBids:   round.TotalBids,
			HighestBid:  round.HighestBid,
		}
		for _, g := range gifts {
			if g.RoundID != round.RoundID || g.WinnerID == "" {
				continue
			}
			username := "unknown"
			if user, err := s.db.GetUser(g.WinnerID); err == nil {
				username = user.Username
			}
			rr.Winners = append(rr.Winners, notifier.RoundWinner{
				Username:   username,
				Amount:     g.WinningAmount,
				GiftNumber: g.GiftNumber,
			})
		}
		out.Rounds = append(out.Rounds, rr)
	}

	totals := make(map[string]*OverallWinner)
	order := make([]string, 0)
	for _, g := range gifts {
		if g.WinnerID == "" {
			continue
		}
		w, ok := totals[g.WinnerID]
		if !ok {
			username := "unknown"
			if user, err := s.db.GetUser(g.WinnerID); err == nil {
				username = user.Username
			}
			w = &OverallWinner{Username: username}
			totals[g.WinnerID] = w
			order = append(order, g.WinnerID)
		}
		w.GiftsWon++
		w.TotalSpent = w.TotalSpent.Add(g.WinningAmount)
	}
	for _, id := range order {
		out.OverallWinners = append(out.OverallWinners, *totals[id])
	}
	sort.SliceStable(out.OverallWinners, func(i, j int) bool {
		a, b := out.OverallWinners[i], out.OverallWinners[j]
		if a.GiftsWon != b.GiftsWon {
			return a.GiftsWon > b.GiftsWon
		}
		return a.TotalSpent.GreaterThan(b.TotalSpent)
	})
	for i := range out.OverallWinners {
		out.OverallWinners[i].Rank = i + 1
	}

	return out, nil
}
