package auctions

import (
	"fmt"
	"testing"
	"time"

	"gift-auction/internal/auctionerrors"
	"gift-auction/internal/biddingService"
	"gift-auction/internal/ledgerService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/internal/roundService"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newStack(t *testing.T, notify notifier.Notifier) (*Service, *bidding.BidBook, *repository.MemoryRepo) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	ledgerSvc := ledger.NewService(repo)
	roundSvc := rounds.NewService(repo, ledgerSvc, notify)
	bidBook := bidding.NewBidBook(repo, ledgerSvc, notify)
	svc := NewService(repo, roundSvc, bidBook, notify)

	for _, u := range []struct {
		id, name string
	}{
		{"user1", "alice"}, {"user2", "bob"},
	} {
		require.NoError(t, repo.CreateUser(model.User{
			UserID:   u.id,
			Username: u.name,
			Balance:  decimal.NewFromInt(1000),
		}))
	}
	return svc, bidBook, repo
}

// seedAuction wires an auction directly into the repo with zero-duration
// rounds, so a started round is immediately due.
func seedAuction(t *testing.T, repo *repository.MemoryRepo, totalRounds int) {
	t.Helper()
	configs := make([]model.RoundConfig, 0, totalRounds)
	roundModels := make([]model.Round, 0, totalRounds)
	gifts := make([]model.Gift, 0, totalRounds)
	for i := 1; i <= totalRounds; i++ {
		configs = append(configs, model.RoundConfig{RoundNumber: i, ItemsCount: 1})
		roundModels = append(roundModels, model.Round{
			RoundID:     fmt.Sprintf("round%d", i),
			AuctionID:   "auction1",
			RoundNumber: i,
			ItemsCount:  1,
			Status:      model.RoundPending,
		})
		gifts = append(gifts, model.Gift{
			GiftID:     fmt.Sprintf("gift%d", i),
			AuctionID:  "auction1",
			GiftNumber: i,
			Status:     model.GiftAvailable,
		})
	}
	require.NoError(t, repo.CreateAuction(model.Auction{
		AuctionID:    "auction1",
		Title:        "seeded",
		TotalRounds:  totalRounds,
		TotalItems:   totalRounds,
		RoundsConfig: configs,
		Status:       model.AuctionDraft,
		MinBidAmount: decimal.NewFromInt(10),
		BidStep:      decimal.NewFromInt(5),
	}))
	require.NoError(t, repo.CreateRounds(roundModels))
	require.NoError(t, repo.CreateGifts(gifts))
}

func TestAuctions_CreateValidation(t *testing.T) {
	svc, _, _ := newStack(t, notifier.Noop{})

	validRounds := []model.RoundConfig{{RoundNumber: 1, ItemsCount: 2, DurationSeconds: 60}}

	tests := []struct {
		name  string
		input CreateInput
	}{
		{
			name:  "missing_title",
			input: CreateInput{RoundsConfig: validRounds, MinBidAmount: decimal.NewFromInt(10)},
		},
		{
			name:  "no_rounds",
			input: CreateInput{Title: "a", MinBidAmount: decimal.NewFromInt(10)},
		},
		{
			name: "non_consecutive_round_numbers",
			input: CreateInput{
				Title:        "a",
				MinBidAmount: decimal.NewFromInt(10),
				RoundsConfig: []model.RoundConfig{{RoundNumber: 2, ItemsCount: 1, DurationSeconds: 60}},
			},
		},
		{
			name: "zero_duration",
			input: CreateInput{
				Title:        "a",
				MinBidAmount: decimal.NewFromInt(10),
				RoundsConfig: []model.RoundConfig{{RoundNumber: 1, ItemsCount: 1}},
			},
		},
		{
			name:  "non_positive_min_bid",
			input: CreateInput{Title: "a", RoundsConfig: validRounds},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(tc.input)
			require.ErrorIs(t, err, auctionerrors.ErrValidation)
		})
	}
}

func TestAuctions_Create(t *testing.T) {
	svc, _, repo := newStack(t, notifier.Noop{})

	auction, err := svc.Create(CreateInput{
		Title:        "spring gifts",
		MinBidAmount: decimal.NewFromInt(10),
		RoundsConfig: []model.RoundConfig{
			{RoundNumber: 1, ItemsCount: 2, DurationSeconds: 60},
			{RoundNumber: 2, ItemsCount: 3, DurationSeconds: 120},
		},
	})
	require.NoError(t, err)
	require.Equal(t, model.AuctionDraft, auction.Status)
	require.Equal(t, 2, auction.TotalRounds)
	require.Equal(t, 5, auction.TotalItems)
	// bid step defaults to 1 when omitted
	require.True(t, auction.BidStep.Equal(decimal.NewFromInt(1)))

	roundList, err := repo.RoundsByAuction(auction.AuctionID)
	require.NoError(t, err)
	require.Len(t, roundList, 2)
	for _, rd := range roundList {
		require.Equal(t, model.RoundPending, rd.Status)
	}

	gifts, err := repo.GiftsByAuction(auction.AuctionID)
	require.NoError(t, err)
	require.Len(t, gifts, 5)
	require.Equal(t, 1, gifts[0].GiftNumber)
	require.Equal(t, 5, gifts[4].GiftNumber)
}

func TestAuctions_CreateScheduled(t *testing.T) {
	svc, _, _ := newStack(t, notifier.Noop{})

	startAt := time.Now().UTC().Add(time.Hour)
	auction, err := svc.Create(CreateInput{
		Title:            "scheduled",
		MinBidAmount:     decimal.NewFromInt(10),
		RoundsConfig:     []model.RoundConfig{{RoundNumber: 1, ItemsCount: 1, DurationSeconds: 60}},
		ScheduledStartAt: &startAt,
	})
	require.NoError(t, err)
	require.Equal(t, model.AuctionScheduled, auction.Status)
	require.NotNil(t, auction.ScheduledStartAt)
}

func TestAuctions_Start(t *testing.T) {
	svc, _, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	started, err := svc.Start("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionActive, started.Status)
	require.Equal(t, 1, started.CurrentRound)
	require.NotNil(t, started.StartedAt)

	active, err := repo.ActiveRound("auction1")
	require.NoError(t, err)
	require.Equal(t, 1, active.RoundNumber)

	// re-start is rejected
	_, err = svc.Start("auction1")
	require.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

// Settling a non-final round starts the next one.
func TestAuctions_ProcessRoundEndAdvances(t *testing.T) {
	svc, bidBook, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	_, err := svc.Start("auction1")
	require.NoError(t, err)

	_, err = bidBook.PlaceBid("user1", "auction1", decimal.NewFromInt(100))
	require.NoError(t, err)

	round1, err := repo.RoundByNumber("auction1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessRoundEnd(round1.RoundID))

	auction, err := repo.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionActive, auction.Status)
	require.Equal(t, 2, auction.CurrentRound)

	active, err := repo.ActiveRound("auction1")
	require.NoError(t, err)
	require.Equal(t, 2, active.RoundNumber)
}

// An advance interrupted between starting the next round and moving the
// current-round pointer must not strand the auction: settling the later
// round catches the pointer up and finishes normally.
func TestAuctions_ProcessRoundEndHealsInterruptedAdvance(t *testing.T) {
	svc, _, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	_, err := svc.Start("auction1")
	require.NoError(t, err)

	// settle round 1 and start round 2 without moving the pointer, the
	// state left behind by an advance that died halfway
	roundSvc := rounds.NewService(repo, ledger.NewService(repo), notifier.Noop{})
	_, err = roundSvc.End("round1")
	require.NoError(t, err)
	_, err = roundSvc.Start("round2")
	require.NoError(t, err)

	auction, err := repo.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, 1, auction.CurrentRound)

	require.NoError(t, svc.ProcessRoundEnd("round2"))

	auction, err = repo.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionCompleted, auction.Status)
	require.Equal(t, 2, auction.CurrentRound)
}

// The mirror interruption: the next round already started but settling the
// finished round is retried; the retry only moves the pointer.
func TestAuctions_ProcessRoundEndRetryAfterNextRoundStarted(t *testing.T) {
	svc, _, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	_, err := svc.Start("auction1")
	require.NoError(t, err)

	roundSvc := rounds.NewService(repo, ledger.NewService(repo), notifier.Noop{})
	_, err = roundSvc.End("round1")
	require.NoError(t, err)
	_, err = roundSvc.Start("round2")
	require.NoError(t, err)

	require.NoError(t, svc.ProcessRoundEnd("round1"))

	auction, err := repo.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionActive, auction.Status)
	require.Equal(t, 2, auction.CurrentRound)

	active, err := repo.ActiveRound("auction1")
	require.NoError(t, err)
	require.Equal(t, 2, active.RoundNumber)
}

// Settling the final round completes the auction and announces it.
func TestAuctions_ProcessRoundEndCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockNotify := notifier.NewMockNotifier(ctrl)
	mockNotify.EXPECT().BidUpdated(gomock.Any(), gomock.Any()).AnyTimes()
	mockNotify.EXPECT().RoundEnded(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockNotify.EXPECT().AuctionEnded("auction1")

	svc, bidBook, repo := newStack(t, mockNotify)
	seedAuction(t, repo, 1)

	_, err := svc.Start("auction1")
	require.NoError(t, err)
	_, err = bidBook.PlaceBid("user1", "auction1", decimal.NewFromInt(100))
	require.NoError(t, err)

	round1, err := repo.RoundByNumber("auction1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessRoundEnd(round1.RoundID))

	auction, err := repo.GetAuction("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionCompleted, auction.Status)
	require.NotNil(t, auction.EndedAt)

	// re-processing the settled round changes nothing
	require.NoError(t, svc.ProcessRoundEnd(round1.RoundID))
}

func TestAuctions_GetState(t *testing.T) {
	svc, bidBook, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	state, err := svc.GetState("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionDraft, state.Auction.Status)
	require.Nil(t, state.CurrentRound)

	_, err = svc.Start("auction1")
	require.NoError(t, err)
	_, err = bidBook.PlaceBid("user1", "auction1", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = bidBook.PlaceBid("user2", "auction1", decimal.NewFromInt(200))
	require.NoError(t, err)

	state, err = svc.GetState("auction1")
	require.NoError(t, err)
	require.NotNil(t, state.CurrentRound)
	require.Equal(t, 1, state.CurrentRound.RoundNumber)
	require.Equal(t, 2, state.CurrentRound.TotalBids)
	require.Len(t, state.Leaderboard, 2)
	require.Equal(t, "bob", state.Leaderboard[0].Username)
}

func TestAuctions_Results(t *testing.T) {
	svc, bidBook, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 2)

	_, err := svc.Start("auction1")
	require.NoError(t, err)

	_, err = bidBook.PlaceBid("user1", "auction1", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = bidBook.PlaceBid("user2", "auction1", decimal.NewFromInt(200))
	require.NoError(t, err)

	round1, err := repo.RoundByNumber("auction1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessRoundEnd(round1.RoundID))

	// alice's 100 carried into round 2 and wins it unopposed
	round2, err := repo.RoundByNumber("auction1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessRoundEnd(round2.RoundID))

	results, err := svc.Results("auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionCompleted, results.Auction.Status)
	require.Len(t, results.Rounds, 2)

	require.Len(t, results.Rounds[0].Winners, 1)
	require.Equal(t, "bob", results.Rounds[0].Winners[0].Username)
	require.Len(t, results.Rounds[1].Winners, 1)
	require.Equal(t, "alice", results.Rounds[1].Winners[0].Username)

	require.Len(t, results.OverallWinners, 2)
	// bob spent 200 on one gift, alice 100 on one gift
	require.Equal(t, "bob", results.OverallWinners[0].Username)
	require.Equal(t, 1, results.OverallWinners[0].Rank)
	require.True(t, results.OverallWinners[0].TotalSpent.Equal(decimal.NewFromInt(200)))
	require.Equal(t, "alice", results.OverallWinners[1].Username)
}

func TestAuctions_UserGifts(t *testing.T) {
	svc, bidBook, repo := newStack(t, notifier.Noop{})
	seedAuction(t, repo, 1)

	_, err := svc.Start("auction1")
	require.NoError(t, err)
	_, err = bidBook.PlaceBid("user1", "auction1", decimal.NewFromInt(100))
	require.NoError(t, err)

	round1, err := repo.RoundByNumber("auction1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessRoundEnd(round1.RoundID))

	gifts, err := svc.UserGifts("user1")
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	require.Equal(t, model.GiftAwarded, gifts[0].Status)

	none, err := svc.UserGifts("user2")
	require.NoError(t, err)
	require.Empty(t, none)
}
