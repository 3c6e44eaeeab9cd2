package rounds

import (
	"testing"
	"time"

	"gift-auction/internal/auctionerrors"
	"gift-auction/internal/ledgerService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo   *repository.MemoryRepo
	ledger *ledger.Service
	svc    *Service
}

// newFixture builds an active auction with two one-gift rounds and three
// funded users. Round durations are zero so a started round is immediately
// past its deadline.
func newFixture(t *testing.T, notify notifier.Notifier) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepo()

	for _, u := range []struct {
		id, name string
	}{
		{"user1", "alice"}, {"user2", "bob"}, {"user3", "carol"},
	} {
		require.NoError(t, repo.CreateUser(model.User{
			UserID:   u.id,
			Username: u.name,
			Balance:  decimal.NewFromInt(1000),
		}))
	}

	require.NoError(t, repo.CreateAuction(model.Auction{
		AuctionID:    "auction1",
		Title:        "test auction",
		TotalRounds:  2,
		TotalItems:   2,
		Status:       model.AuctionDraft,
		MinBidAmount: decimal.NewFromInt(10),
		BidStep:      decimal.NewFromInt(5),
	}))
	require.NoError(t, repo.CreateRounds([]model.Round{
		{RoundID: "round1", AuctionID: "auction1", RoundNumber: 1, ItemsCount: 1, Status: model.RoundPending},
		{RoundID: "round2", AuctionID: "auction1", RoundNumber: 2, ItemsCount: 1, Status: model.RoundPending},
	}))
	require.NoError(t, repo.CreateGifts([]model.Gift{
		{GiftID: "gift1", AuctionID: "auction1", GiftNumber: 1, Status: model.GiftAvailable},
		{GiftID: "gift2", AuctionID: "auction1", GiftNumber: 2, Status: model.GiftAvailable},
	}))
	require.NoError(t, repo.ActivateAuction("auction1", time.Now().UTC()))

	ledgerSvc := ledger.NewService(repo)
	return &fixture{
		repo:   repo,
		ledger: ledgerSvc,
		svc:    NewService(repo, ledgerSvc, notify),
	}
}

// placeBid reserves funds and records a bid the way the bid book would.
func (fx *fixture) placeBid(t *testing.T, bidID, userID, roundID string, amount int64, placedAt time.Time) {
	t.Helper()
	value := decimal.NewFromInt(amount)
	_, err := fx.ledger.Reserve(userID, value, nil, "bid hold", "bid-"+userID+"-"+roundID)
	require.NoError(t, err)
	require.NoError(t, fx.repo.CreateBid(model.Bid{
		BidID:           bidID,
		AuctionID:       "auction1",
		RoundID:         roundID,
		UserID:          userID,
		Amount:          value,
		InitialAmount:   value,
		Status:          model.BidActive,
		OriginalRoundID: roundID,
		PlacedAt:        placedAt,
	}))
}

func (fx *fixture) startRound(t *testing.T, roundID string) {
	t.Helper()
	_, err := fx.svc.Start(roundID)
	require.NoError(t, err)
}

func TestRounds_EndBeforeDeadline(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	now := time.Now().UTC()
	require.NoError(t, fx.repo.StartRound("round1", now, now.Add(time.Hour)))

	_, err := fx.svc.End("round1")
	require.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

func TestRounds_EndPendingRound(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	_, err := fx.svc.End("round1")
	require.ErrorIs(t, err, auctionerrors.ErrInvalidState)
}

// Full first-round settlement: top bid wins a gift and pays, losers are
// carried forward with their funds still held.
func TestRounds_SettleWithCarryOver(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	fx.startRound(t, "round1")

	now := time.Now().UTC()
	fx.placeBid(t, "bidA", "user1", "round1", 100, now)
	fx.placeBid(t, "bidB", "user2", "round1", 150, now.Add(time.Millisecond))
	fx.placeBid(t, "bidC", "user3", "round1", 120, now.Add(2*time.Millisecond))

	settlement, err := fx.svc.End("round1")
	require.NoError(t, err)

	require.Len(t, settlement.Winners, 1)
	require.Equal(t, "bidB", settlement.Winners[0].Bid.BidID)
	require.Equal(t, "gift1", settlement.Winners[0].Gift.GiftID)
	require.Len(t, settlement.Carried, 2)
	require.Empty(t, settlement.Refunded)
	require.NotNil(t, settlement.NextRoundNumber)
	require.Equal(t, 2, *settlement.NextRoundNumber)

	// the winner paid out of the reservation
	winner, err := fx.repo.GetUser("user2")
	require.NoError(t, err)
	require.True(t, winner.Balance.Equal(decimal.NewFromInt(850)))
	require.True(t, winner.Reserved.IsZero())
	require.Equal(t, 1, winner.Stats.TotalWins)

	// losers keep their holds and moved to round 2
	for _, bidID := range []string{"bidA", "bidC"} {
		bid, err := fx.repo.GetBid(bidID)
		require.NoError(t, err)
		require.Equal(t, "round2", bid.RoundID)
		require.Equal(t, model.BidActive, bid.Status)
		require.Equal(t, 1, bid.CarryCount)
	}
	loser, err := fx.repo.GetUser("user1")
	require.NoError(t, err)
	require.True(t, loser.Reserved.Equal(decimal.NewFromInt(100)))

	gift, err := fx.repo.GetGift("gift1")
	require.NoError(t, err)
	require.Equal(t, model.GiftAwarded, gift.Status)
	require.Equal(t, "user2", gift.WinnerID)
	require.True(t, gift.WinningAmount.Equal(decimal.NewFromInt(150)))

	round, err := fx.repo.GetRound("round1")
	require.NoError(t, err)
	require.Equal(t, model.RoundCompleted, round.Status)
	require.Equal(t, 3, round.UniqueBidders)
	require.True(t, round.HighestBid.Equal(decimal.NewFromInt(150)))
	require.True(t, round.LowestWinningBid.Equal(decimal.NewFromInt(150)))
}

// Final-round losers are refunded instead of carried.
func TestRounds_FinalRoundRefundsLosers(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	fx.startRound(t, "round1")

	now := time.Now().UTC()
	fx.placeBid(t, "bidA", "user1", "round1", 100, now)
	fx.placeBid(t, "bidB", "user2", "round1", 150, now.Add(time.Millisecond))

	_, err := fx.svc.End("round1")
	require.NoError(t, err)
	fx.startRound(t, "round2")

	fx.placeBid(t, "bidC", "user3", "round2", 300, now.Add(time.Second))

	settlement, err := fx.svc.End("round2")
	require.NoError(t, err)

	require.Len(t, settlement.Winners, 1)
	require.Equal(t, "bidC", settlement.Winners[0].Bid.BidID)
	require.Empty(t, settlement.Carried)
	require.Len(t, settlement.Refunded, 1)
	require.Nil(t, settlement.NextRoundNumber)

	// alice carried from round 1 and lost again, hold released in full
	refunded, err := fx.repo.GetUser("user1")
	require.NoError(t, err)
	require.True(t, refunded.Balance.Equal(decimal.NewFromInt(1000)))
	require.True(t, refunded.Reserved.IsZero())
	require.True(t, refunded.Stats.TotalRefunded.Equal(decimal.NewFromInt(100)))

	bid, err := fx.repo.GetBid("bidA")
	require.NoError(t, err)
	require.Equal(t, model.BidRefunded, bid.Status)
}

// Ending a completed round again settles nothing and moves no money.
func TestRounds_EndIsIdempotent(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	fx.startRound(t, "round1")

	fx.placeBid(t, "bidA", "user1", "round1", 100, time.Now().UTC())

	first, err := fx.svc.End("round1")
	require.NoError(t, err)
	require.Len(t, first.Winners, 1)

	winnerBefore, err := fx.repo.GetUser("user1")
	require.NoError(t, err)

	second, err := fx.svc.End("round1")
	require.NoError(t, err)
	require.Empty(t, second.Winners)
	require.Empty(t, second.Carried)
	require.Empty(t, second.Refunded)

	winnerAfter, err := fx.repo.GetUser("user1")
	require.NoError(t, err)
	require.True(t, winnerBefore.Balance.Equal(winnerAfter.Balance))
	require.Equal(t, winnerBefore.Stats.TotalWins, winnerAfter.Stats.TotalWins)
}

// An interrupted settlement resumes: already-settled bids are skipped, the
// rest is processed exactly once.
func TestRounds_ResumeInterruptedSettlement(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	fx.startRound(t, "round1")

	now := time.Now().UTC()
	fx.placeBid(t, "bidA", "user1", "round1", 100, now)
	fx.placeBid(t, "bidB", "user2", "round1", 150, now.Add(time.Millisecond))

	// emulate a crash after the winner settled but before the round
	// completed: winner fully processed, round stuck in processing
	require.NoError(t, fx.repo.MarkRoundProcessing("round1", now))
	require.NoError(t, fx.repo.AwardGift("gift1", "user2", "bidB", decimal.NewFromInt(150), "round1", now))
	_, err := fx.ledger.Confirm("user2", decimal.NewFromInt(150), nil, "auction win", "win-bidB")
	require.NoError(t, err)
	require.NoError(t, fx.repo.SetBidStatus("bidB", model.LiveBidStatuses, model.BidWon))

	settlement, err := fx.svc.End("round1")
	require.NoError(t, err)

	// the winner is not re-awarded, the loser is still carried
	require.Empty(t, settlement.Winners)
	require.Len(t, settlement.Carried, 1)
	require.Equal(t, "bidA", settlement.Carried[0].BidID)

	winner, err := fx.repo.GetUser("user2")
	require.NoError(t, err)
	require.True(t, winner.Balance.Equal(decimal.NewFromInt(850)))
	require.Equal(t, 1, winner.Stats.TotalWins)

	round, err := fx.repo.GetRound("round1")
	require.NoError(t, err)
	require.Equal(t, model.RoundCompleted, round.Status)
}

// A settlement that crashed between the gift award and the charge must
// resume the same gift slot, not take a second one.
func TestRounds_ResumeAfterAwardTakesSameGift(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	fx.startRound(t, "round1")

	now := time.Now().UTC()
	fx.placeBid(t, "bidA", "user1", "round1", 200, now)
	fx.placeBid(t, "bidB", "user2", "round1", 150, now.Add(time.Millisecond))

	// emulate a crash right after the gift was bound to the winning bid:
	// no charge yet, bid still live
	require.NoError(t, fx.repo.MarkRoundProcessing("round1", now))
	require.NoError(t, fx.repo.AwardGift("gift1", "user1", "bidA", decimal.NewFromInt(200), "round1", now))

	settlement, err := fx.svc.End("round1")
	require.NoError(t, err)

	require.Len(t, settlement.Winners, 1)
	require.Equal(t, "bidA", settlement.Winners[0].Bid.BidID)
	require.Equal(t, "gift1", settlement.Winners[0].Gift.GiftID)

	// exactly one gift for the winner, the other slot is untouched
	won, err := fx.repo.GiftsByWinner("user1")
	require.NoError(t, err)
	require.Len(t, won, 1)
	gift2, err := fx.repo.GetGift("gift2")
	require.NoError(t, err)
	require.Equal(t, model.GiftAvailable, gift2.Status)

	// charged exactly once
	winner, err := fx.repo.GetUser("user1")
	require.NoError(t, err)
	require.True(t, winner.Balance.Equal(decimal.NewFromInt(800)))
	require.True(t, winner.Reserved.IsZero())
	require.Equal(t, 1, winner.Stats.TotalWins)

	bid, err := fx.repo.GetBid("bidA")
	require.NoError(t, err)
	require.Equal(t, model.BidWon, bid.Status)
}

func TestRounds_RoundEndedNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockNotify := notifier.NewMockNotifier(ctrl)
	fx := newFixture(t, mockNotify)
	fx.startRound(t, "round1")

	fx.placeBid(t, "bidA", "user1", "round1", 100, time.Now().UTC())

	mockNotify.EXPECT().RoundEnded("auction1", 1, gomock.Any(), gomock.Any()).Do(
		func(_ string, _ int, winners []notifier.RoundWinner, nextRound *int) {
			require.Len(t, winners, 1)
			require.Equal(t, "alice", winners[0].Username)
			require.NotNil(t, nextRound)
			require.Equal(t, 2, *nextRound)
		})

	_, err := fx.svc.End("round1")
	require.NoError(t, err)
}

func TestRounds_TimeRemaining(t *testing.T) {
	fx := newFixture(t, notifier.Noop{})
	now := time.Now().UTC()
	require.NoError(t, fx.repo.StartRound("round1", now, now.Add(90*time.Second)))

	remaining, err := fx.svc.TimeRemaining("round1")
	require.NoError(t, err)
	require.Greater(t, remaining, 80)
	require.LessOrEqual(t, remaining, 90)

	// pending round 2 has no deadline yet
	remaining, err = fx.svc.TimeRemaining("round2")
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestRounds_CreateForAuction(t *testing.T) {
	repo := repository.NewMemoryRepo()
	svc := NewService(repo, ledger.NewService(repo), notifier.Noop{})

	created, err := svc.CreateForAuction("auction9", []model.RoundConfig{
		{RoundNumber: 1, ItemsCount: 2, DurationSeconds: 60},
		{RoundNumber: 2, ItemsCount: 3, DurationSeconds: 120},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, rd := range created {
		require.Equal(t, model.RoundPending, rd.Status)
		require.NotEmpty(t, rd.RoundID)
	}

	second, err := repo.RoundByNumber("auction9", 2)
	require.NoError(t, err)
	require.Equal(t, 3, second.ItemsCount)
	require.Equal(t, 120, second.DurationSeconds)
}
