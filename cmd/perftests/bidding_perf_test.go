package perftests

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gift-auction/internal/biddingService"
	"gift-auction/internal/ledgerService"
	model "gift-auction/internal/models"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"

	"github.com/shopspring/decimal"
)

func seedRound(b *testing.B, repo *repository.MemoryRepo, users int) {
	b.Helper()
	for i := 0; i < users; i++ {
		if err := repo.CreateUser(model.User{
			UserID:   fmt.Sprintf("user_%d", i),
			Username: fmt.Sprintf("bench_user_%d", i),
			Balance:  decimal.NewFromInt(1_000_000_000),
		}); err != nil {
			b.Fatalf("failed to seed user: %v", err)
		}
	}
	if err := repo.CreateAuction(model.Auction{
		AuctionID:    "bench_auction",
		Title:        "benchmark auction",
		TotalRounds:  1,
		TotalItems:   10,
		Status:       model.AuctionDraft,
		MinBidAmount: decimal.NewFromInt(1),
		BidStep:      decimal.NewFromInt(1),
	}); err != nil {
		b.Fatalf("failed to seed auction: %v", err)
	}
	if err := repo.CreateRounds([]model.Round{{
		RoundID:         "bench_round",
		AuctionID:       "bench_auction",
		RoundNumber:     1,
		ItemsCount:      10,
		Status:          model.RoundPending,
		DurationSeconds: 3600,
	}}); err != nil {
		b.Fatalf("failed to seed round: %v", err)
	}
	now := time.Now().UTC()
	if err := repo.ActivateAuction("bench_auction", now); err != nil {
		b.Fatalf("failed to activate auction: %v", err)
	}
	if err := repo.StartRound("bench_round", now, now.Add(time.Hour)); err != nil {
		b.Fatalf("failed to start round: %v", err)
	}
}

// Benchmark 1: PlaceBid - one bid per user, reservations don't contend
func Benchmark_PlaceBid_DistinctUsers(b *testing.B) {
	repo := repository.NewMemoryRepo()
	seedRound(b, repo, b.N)
	book := bidding.NewBidBook(repo, ledger.NewService(repo), notifier.Noop{})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		userID := fmt.Sprintf("user_%d", i)
		amount := decimal.NewFromInt(int64(10 + i%100))
		if _, err := book.PlaceBid(userID, "bench_auction", amount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - many goroutines hammering one shared round
func Benchmark_PlaceBid_ConcurrentSharedRound(b *testing.B) {
	const users = 512

	repo := repository.NewMemoryRepo()
	seedRound(b, repo, users)
	book := bidding.NewBidBook(repo, ledger.NewService(repo), notifier.Noop{})

	var counter int64

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := atomic.AddInt64(&counter, 1)
			userID := fmt.Sprintf("user_%d", n%users)
			// ever-growing amounts so repeat calls are valid raises
			amount := decimal.NewFromInt(10 + n*2)
			_, _ = book.PlaceBid(userID, "bench_auction", amount)
		}
	})
}

// Benchmark 3: Ranking - recomputing the leaderboard of a busy round
func Benchmark_Ranking(b *testing.B) {
	const users = 1000

	repo := repository.NewMemoryRepo()
	seedRound(b, repo, users)
	book := bidding.NewBidBook(repo, ledger.NewService(repo), notifier.Noop{})

	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("user_%d", i)
		amount := decimal.NewFromInt(int64(10 + i))
		if _, err := book.PlaceBid(userID, "bench_auction", amount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := book.Ranking("bench_round"); err != nil {
			b.Fatalf("failed to rank round: %v", err)
		}
	}
}
