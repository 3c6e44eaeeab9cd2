package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gift-auction/internal/auctionService"
	"gift-auction/internal/biddingService"
	"gift-auction/internal/config"
	"gift-auction/internal/ledgerService"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	"gift-auction/internal/roundService"
	"gift-auction/internal/scheduler"
	"gift-auction/internal/server"
	"gift-auction/utils"
)

func main() {
	cfg := config.Load()
	utils.SetLevel(cfg.LogLevel)

	repo := repository.NewMemoryRepo()
	hub := notifier.NewHub(repo)

	ledgerSvc := ledger.NewService(repo)
	bidBook := bidding.NewBidBook(repo, ledgerSvc, hub)
	roundSvc := rounds.NewService(repo, ledgerSvc, hub)
	auctionSvc := auctions.NewService(repo, roundSvc, bidBook, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(repo, auctionSvc, roundSvc, bidBook, hub, cfg.SchedulerInterval)
	go sched.Run(ctx)

	router := server.SetupRouter(repo, ledgerSvc, bidBook, auctionSvc, hub)

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	utils.Info("starting auction server", map[string]any{"addr": addr})
	if err := router.Run(addr); err != nil {
		utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
	}
}
