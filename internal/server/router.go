package server

import (
	"gift-auction/internal/auctionService"
	"gift-auction/internal/biddingService"
	"gift-auction/internal/ledgerService"
	"gift-auction/internal/notifier"
	"gift-auction/internal/repository"
	handler "gift-auction/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(db repository.AuctionDB, ledgerSvc *ledger.Service, bidBook *bidding.BidBook, auctionSvc *auctions.Service, hub *notifier.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(db, ledgerSvc, bidBook, auctionSvc)

	users := router.Group("/users")
	{
		users.POST("", auctionHandler.CreateUserHandler)
		users.GET("/:user_id/balance", auctionHandler.GetBalanceHandler)
		users.POST("/:user_id/deposit", auctionHandler.DepositHandler)
		users.GET("/:user_id/transactions", auctionHandler.GetTransactionsHandler)
		users.GET("/:user_id/bids", auctionHandler.GetUserBidsHandler)
		users.GET("/:user_id/gifts", auctionHandler.GetUserGiftsHandler)
	}

	auctionRoutes := router.Group("/auctions")
	{
		auctionRoutes.POST("", auctionHandler.CreateAuctionHandler)
		auctionRoutes.GET("", auctionHandler.ListAuctionsHandler)
		auctionRoutes.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctionRoutes.POST("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctionRoutes.GET("/:auction_id/results", auctionHandler.GetResultsHandler)
		auctionRoutes.GET("/:auction_id/gifts", auctionHandler.GetAuctionGiftsHandler)
	}

	bids := router.Group("/bids")
	{
		bids.POST("", auctionHandler.PlaceBidHandler)
	}

	rounds := router.Group("/rounds")
	{
		rounds.GET("/:round_id/ranking", auctionHandler.GetRankingHandler)
	}

	if hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request)
		})
	}

	return router
}
