package handler

import (
	"fmt"
	"net/http"
	"time"

	"gift-auction/internal/auctionService"
	"gift-auction/internal/biddingService"
	"gift-auction/internal/ledgerService"
	model "gift-auction/internal/models"
	"gift-auction/services/auction/helpers"
	"gift-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LedgerServiceInterface interface {
	Balance(userID string) (ledger.Balances, error)
	Deposit(userID string, amount decimal.Decimal, description, idempotencyKey string) (ledger.OperationResult, error)
	History(userID string, limit int) ([]model.Transaction, error)
}

type BiddingServiceInterface interface {
	PlaceBid(userID, auctionID string, amount decimal.Decimal) (model.Bid, error)
	Ranking(roundID string) ([]bidding.RankedBid, error)
	UserBids(userID string) ([]model.Bid, error)
}

type AuctionServiceInterface interface {
	Create(input auctions.CreateInput) (model.Auction, error)
	Start(auctionID string) (model.Auction, error)
	GetState(auctionID string) (auctions.State, error)
	List(status model.AuctionStatus) ([]model.Auction, error)
	Results(auctionID string) (auctions.Results, error)
	Gifts(auctionID string) ([]model.Gift, error)
	UserGifts(userID string) ([]model.Gift, error)
}

type UserStoreInterface interface {
	CreateUser(user model.User) error
	GetUser(userID string) (model.User, error)
}

type AuctionHandler struct {
	users   UserStoreInterface
	ledger  LedgerServiceInterface
	bids    BiddingServiceInterface
	auction AuctionServiceInterface
}

func NewAuctionHandler(users UserStoreInterface, ledgerSvc LedgerServiceInterface, bids BiddingServiceInterface, auctionSvc AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{users: users, ledger: ledgerSvc, bids: bids, auction: auctionSvc}
}

func (h *AuctionHandler) fail(c *gin.Context, handlerName string, err error, ctx map[string]any) {
	status, message := helpers.MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	if ctx == nil {
		ctx = map[string]any{}
	}
	ctx["error"] = err.Error()
	utils.Warn(handlerName+": request failed", ctx)
}

// CreateUserHandler handles POST /users
func (h *AuctionHandler) CreateUserHandler(c *gin.Context) {
	var req helpers.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateUserHandler", err)
		return
	}

	now := time.Now().UTC()
	user := model.User{
		UserID:    utils.GenerateID(),
		Username:  req.Username,
		Balance:   req.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.users.CreateUser(user); err != nil {
		h.fail(c, "CreateUserHandler", err, map[string]any{"username": req.Username})
		return
	}

	resp := helpers.UserResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		Balance:   user.Balance,
		Reserved:  user.Reserved,
		Available: user.Available(),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	utils.JSONResponse(c, http.StatusCreated, resp, "user created successfully")
	helpers.LogSuccess("CreateUserHandler", "user created successfully", map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

// GetBalanceHandler handles GET /users/:user_id/balance
func (h *AuctionHandler) GetBalanceHandler(c *gin.Context) {
	userID := c.Param("user_id")
	balances, err := h.ledger.Balance(userID)
	if err != nil {
		h.fail(c, "GetBalanceHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, balances, "balance retrieved successfully")
}

// DepositHandler handles POST /users/:user_id/deposit
func (h *AuctionHandler) DepositHandler(c *gin.Context) {
	userID := c.Param("user_id")
	var req helpers.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "DepositHandler", err)
		return
	}

	result, err := h.ledger.Deposit(userID, req.Amount, "balance deposit", req.IdempotencyKey)
	if err != nil {
		h.fail(c, "DepositHandler", err, map[string]any{"user_id": userID})
		return
	}

	resp := helpers.BalanceOperationResponse{
		TransactionID: result.TransactionID,
		Balance:       result.Balance,
		Reserved:      result.Reserved,
		Duplicate:     result.Duplicate,
	}
	utils.JSONResponse(c, http.StatusOK, resp, "deposit processed successfully")
	helpers.LogSuccess("DepositHandler", "deposit processed successfully", map[string]any{
		"user_id":   userID,
		"amount":    req.Amount.String(),
		"duplicate": result.Duplicate,
	})
}

// GetTransactionsHandler handles GET /users/:user_id/transactions
func (h *AuctionHandler) GetTransactionsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	transactions, err := h.ledger.History(userID, 100)
	if err != nil {
		h.fail(c, "GetTransactionsHandler", err, map[string]any{"user_id": userID})
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	utils.JSONResponse(c, http.StatusOK, transactions, "transactions retrieved successfully")
}

// GetUserBidsHandler handles GET /users/:user_id/bids
func (h *AuctionHandler) GetUserBidsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.bids.UserBids(userID)
	if err != nil {
		h.fail(c, "GetUserBidsHandler", err, map[string]any{"user_id": userID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.NewBidResponse(bid))
	}
	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
}

// GetUserGiftsHandler handles GET /users/:user_id/gifts
func (h *AuctionHandler) GetUserGiftsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	gifts, err := h.auction.UserGifts(userID)
	if err != nil {
		h.fail(c, "GetUserGiftsHandler", err, map[string]any{"user_id": userID})
		return
	}
	if gifts == nil {
		gifts = []model.Gift{}
	}
	utils.JSONResponse(c, http.StatusOK, gifts, "gifts retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	input := auctions.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		MinBidAmount:     req.MinBidAmount,
		BidStep:          req.BidStep,
		ScheduledStartAt: req.ScheduledStartAt,
		CreatedBy:        req.CreatedBy,
	}
	for _, r := range req.Rounds {
		input.RoundsConfig = append(input.RoundsConfig, model.RoundConfig{
			RoundNumber:     r.RoundNumber,
			ItemsCount:      r.ItemsCount,
			DurationSeconds: r.DurationSeconds,
		})
	}
	if req.AntiSniping != nil {
		input.AntiSniping = model.AntiSnipingConfig{
			Enabled:          req.AntiSniping.Enabled,
			ThresholdSeconds: req.AntiSniping.ThresholdSeconds,
			ExtensionSeconds: req.AntiSniping.ExtensionSeconds,
			MaxExtensions:    req.AntiSniping.MaxExtensions,
		}
	}

	auction, err := h.auction.Create(input)
	if err != nil {
		h.fail(c, "CreateAuctionHandler", err, map[string]any{"title": req.Title})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id":   auction.AuctionID,
		"total_rounds": auction.TotalRounds,
	})
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	status := model.AuctionStatus(c.Query("status"))
	list, err := h.auction.List(status)
	if err != nil {
		h.fail(c, "ListAuctionsHandler", err, map[string]any{"status": string(status)})
		return
	}
	if list == nil {
		list = []model.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, list, "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	state, err := h.auction.GetState(auctionID)
	if err != nil {
		h.fail(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, state, "auction retrieved successfully")
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.auction.Start(auctionID)
	if err != nil {
		h.fail(c, "StartAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, auction, "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started successfully", map[string]any{
		"auction_id": auctionID,
	})
}

// GetResultsHandler handles GET /auctions/:auction_id/results
func (h *AuctionHandler) GetResultsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	results, err := h.auction.Results(auctionID)
	if err != nil {
		h.fail(c, "GetResultsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, results, "results retrieved successfully")
}

// GetAuctionGiftsHandler handles GET /auctions/:auction_id/gifts
func (h *AuctionHandler) GetAuctionGiftsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	gifts, err := h.auction.Gifts(auctionID)
	if err != nil {
		h.fail(c, "GetAuctionGiftsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if gifts == nil {
		gifts = []model.Gift{}
	}
	utils.JSONResponse(c, http.StatusOK, gifts, "gifts retrieved successfully")
}

// PlaceBidHandler handles POST /bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.bids.PlaceBid(req.UserID, req.AuctionID, req.Amount)
	if err != nil {
		h.fail(c, "PlaceBidHandler", err, map[string]any{
			"user_id":    req.UserID,
			"auction_id": req.AuctionID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"user_id":    bid.UserID,
		"auction_id": bid.AuctionID,
		"amount":     bid.Amount.String(),
	})
}

// GetRankingHandler handles GET /rounds/:round_id/ranking
func (h *AuctionHandler) GetRankingHandler(c *gin.Context) {
	roundID := c.Param("round_id")
	ranking, err := h.bids.Ranking(roundID)
	if err != nil {
		h.fail(c, "GetRankingHandler", err, map[string]any{"round_id": roundID})
		return
	}
	if ranking == nil {
		ranking = []bidding.RankedBid{}
	}
	utils.JSONResponse(c, http.StatusOK, ranking, "ranking retrieved successfully")
}
