package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gift-auction/internal/auctionerrors"
	model "gift-auction/internal/models"

	"github.com/shopspring/decimal"
)

// userRecord carries its own mutex so balance mutations for one user are
// serialized without contending with other users' reservations.
type userRecord struct {
	mu   sync.Mutex
	user model.User
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Guarded mutations emulate a store with atomic conditional updates on a
// single record.
type MemoryRepo struct {
	mu       sync.RWMutex
	users    map[string]*userRecord
	auctions map[string]*model.Auction
	rounds   map[string]*model.Round
	bids     map[string]*model.Bid
	gifts    map[string]*model.Gift
	txs      map[string]*model.Transaction

	// uniqueness indexes
	roundByNumber  map[string]string // auctionID/roundNumber -> roundID
	bidByRoundUser map[string]string // roundID/userID -> bidID
	txByIdemKey    map[string]string // idempotency key -> transactionID
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:          make(map[string]*userRecord),
		auctions:       make(map[string]*model.Auction),
		rounds:         make(map[string]*model.Round),
		bids:           make(map[string]*model.Bid),
		gifts:          make(map[string]*model.Gift),
		txs:            make(map[string]*model.Transaction),
		roundByNumber:  make(map[string]string),
		bidByRoundUser: make(map[string]string),
		txByIdemKey:    make(map[string]string),
	}
}

func roundNumberKey(auctionID string, roundNumber int) string {
	return fmt.Sprintf("%s/%d", auctionID, roundNumber)
}

func bidUserKey(roundID, userID string) string {
	return roundID + "/" + userID
}

func cloneBid(b model.Bid) model.Bid {
	out := b
	out.History = append([]model.BidHistoryEntry(nil), b.History...)
	return out
}

func cloneAuction(a model.Auction) model.Auction {
	out := a
	out.RoundsConfig = append([]model.RoundConfig(nil), a.RoundsConfig...)
	return out
}

func cloneTx(t model.Transaction) model.Transaction {
	out := t
	out.References = append([]model.TransactionReference(nil), t.References...)
	return out
}

// --- UserStore ---

func (r *MemoryRepo) CreateUser(user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok {
		return fmt.Errorf("create user %s: %w", user.UserID, auctionerrors.ErrConcurrentModification)
	}
	for _, rec := range r.users {
		if rec.user.Username == user.Username {
			return fmt.Errorf("create user %s: username taken: %w", user.UserID, auctionerrors.ErrValidation)
		}
	}
	r.users[user.UserID] = &userRecord{user: user}
	return nil
}

func (r *MemoryRepo) userRec(userID string) (*userRecord, error) {
	r.mu.RLock()
	rec, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, auctionerrors.ErrNotFound)
	}
	return rec, nil
}

func (r *MemoryRepo) GetUser(userID string) (model.User, error) {
	rec, err := r.userRec(userID)
	if err != nil {
		return model.User{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user, nil
}

func (r *MemoryRepo) GetUserByUsername(username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.users {
		if rec.user.Username == username {
			return rec.user, nil
		}
	}
	return model.User{}, fmt.Errorf("user %q: %w", username, auctionerrors.ErrNotFound)
}

func (r *MemoryRepo) ReleaseReserved(userID string, amount decimal.Decimal) error {
	rec, err := r.userRec(userID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.user.Reserved.LessThan(amount) {
		return fmt.Errorf("release %s for user %s: reserved below amount: %w", amount, userID, auctionerrors.ErrConcurrentModification)
	}
	rec.user.Reserved = rec.user.Reserved.Sub(amount)
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) ConfirmReserved(userID string, amount decimal.Decimal) error {
	rec, err := r.userRec(userID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.user.Reserved.LessThan(amount) || rec.user.Balance.LessThan(amount) {
		return fmt.Errorf("confirm %s for user %s: reserved below amount: %w", amount, userID, auctionerrors.ErrConcurrentModification)
	}
	rec.user.Balance = rec.user.Balance.Sub(amount)
	rec.user.Reserved = rec.user.Reserved.Sub(amount)
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) ReserveAndJournal(userID string, amount decimal.Decimal, tx model.Transaction) error {
	rec, err := r.userRec(userID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.user.Available().LessThan(amount) {
		return fmt.Errorf("reserve %s for user %s: %w", amount, userID, auctionerrors.ErrInsufficientFunds)
	}
	// claim the key before touching the balance; a rejected insert must
	// not leave a hold behind
	if err := r.insertTx(tx); err != nil {
		return err
	}
	rec.user.Reserved = rec.user.Reserved.Add(amount)
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) DepositAndJournal(userID string, amount decimal.Decimal, tx model.Transaction) error {
	rec, err := r.userRec(userID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := r.insertTx(tx); err != nil {
		return err
	}
	rec.user.Balance = rec.user.Balance.Add(amount)
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) AddUserStats(userID string, delta model.UserAuctionStats) error {
	rec, err := r.userRec(userID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.user.Stats.TotalBidsPlaced += delta.TotalBidsPlaced
	rec.user.Stats.TotalWins += delta.TotalWins
	rec.user.Stats.TotalSpent = rec.user.Stats.TotalSpent.Add(delta.TotalSpent)
	rec.user.Stats.TotalRefunded = rec.user.Stats.TotalRefunded.Add(delta.TotalRefunded)
	return nil
}

// --- AuctionStore ---

func (r *MemoryRepo) CreateAuction(auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, auctionerrors.ErrConcurrentModification)
	}
	a := cloneAuction(auction)
	r.auctions[auction.AuctionID] = &a
	return nil
}

func (r *MemoryRepo) GetAuction(auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	return cloneAuction(*a), nil
}

func (r *MemoryRepo) ListAuctions(status model.AuctionStatus) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, cloneAuction(*a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ActiveAuctions() ([]model.Auction, error) {
	return r.ListAuctions(model.AuctionActive)
}

func (r *MemoryRepo) AuctionsScheduledBefore(t time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.AuctionScheduled && a.ScheduledStartAt != nil && !a.ScheduledStartAt.After(t) {
			out = append(out, cloneAuction(*a))
		}
	}
	return out, nil
}

func (r *MemoryRepo) ActivateAuction(auctionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	switch a.Status {
	case model.AuctionDraft, model.AuctionScheduled:
	default:
		return fmt.Errorf("activate auction %s from %s: %w", auctionID, a.Status, auctionerrors.ErrInvalidState)
	}
	started := now
	a.Status = model.AuctionActive
	a.CurrentRound = 1
	a.StartedAt = &started
	a.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) AdvanceAuctionRound(auctionID string, roundNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	if a.Status != model.AuctionActive {
		return fmt.Errorf("advance auction %s from %s: %w", auctionID, a.Status, auctionerrors.ErrInvalidState)
	}
	if roundNumber != a.CurrentRound+1 {
		return fmt.Errorf("advance auction %s to round %d from %d: %w", auctionID, roundNumber, a.CurrentRound, auctionerrors.ErrConcurrentModification)
	}
	a.CurrentRound = roundNumber
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) CompleteAuction(auctionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	if a.Status != model.AuctionActive {
		return fmt.Errorf("complete auction %s from %s: %w", auctionID, a.Status, auctionerrors.ErrInvalidState)
	}
	ended := now
	a.Status = model.AuctionCompleted
	a.EndedAt = &ended
	a.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) CancelAuction(auctionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	}
	switch a.Status {
	case model.AuctionDraft, model.AuctionScheduled:
	default:
		return fmt.Errorf("cancel auction %s from %s: %w", auctionID, a.Status, auctionerrors.ErrInvalidState)
	}
	ended := now
	a.Status = model.AuctionCancelled
	a.EndedAt = &ended
	a.UpdatedAt = now
	return nil
}

// --- RoundStore ---

func (r *MemoryRepo) CreateRounds(rounds []model.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rd := range rounds {
		key := roundNumberKey(rd.AuctionID, rd.RoundNumber)
		if _, ok := r.roundByNumber[key]; ok {
			return fmt.Errorf("create round %d for auction %s: %w", rd.RoundNumber, rd.AuctionID, auctionerrors.ErrConcurrentModification)
		}
	}
	for _, rd := range rounds {
		rd := rd
		r.rounds[rd.RoundID] = &rd
		r.roundByNumber[roundNumberKey(rd.AuctionID, rd.RoundNumber)] = rd.RoundID
	}
	return nil
}

func (r *MemoryRepo) GetRound(roundID string) (model.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return model.Round{}, fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	return *rd, nil
}

func (r *MemoryRepo) RoundByNumber(auctionID string, roundNumber int) (model.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.roundByNumber[roundNumberKey(auctionID, roundNumber)]
	if !ok {
		return model.Round{}, fmt.Errorf("round %d of auction %s: %w", roundNumber, auctionID, auctionerrors.ErrNotFound)
	}
	return *r.rounds[id], nil
}

func (r *MemoryRepo) RoundsByAuction(auctionID string) ([]model.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Round
	for _, rd := range r.rounds {
		if rd.AuctionID == auctionID {
			out = append(out, *rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *MemoryRepo) ActiveRound(auctionID string) (model.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rd := range r.rounds {
		if rd.AuctionID == auctionID && rd.Status == model.RoundActive {
			return *rd, nil
		}
	}
	return model.Round{}, fmt.Errorf("active round of auction %s: %w", auctionID, auctionerrors.ErrNotFound)
}

func (r *MemoryRepo) StartRound(roundID string, now, scheduledEndAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	if rd.Status != model.RoundPending {
		return fmt.Errorf("start round %s from %s: %w", roundID, rd.Status, auctionerrors.ErrInvalidState)
	}
	started, end := now, scheduledEndAt
	rd.Status = model.RoundActive
	rd.StartedAt = &started
	rd.ScheduledEndAt = &end
	rd.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) MarkRoundProcessing(roundID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	if rd.Status != model.RoundActive {
		return fmt.Errorf("mark round %s processing from %s: %w", roundID, rd.Status, auctionerrors.ErrConcurrentModification)
	}
	rd.Status = model.RoundProcessing
	rd.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) CompleteRound(roundID string, now time.Time, stats model.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	if rd.Status != model.RoundProcessing {
		return fmt.Errorf("complete round %s from %s: %w", roundID, rd.Status, auctionerrors.ErrConcurrentModification)
	}
	ended := now
	rd.Status = model.RoundCompleted
	rd.ActualEndAt = &ended
	rd.UniqueBidders = stats.UniqueBidders
	rd.HighestBid = stats.HighestBid
	rd.LowestWinningBid = stats.LowestWinningBid
	rd.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) ExtendRound(roundID string, extension time.Duration, maxExtensions int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return false, fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	if rd.Status != model.RoundActive || rd.ScheduledEndAt == nil {
		return false, nil
	}
	if rd.ExtensionsUsed >= maxExtensions {
		return false, nil
	}
	extended := rd.ScheduledEndAt.Add(extension)
	last := now
	rd.ScheduledEndAt = &extended
	rd.ExtensionsUsed++
	rd.LastExtendedAt = &last
	rd.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) DueRounds(now time.Time) ([]model.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Round
	for _, rd := range r.rounds {
		switch rd.Status {
		case model.RoundActive:
			if rd.ScheduledEndAt != nil && !rd.ScheduledEndAt.After(now) {
				out = append(out, *rd)
			}
		case model.RoundProcessing:
			// settlement was interrupted, retry
			out = append(out, *rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundID < out[j].RoundID })
	return out, nil
}

func (r *MemoryRepo) IncrementRoundBids(roundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %s: %w", roundID, auctionerrors.ErrNotFound)
	}
	rd.TotalBids++
	rd.UpdatedAt = time.Now().UTC()
	return nil
}

// AuctionIDForRound resolves a round to its auction, for event routing.
func (r *MemoryRepo) AuctionIDForRound(roundID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return "", false
	}
	return rd.AuctionID, true
}

// --- BidStore ---

func (r *MemoryRepo) CreateBid(bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bids[bid.BidID]; ok {
		return fmt.Errorf("create bid %s: %w", bid.BidID, auctionerrors.ErrConcurrentModification)
	}
	key := bidUserKey(bid.RoundID, bid.UserID)
	if _, ok := r.bidByRoundUser[key]; ok {
		return fmt.Errorf("create bid for user %s in round %s: bid exists: %w", bid.UserID, bid.RoundID, auctionerrors.ErrConcurrentModification)
	}
	b := cloneBid(bid)
	r.bids[bid.BidID] = &b
	r.bidByRoundUser[key] = bid.BidID
	return nil
}

func (r *MemoryRepo) GetBid(bidID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bids[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("bid %s: %w", bidID, auctionerrors.ErrNotFound)
	}
	return cloneBid(*b), nil
}

func (r *MemoryRepo) BidByUserAndRound(userID, roundID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bidByRoundUser[bidUserKey(roundID, userID)]
	if !ok {
		return model.Bid{}, fmt.Errorf("bid of user %s in round %s: %w", userID, roundID, auctionerrors.ErrNotFound)
	}
	return cloneBid(*r.bids[id]), nil
}

// rankedLess orders bids by amount descending, earliest placement first on
// equal amounts, bid id as the final reproducibility tie-break.
func rankedLess(a, b model.Bid) bool {
	if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
		return cmp > 0
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.BidID < b.BidID
}

func (r *MemoryRepo) BidsByRound(roundID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.RoundID == roundID {
			out = append(out, cloneBid(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return rankedLess(out[i], out[j]) })
	return out, nil
}

func (r *MemoryRepo) BidsByAuction(auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			out = append(out, cloneBid(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return rankedLess(out[i], out[j]) })
	return out, nil
}

func (r *MemoryRepo) BidsByUser(userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.UserID == userID {
			out = append(out, cloneBid(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) RaiseBid(bidID string, expect, newAmount decimal.Decimal, entry model.BidHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, auctionerrors.ErrNotFound)
	}
	if !b.Amount.Equal(expect) {
		return fmt.Errorf("raise bid %s: amount changed: %w", bidID, auctionerrors.ErrConcurrentModification)
	}
	now := time.Now().UTC()
	b.Amount = newAmount
	b.History = append(b.History, entry)
	b.LastUpdatedAt = now
	b.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) SetBidStatus(bidID string, from []model.BidStatus, to model.BidStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, auctionerrors.ErrNotFound)
	}
	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("set bid %s status %s from %s: %w", bidID, to, b.Status, auctionerrors.ErrConcurrentModification)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) CarryBid(bidID, fromRoundID, toRoundID string, entry model.BidHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, auctionerrors.ErrNotFound)
	}
	if b.RoundID != fromRoundID || !b.Status.IsLive() {
		return fmt.Errorf("carry bid %s from round %s: %w", bidID, fromRoundID, auctionerrors.ErrConcurrentModification)
	}
	newKey := bidUserKey(toRoundID, b.UserID)
	if _, taken := r.bidByRoundUser[newKey]; taken {
		return fmt.Errorf("carry bid %s to round %s: slot taken: %w", bidID, toRoundID, auctionerrors.ErrConcurrentModification)
	}
	delete(r.bidByRoundUser, bidUserKey(fromRoundID, b.UserID))
	r.bidByRoundUser[newKey] = bidID

	now := time.Now().UTC()
	b.RoundID = toRoundID
	b.CarriedFromRoundID = fromRoundID
	b.CarriedToRoundID = toRoundID
	b.Status = model.BidActive
	b.CarryCount++
	b.History = append(b.History, entry)
	b.LastUpdatedAt = now
	b.UpdatedAt = now
	return nil
}

func (r *MemoryRepo) SetBidRank(bidID string, rank int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bidID, auctionerrors.ErrNotFound)
	}
	b.Rank = rank
	return nil
}

// --- GiftStore ---

func (r *MemoryRepo) CreateGifts(gifts []model.Gift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range gifts {
		if _, ok := r.gifts[g.GiftID]; ok {
			return fmt.Errorf("create gift %s: %w", g.GiftID, auctionerrors.ErrConcurrentModification)
		}
	}
	for _, g := range gifts {
		g := g
		r.gifts[g.GiftID] = &g
	}
	return nil
}

func (r *MemoryRepo) GetGift(giftID string) (model.Gift, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gifts[giftID]
	if !ok {
		return model.Gift{}, fmt.Errorf("gift %s: %w", giftID, auctionerrors.ErrNotFound)
	}
	return *g, nil
}

func (r *MemoryRepo) GiftsByAuction(auctionID string) ([]model.Gift, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Gift
	for _, g := range r.gifts {
		if g.AuctionID == auctionID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GiftNumber < out[j].GiftNumber })
	return out, nil
}

func (r *MemoryRepo) GiftsByWinner(userID string) ([]model.Gift, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Gift
	for _, g := range r.gifts {
		if g.WinnerID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GiftNumber < out[j].GiftNumber })
	return out, nil
}

func (r *MemoryRepo) AwardGift(giftID, winnerID, bidID string, amount decimal.Decimal, roundID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gifts[giftID]
	if !ok {
		return fmt.Errorf("gift %s: %w", giftID, auctionerrors.ErrNotFound)
	}
	if g.Status != model.GiftAvailable {
		return fmt.Errorf("award gift %s from %s: %w", giftID, g.Status, auctionerrors.ErrConcurrentModification)
	}
	awarded := now
	g.Status = model.GiftAwarded
	g.WinnerID = winnerID
	g.WinningBidID = bidID
	g.WinningAmount = amount
	g.RoundID = roundID
	g.AwardedAt = &awarded
	g.UpdatedAt = now
	return nil
}

// --- TransactionStore ---

func (r *MemoryRepo) CreateTransaction(tx model.Transaction) error {
	return r.insertTx(tx)
}

func (r *MemoryRepo) insertTx(tx model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[tx.TransactionID]; ok {
		return fmt.Errorf("create transaction %s: %w", tx.TransactionID, auctionerrors.ErrConcurrentModification)
	}
	if tx.IdempotencyKey != "" {
		if _, ok := r.txByIdemKey[tx.IdempotencyKey]; ok {
			return fmt.Errorf("create transaction %s: idempotency key reused: %w", tx.TransactionID, auctionerrors.ErrAlreadyProcessed)
		}
		r.txByIdemKey[tx.IdempotencyKey] = tx.TransactionID
	}
	t := cloneTx(tx)
	r.txs[tx.TransactionID] = &t
	return nil
}

func (r *MemoryRepo) TransactionByIdempotencyKey(key string) (model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.txByIdemKey[key]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction with key %s: %w", key, auctionerrors.ErrNotFound)
	}
	return cloneTx(*r.txs[id]), nil
}

func (r *MemoryRepo) TransactionsByUser(userID string, limit int) ([]model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Transaction
	for _, t := range r.txs {
		if t.UserID == userID {
			out = append(out, cloneTx(*t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
