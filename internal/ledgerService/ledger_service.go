package ledger

import (
	"errors"
	"fmt"
	"time"

	"gift-auction/internal/auctionerrors"
	model "gift-auction/internal/models"
	"gift-auction/internal/repository"
	"gift-auction/utils"

	"github.com/shopspring/decimal"
)

// Service owns per-user balance and reservation accounting. Every operation
// is one guarded store mutation plus an immutable journal entry; it has no
// knowledge of auctions beyond the references it records for audit.
type Service struct {
	db repository.AuctionDB
}

// NewService creates a new ledger Service instance
func NewService(db repository.AuctionDB) *Service {
	return &Service{db: db}
}

// OperationResult reports the outcome of a balance operation.
type OperationResult struct {
	TransactionID string
	Balance       decimal.Decimal
	Reserved      decimal.Decimal
	// Duplicate is set when an idempotency key replayed a previously
	// completed operation; the balance was not mutated again.
	Duplicate bool
}

// Balances is a point-in-time view of a user's funds.
type Balances struct {
	Balance   decimal.Decimal `json:"balance"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

// Balance returns the user's current balance view.
func (s *Service) Balance(userID string) (Balances, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return Balances{}, fmt.Errorf("ledger: %w", err)
	}
	return Balances{Balance: user.Balance, Reserved: user.Reserved, Available: user.Available()}, nil
}

// replay returns the prior outcome for a completed idempotency key, if any.
func (s *Service) replay(idempotencyKey string) (OperationResult, bool, error) {
	if idempotencyKey == "" {
		return OperationResult{}, false, nil
	}
	prior, err := s.db.TransactionByIdempotencyKey(idempotencyKey)
	if errors.Is(err, auctionerrors.ErrNotFound) {
		return OperationResult{}, false, nil
	}
	if err != nil {
		return OperationResult{}, false, fmt.Errorf("ledger: lookup idempotency key: %w", err)
	}
	if prior.Status != model.TxCompleted {
		return OperationResult{}, false, fmt.Errorf("ledger: key %s has a failed transaction: %w", idempotencyKey, auctionerrors.ErrAlreadyProcessed)
	}
	return OperationResult{TransactionID: prior.TransactionID, Balance: prior.BalanceAfter, Duplicate: true}, true, nil
}

// Reserve holds amount against the user's balance iff available funds cover
// it. A previously completed idempotency key returns the prior outcome
// without mutating the balance again.
func (s *Service) Reserve(userID string, amount decimal.Decimal, refs []model.TransactionReference, description, idempotencyKey string) (OperationResult, error) {
	if !amount.IsPositive() {
		return OperationResult{}, fmt.Errorf("ledger: non-positive reserve amount: %w", auctionerrors.ErrValidation)
	}
	if prior, ok, err := s.replay(idempotencyKey); err != nil || ok {
		return prior, err
	}

	user, err := s.db.GetUser(userID)
	if err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	txType := model.TxBidPlace
	for _, ref := range refs {
		if ref.Type == model.RefBid {
			txType = model.TxBidRaise
		}
	}
	tx := s.newTx(userID, txType, model.TxDebit, amount, user.Balance, user.Balance, refs, description, idempotencyKey)
	// hold and journal entry land in one guarded mutation; two in-flight
	// requests with the same key cannot both reserve
	if err := s.db.ReserveAndJournal(userID, amount, tx); err != nil {
		if errors.Is(err, auctionerrors.ErrAlreadyProcessed) {
			if prior, ok, rerr := s.replay(idempotencyKey); rerr == nil && ok {
				return prior, nil
			}
		}
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	return OperationResult{
		TransactionID: tx.TransactionID,
		Balance:       user.Balance,
		Reserved:      user.Reserved.Add(amount),
	}, nil
}

// Confirm converts a reservation into spend: balance and reserved decrease
// together. A previously completed idempotency key returns the prior
// outcome without spending again, so an interrupted settlement can replay
// the confirm.
func (s *Service) Confirm(userID string, amount decimal.Decimal, refs []model.TransactionReference, description, idempotencyKey string) (OperationResult, error) {
	if prior, ok, err := s.replay(idempotencyKey); err != nil || ok {
		return prior, err
	}

	user, err := s.db.GetUser(userID)
	if err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	if err := s.db.ConfirmReserved(userID, amount); err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	tx, err := s.journal(userID, model.TxAuctionWin, model.TxDebit, amount, user.Balance, user.Balance.Sub(amount), refs, description, idempotencyKey)
	if err != nil {
		return OperationResult{}, err
	}

	if err := s.db.AddUserStats(userID, model.UserAuctionStats{TotalWins: 1, TotalSpent: amount}); err != nil {
		utils.Warn("ledger: failed to update win stats", map[string]any{"user_id": userID, "error": err.Error()})
	}

	return OperationResult{
		TransactionID: tx.TransactionID,
		Balance:       user.Balance.Sub(amount),
		Reserved:      user.Reserved.Sub(amount),
	}, nil
}

// Release returns a reservation to availability; the balance itself is
// untouched.
func (s *Service) Release(userID string, amount decimal.Decimal, refs []model.TransactionReference, description string) (OperationResult, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	if err := s.db.ReleaseReserved(userID, amount); err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	tx, err := s.journal(userID, model.TxBidRefund, model.TxCredit, amount, user.Balance, user.Balance, refs, description, "")
	if err != nil {
		return OperationResult{}, err
	}

	if err := s.db.AddUserStats(userID, model.UserAuctionStats{TotalRefunded: amount}); err != nil {
		utils.Warn("ledger: failed to update refund stats", map[string]any{"user_id": userID, "error": err.Error()})
	}

	return OperationResult{
		TransactionID: tx.TransactionID,
		Balance:       user.Balance,
		Reserved:      user.Reserved.Sub(amount),
	}, nil
}

// Deposit tops the balance up unconditionally. Callers may pass an opaque
// idempotency key to make retries safe.
func (s *Service) Deposit(userID string, amount decimal.Decimal, description, idempotencyKey string) (OperationResult, error) {
	if !amount.IsPositive() {
		return OperationResult{}, fmt.Errorf("ledger: non-positive deposit amount: %w", auctionerrors.ErrValidation)
	}
	if prior, ok, err := s.replay(idempotencyKey); err != nil || ok {
		return prior, err
	}

	user, err := s.db.GetUser(userID)
	if err != nil {
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	tx := s.newTx(userID, model.TxDeposit, model.TxCredit, amount, user.Balance, user.Balance.Add(amount), nil, description, idempotencyKey)
	if err := s.db.DepositAndJournal(userID, amount, tx); err != nil {
		if errors.Is(err, auctionerrors.ErrAlreadyProcessed) {
			if prior, ok, rerr := s.replay(idempotencyKey); rerr == nil && ok {
				return prior, nil
			}
		}
		return OperationResult{}, fmt.Errorf("ledger: %w", err)
	}

	return OperationResult{
		TransactionID: tx.TransactionID,
		Balance:       user.Balance.Add(amount),
		Reserved:      user.Reserved,
	}, nil
}

// History returns the user's most recent ledger entries.
func (s *Service) History(userID string, limit int) ([]model.Transaction, error) {
	txs, err := s.db.TransactionsByUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return txs, nil
}

func (s *Service) journal(userID string, txType model.TransactionType, direction model.TransactionDirection, amount, before, after decimal.Decimal, refs []model.TransactionReference, description, idempotencyKey string) (model.Transaction, error) {
	tx := s.newTx(userID, txType, direction, amount, before, after, refs, description, idempotencyKey)
	if err := s.db.CreateTransaction(tx); err != nil {
		return model.Transaction{}, fmt.Errorf("ledger: record transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) newTx(userID string, txType model.TransactionType, direction model.TransactionDirection, amount, before, after decimal.Decimal, refs []model.TransactionReference, description, idempotencyKey string) model.Transaction {
	now := time.Now().UTC()
	return model.Transaction{
		TransactionID:  utils.GenerateID(),
		UserID:         userID,
		Type:           txType,
		Direction:      direction,
		Amount:         amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		Status:         model.TxCompleted,
		References:     refs,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		ProcessedAt:    now,
	}
}
