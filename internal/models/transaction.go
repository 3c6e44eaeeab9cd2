package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance mutation.
type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxBidPlace   TransactionType = "bid_place"
	TxBidRaise   TransactionType = "bid_raise"
	TxBidRefund  TransactionType = "bid_refund"
	TxAuctionWin TransactionType = "auction_win"
)

// TransactionDirection marks whether funds enter or leave the balance.
type TransactionDirection string

const (
	TxCredit TransactionDirection = "credit"
	TxDebit  TransactionDirection = "debit"
)

// TransactionStatus is the terminal status of a ledger entry.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// ReferenceType names the kind of entity a transaction refers to.
type ReferenceType string

const (
	RefAuction ReferenceType = "auction"
	RefRound   ReferenceType = "round"
	RefBid     ReferenceType = "bid"
	RefGift    ReferenceType = "gift"
)

// TransactionReference links a ledger entry to a related entity for audit.
type TransactionReference struct {
	Type ReferenceType `json:"type"`
	ID   string        `json:"id"`
}

// Transaction is an immutable record of one balance mutation. It is never
// updated after creation.
type Transaction struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`

	Type      TransactionType      `json:"type"`
	Direction TransactionDirection `json:"direction"`

	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`

	Status     TransactionStatus      `json:"status"`
	References []TransactionReference `json:"references"`

	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	ProcessedAt time.Time `json:"processed_at"`
}
