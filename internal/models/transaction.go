package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TxnPurchase   TransactionType = "purchase"
	TxnTransfer   TransactionType = "transfer"
	TxnRetirement TransactionType = "retirement"
)

var validTransactionTypes = []TransactionType{TxnPurchase, TxnTransfer, TxnRetirement}

func (t TransactionType) IsValid() bool {
	for _, c := range validTransactionTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Transaction is an append-only audit record of a ledger event. It is used
// for history display only; balances are never computed from it.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	FromUserID *uuid.UUID      `json:"from_user_id,omitempty"` // nil for system-minted credits
	ToUserID   uuid.UUID       `json:"to_user_id"`
	Amount     int64           `json:"amount"`
	Type       TransactionType `json:"type"`
	CreditIDs  []uuid.UUID     `json:"credit_ids,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransactionView enriches a transaction with display names for history reads.
type TransactionView struct {
	Transaction
	FromUsername string `json:"from_username"`
	ToUsername   string `json:"to_username"`
	CallerIsFrom bool   `json:"caller_is_sender"`
}
