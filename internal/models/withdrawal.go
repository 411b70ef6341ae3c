package models

import (
	"time"

	"github.com/google/uuid"
)

type WithdrawalMethod string

const (
	MethodUPI    WithdrawalMethod = "upi"
	MethodStripe WithdrawalMethod = "stripe"
)

func (m WithdrawalMethod) IsValid() bool { return m == MethodUPI || m == MethodStripe }

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalProcessed WithdrawalStatus = "processed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalProcessed || s == WithdrawalFailed
}

// WithdrawalDetails carries the method-specific payout destination.
type WithdrawalDetails struct {
	UpiID           string `json:"upiId,omitempty"`
	StripeAccountID string `json:"stripeAccountId,omitempty"`
}

// WithdrawalRequest is a pending cash-out. CreditIDs is a soft reservation:
// the listed credits stay owned by the user but sit in pending_withdrawal
// until a finalize sets a terminal status exactly once.
type WithdrawalRequest struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	Amount           int64             `json:"amount"`
	CreditIDs        []uuid.UUID       `json:"credit_ids"`
	Method           WithdrawalMethod  `json:"method"`
	Details          WithdrawalDetails `json:"details"`
	Status           WithdrawalStatus  `json:"status"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	StripeTransferID *string           `json:"stripe_transfer_id,omitempty"`
	ReviewedBy       *uuid.UUID        `json:"reviewed_by,omitempty"`
	ReviewNotes      *string           `json:"review_notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// WithdrawalView joins the requesting user's name for admin review lists.
type WithdrawalView struct {
	WithdrawalRequest
	Username string `json:"username"`
}
