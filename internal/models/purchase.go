package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase records one fulfilled token top-up. ExternalPaymentID is the
// payment processor's reference and the idempotency key: webhooks retry, so
// fulfillment keyed on it must mint at most once.
type Purchase struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	ExternalPaymentID string    `json:"external_payment_id"`
	Credits           int64     `json:"credits"`
	CreatedAt         time.Time `json:"created_at"`
}
