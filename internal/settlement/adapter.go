// Package settlement is the boundary to the external payment processor. The
// ledger core only sees this contract; the processor's SDK stays behind it.
package settlement

import "context"

// PayoutInput describes one transfer of real currency to a connected
// account. IdempotencyKey must be stable per withdrawal request so a retried
// call cannot pay twice.
type PayoutInput struct {
	AmountMinorUnits     int64
	Currency             string
	DestinationAccountID string
	IdempotencyKey       string
}

type CustomerInput struct {
	Name   string
	Email  string
	UserID string
}

// Adapter is implemented by the payment processor client. CreatePayout is an
// at-most-once attempt: the caller decides the processed/failed branch from
// the returned reference or error and never leaves the outcome open.
type Adapter interface {
	CreatePayout(ctx context.Context, in PayoutInput) (transferReference string, err error)
	CreateCustomer(ctx context.Context, in CustomerInput) (customerID string, err error)
	CreateConnectedAccount(ctx context.Context) (accountID string, err error)
}
