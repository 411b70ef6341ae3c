package ledger

import (
	"errors"

	"github.com/hydit/hydit-backend/internal/authz"
)

// Error taxonomy for ledger operations. Handlers map these to HTTP codes in
// one place; everything else wraps them with context via fmt.Errorf("%w").
var (
	// Authentication and authorization sentinels are shared with the gate so
	// errors.Is works regardless of which layer produced them.
	ErrNotAuthenticated = authz.ErrNotAuthenticated
	ErrNotAuthorized    = authz.ErrNotAuthorized

	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState signals an operation against a request or credit that
	// is already terminal or otherwise incompatible, e.g. finalizing a
	// withdrawal twice.
	ErrInvalidState = errors.New("invalid state")

	ErrSettlementFailed = errors.New("settlement failed")
	ErrInvalidArgument  = errors.New("invalid argument")
)
