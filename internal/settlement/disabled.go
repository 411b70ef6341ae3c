package settlement

import (
	"context"
	"errors"
)

var errDisabled = errors.New("settlement disabled: no api key configured")

// Disabled stands in when no processor key is configured. Every call fails,
// which the ledger turns into failed finalizes rather than stuck requests.
type Disabled struct{}

func (Disabled) CreatePayout(context.Context, PayoutInput) (string, error) {
	return "", errDisabled
}

func (Disabled) CreateCustomer(context.Context, CustomerInput) (string, error) {
	return "", errDisabled
}

func (Disabled) CreateConnectedAccount(context.Context) (string, error) {
	return "", errDisabled
}
