package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/transfer"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Stripe implements Adapter against the Stripe API. Payouts are Connect
// transfers to the seller's express account, keyed per withdrawal so a
// retried attempt cannot pay twice.
type Stripe struct {
	environment string
}

func NewStripe(apiKey, environment string) (*Stripe, error) {
	env, err := normalizeEnv(environment)
	if err != nil {
		return nil, err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	return &Stripe{environment: env}, nil
}

// Environment reports the normalized Stripe environment in use.
func (s *Stripe) Environment() string {
	return s.environment
}

func (s *Stripe) CreatePayout(ctx context.Context, in PayoutInput) (string, error) {
	params := &stripe.TransferParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(in.AmountMinorUnits),
		Currency:      stripe.String(in.Currency),
		Destination:   stripe.String(in.DestinationAccountID),
		TransferGroup: stripe.String(in.IdempotencyKey),
	}
	if in.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(in.IdempotencyKey)
	}

	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return tr.ID, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Name:  stripe.String(in.Name),
		Email: stripe.String(in.Email),
	}
	params.AddMetadata("userId", in.UserID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (s *Stripe) CreateConnectedAccount(ctx context.Context) (string, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Type: stripe.String(string(stripe.AccountTypeExpress)),
	}

	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe account: %w", err)
	}
	return acct.ID, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
