package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/settlement"
)

// UserService owns identity sync, profile edits and payout onboarding.
type UserService struct {
	store repo.Store
	gate  *authz.Gate
	pay   settlement.Adapter
}

func NewUserService(store repo.Store, gate *authz.Gate, pay settlement.Adapter) *UserService {
	return &UserService{store: store, gate: gate, pay: pay}
}

// SyncUser upserts the row for an identity-provider subject on first login.
// The configured bootstrap subject becomes the deployment's admin; everyone
// else starts as a buyer.
func (s *UserService) SyncUser(ctx context.Context, subjectID, username, fullname, email string) (models.User, error) {
	if existing, err := s.store.Users().GetBySubject(ctx, subjectID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return models.User{}, err
	}

	u := models.User{
		SubjectID: strings.TrimSpace(subjectID),
		Username:  strings.TrimSpace(username),
		Fullname:  strings.TrimSpace(fullname),
		Email:     strings.TrimSpace(email),
		Role:      models.RoleBuyer,
	}
	if s.gate.IsBootstrapAdmin(u.SubjectID) {
		u.Role = models.RoleAdmin
	}
	if err := u.Validate(); err != nil {
		return models.User{}, fmt.Errorf("%v: %w", err, ledger.ErrInvalidArgument)
	}
	return s.store.Users().Create(ctx, u)
}

// Resolve loads the caller by identity subject for request handling.
func (s *UserService) Resolve(ctx context.Context, subjectID string) (models.User, error) {
	u, err := s.store.Users().GetBySubject(ctx, subjectID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, ledger.ErrNotAuthenticated
	}
	return u, err
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, ledger.ErrNotFound
	}
	return u, err
}

func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, up repo.ProfileUpdate) error {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return err
	}
	if up.Username != nil && len(strings.TrimSpace(*up.Username)) < 3 {
		return fmt.Errorf("username too short: %w", ledger.ErrInvalidArgument)
	}
	return s.store.Users().UpdateProfile(ctx, actor.ID, up)
}

// SetPin sets or rotates the transaction PIN. Rotation requires the current
// PIN.
func (s *UserService) SetPin(ctx context.Context, actor *models.User, currentPin, newPin string) error {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return err
	}
	if len(newPin) < 4 {
		return fmt.Errorf("pin too short: %w", ledger.ErrInvalidArgument)
	}
	if actor.TransactionPinHash != "" {
		if err := auth.VerifyPin(currentPin, actor.TransactionPinHash); err != nil {
			return fmt.Errorf("current pin mismatch: %w", ledger.ErrNotAuthorized)
		}
	}
	hash, err := auth.HashPin(newPin)
	if err != nil {
		return err
	}
	return s.store.Users().SetPinHash(ctx, actor.ID, hash)
}

// OnboardStripeCustomer creates the payment-processor customer used for
// credit top-ups, once per user.
func (s *UserService) OnboardStripeCustomer(ctx context.Context, actor *models.User) (string, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return "", err
	}
	if actor.StripeCustomerID != nil && *actor.StripeCustomerID != "" {
		return *actor.StripeCustomerID, nil
	}
	id, err := s.pay.CreateCustomer(ctx, settlement.CustomerInput{
		Name:   actor.Fullname,
		Email:  actor.Email,
		UserID: actor.ID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("customer onboarding: %w: %v", ledger.ErrSettlementFailed, err)
	}
	if err := s.store.Users().SetStripeCustomerID(ctx, actor.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

// OnboardStripeAccount links the connected account that stripe withdrawals
// pay out to, once per user.
func (s *UserService) OnboardStripeAccount(ctx context.Context, actor *models.User) (string, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return "", err
	}
	if actor.StripeAccountID != nil && *actor.StripeAccountID != "" {
		return *actor.StripeAccountID, nil
	}
	id, err := s.pay.CreateConnectedAccount(ctx)
	if err != nil {
		return "", fmt.Errorf("account onboarding: %w: %v", ledger.ErrSettlementFailed, err)
	}
	if err := s.store.Users().SetStripeAccountID(ctx, actor.ID, id); err != nil {
		return "", err
	}
	return id, nil
}
