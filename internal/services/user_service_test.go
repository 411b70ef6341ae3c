package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository/memory"
	"github.com/hydit/hydit-backend/internal/services"
	"github.com/hydit/hydit-backend/internal/settlement"
)

func newUserService() (*services.UserService, *memory.Store) {
	store := memory.New()
	gate := authz.NewGate("subj-admin")
	return services.NewUserService(store, gate, settlement.Disabled{}), store
}

func TestSyncUserCreatesBuyer(t *testing.T) {
	svc, _ := newUserService()

	u, err := svc.SyncUser(context.Background(), "subj-1", "alice", "Alice A", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBuyer, u.Role)
	assert.Equal(t, int64(0), u.HydcoinBalance)

	// Second sync for the same subject is a no-op returning the same row.
	again, err := svc.SyncUser(context.Background(), "subj-1", "alice2", "Alice", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "alice", again.Username)
}

func TestSyncUserBootstrapsAdmin(t *testing.T) {
	svc, _ := newUserService()

	u, err := svc.SyncUser(context.Background(), "subj-admin", "root", "Root", "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestSyncUserValidation(t *testing.T) {
	svc, _ := newUserService()

	_, err := svc.SyncUser(context.Background(), "subj-1", "ab", "Short", "a@example.com")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.SyncUser(context.Background(), "subj-1", "alice", "Alice", "not-an-email")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestSetPinRequiresCurrentOnRotate(t *testing.T) {
	svc, store := newUserService()
	u, err := svc.SyncUser(context.Background(), "subj-1", "alice", "Alice", "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.SetPin(context.Background(), &u, "", "1234"))
	u, err = store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, u.TransactionPinHash)

	assert.ErrorIs(t, svc.SetPin(context.Background(), &u, "0000", "5678"), ledger.ErrNotAuthorized)
	assert.NoError(t, svc.SetPin(context.Background(), &u, "1234", "5678"))

	assert.ErrorIs(t, svc.SetPin(context.Background(), &u, "1234", "12"), ledger.ErrInvalidArgument)
}

func TestOnboardingDisabledWithoutProcessor(t *testing.T) {
	svc, _ := newUserService()
	u, err := svc.SyncUser(context.Background(), "subj-1", "alice", "Alice", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.OnboardStripeCustomer(context.Background(), &u)
	assert.ErrorIs(t, err, ledger.ErrSettlementFailed)
	_, err = svc.OnboardStripeAccount(context.Background(), &u)
	assert.ErrorIs(t, err, ledger.ErrSettlementFailed)
}
