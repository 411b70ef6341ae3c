package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/repository/memory"
)

func seedUser(t *testing.T, m *memory.Store) models.User {
	t.Helper()
	u, err := m.Users().Create(context.Background(), models.User{
		SubjectID: "subj", Username: "alice", Email: "alice@example.com", Role: models.RoleBuyer,
	})
	require.NoError(t, err)
	return u
}

func TestWithTxRollsBackOnError(t *testing.T) {
	m := memory.New()
	u := seedUser(t, m)

	boom := errors.New("boom")
	err := m.WithTx(context.Background(), func(tx repository.Tx) error {
		if _, err := tx.Users().AdjustBalance(context.Background(), u.ID, 5); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.HydcoinBalance, "aborted tx must leave no trace")
}

func TestWithTxCommits(t *testing.T) {
	m := memory.New()
	u := seedUser(t, m)

	err := m.WithTx(context.Background(), func(tx repository.Tx) error {
		_, err := tx.Users().AdjustBalance(context.Background(), u.ID, 3)
		return err
	})
	require.NoError(t, err)

	got, err := m.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.HydcoinBalance)
}

func TestSelectForUpdateOrdersOldestFirst(t *testing.T) {
	m := memory.New()
	u := seedUser(t, m)

	old := models.Credit{
		ID: uuid.New(), OwnerID: u.ID, Status: models.CreditActive,
		Source:    models.NewPurchaseSource(uuid.New()),
		IssueDate: time.Now().Add(-time.Hour),
	}
	newer := models.Credit{
		ID: uuid.New(), OwnerID: u.ID, Status: models.CreditActive,
		Source:    models.NewPurchaseSource(uuid.New()),
		IssueDate: time.Now(),
	}
	require.NoError(t, m.Credits().MintBatch(context.Background(), []models.Credit{newer, old}))

	ids, err := m.Credits().SelectForUpdate(context.Background(), u.ID, models.CreditActive, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, old.ID, ids[0])
}

func TestFinalizeGuardsPending(t *testing.T) {
	m := memory.New()
	u := seedUser(t, m)

	req, err := m.Withdrawals().Create(context.Background(), models.WithdrawalRequest{
		UserID: u.ID, Amount: 2, Method: models.MethodUPI,
		Details: models.WithdrawalDetails{UpiID: "a@upi"},
		Status:  models.WithdrawalPending,
	})
	require.NoError(t, err)

	fin := repository.WithdrawalFinalize{Status: models.WithdrawalProcessed, ProcessedAt: time.Now()}
	require.NoError(t, m.Withdrawals().Finalize(context.Background(), req.ID, fin))

	// Second finalize finds no pending row.
	err = m.Withdrawals().Finalize(context.Background(), req.ID, fin)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
