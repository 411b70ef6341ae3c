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
)

type appFixture struct {
	store *memory.Store
	svc   *services.ApplicationService
	admin models.User
	user  models.User
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	store := memory.New()
	gate := authz.NewGate("subj-admin")
	svc := services.NewApplicationService(store, gate)

	admin, err := store.Users().Create(context.Background(), models.User{
		SubjectID: "subj-admin", Username: "root", Email: "root@example.com", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	user, err := store.Users().Create(context.Background(), models.User{
		SubjectID: "subj-1", Username: "alice", Email: "alice@example.com", Role: models.RoleBuyer,
	})
	require.NoError(t, err)
	return &appFixture{store: store, svc: svc, admin: admin, user: user}
}

func details() models.ProducerDetails {
	return models.ProducerDetails{
		CompanyName:        "GreenH2 Ltd",
		RegistrationNumber: "REG-42",
		BusinessAddress:    "1 Electrolyser Way",
		ContactPerson:      "Alice",
	}
}

func TestApplyAndApprovePromotesProducer(t *testing.T) {
	f := newAppFixture(t)

	app, err := f.svc.Apply(context.Background(), &f.user, details(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, app.Status)

	reviewed, err := f.svc.Review(context.Background(), &f.admin, app.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, f.admin.ID, *reviewed.ReviewedBy)

	u, err := f.store.Users().GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleProducer, u.Role)
}

func TestApplyRejectsDuplicates(t *testing.T) {
	f := newAppFixture(t)

	_, err := f.svc.Apply(context.Background(), &f.user, details(), nil)
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), &f.user, details(), nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestReviewIsAdminOnlyAndOneShot(t *testing.T) {
	f := newAppFixture(t)

	app, err := f.svc.Apply(context.Background(), &f.user, details(), nil)
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), &f.user, app.ID, true, nil)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	notes := "docs incomplete"
	rejected, err := f.svc.Review(context.Background(), &f.admin, app.ID, false, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, rejected.Status)

	// No role change on rejection, and the decision is final.
	u, err := f.store.Users().GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleBuyer, u.Role)

	_, err = f.svc.Review(context.Background(), &f.admin, app.ID, true, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	// A rejected applicant may apply again.
	_, err = f.svc.Apply(context.Background(), &f.user, details(), nil)
	require.NoError(t, err)
}
