package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/repository/memory"
	"github.com/hydit/hydit-backend/internal/services"
	"github.com/hydit/hydit-backend/internal/settlement"
)

func newListingService(t *testing.T) (*services.ListingService, *services.UserService, *memory.Store) {
	t.Helper()
	store := memory.New()
	gate := authz.NewGate("subj-admin")
	users := services.NewUserService(store, gate, settlement.Disabled{})
	return services.NewListingService(store, gate), users, store
}

func producerUser(t *testing.T, users *services.UserService, store *memory.Store, subject, username string) models.User {
	t.Helper()
	u, err := users.SyncUser(context.Background(), subject, username, username, username+"@example.com")
	require.NoError(t, err)
	require.NoError(t, store.Users().SetRole(context.Background(), u.ID, models.RoleProducer))
	u.Role = models.RoleProducer
	return u
}

func TestCreateListingRequiresProducer(t *testing.T) {
	svc, users, _ := newListingService(t)
	buyer, err := users.SyncUser(context.Background(), "subj-1", "alice", "Alice", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &buyer, services.ListingInput{
		QuantityKg: 100, PricePerKg: 2, Location: "Gujarat", EnergySource: "solar",
	})
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

func TestCreateListingValidatesInput(t *testing.T) {
	svc, users, store := newListingService(t)
	prod := producerUser(t, users, store, "subj-p", "producer")

	cases := []services.ListingInput{
		{QuantityKg: 0, PricePerKg: 2, Location: "Gujarat", EnergySource: "solar"},
		{QuantityKg: 100, PricePerKg: -1, Location: "Gujarat", EnergySource: "solar"},
		{QuantityKg: 100, PricePerKg: 2, Location: "  ", EnergySource: "solar"},
		{QuantityKg: 100, PricePerKg: 2, Location: "Gujarat", EnergySource: ""},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), &prod, in)
		assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
	}

	l, err := svc.Create(context.Background(), &prod, services.ListingInput{
		QuantityKg: 100, PricePerKg: 2, Location: " Gujarat ", EnergySource: "solar",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, l.Status)
	assert.Equal(t, "Gujarat", l.Location)
	assert.Equal(t, prod.ID, l.ProducerID)
}

func TestUpdateListingOwnerOrAdmin(t *testing.T) {
	svc, users, store := newListingService(t)
	prod := producerUser(t, users, store, "subj-p", "producer")
	other := producerUser(t, users, store, "subj-q", "rival")
	admin, err := users.SyncUser(context.Background(), "subj-admin", "root", "Root", "root@example.com")
	require.NoError(t, err)

	l, err := svc.Create(context.Background(), &prod, services.ListingInput{
		QuantityKg: 100, PricePerKg: 2, Location: "Gujarat", EnergySource: "solar",
	})
	require.NoError(t, err)

	qty := int64(50)
	assert.ErrorIs(t, svc.Update(context.Background(), &other, l.ID, repository.ListingUpdate{QuantityKg: &qty}),
		ledger.ErrNotAuthorized)

	require.NoError(t, svc.Update(context.Background(), &prod, l.ID, repository.ListingUpdate{QuantityKg: &qty}))
	got, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.QuantityKg)

	inactive := models.ListingInactive
	require.NoError(t, svc.Update(context.Background(), &admin, l.ID, repository.ListingUpdate{Status: &inactive}))
}

func TestUpdateListingGuards(t *testing.T) {
	svc, users, store := newListingService(t)
	prod := producerUser(t, users, store, "subj-p", "producer")

	l, err := svc.Create(context.Background(), &prod, services.ListingInput{
		QuantityKg: 100, PricePerKg: 2, Location: "Gujarat", EnergySource: "solar",
	})
	require.NoError(t, err)

	neg := int64(-1)
	assert.ErrorIs(t, svc.Update(context.Background(), &prod, l.ID, repository.ListingUpdate{QuantityKg: &neg}),
		ledger.ErrInvalidArgument)
	bogus := models.ListingStatus("archived")
	assert.ErrorIs(t, svc.Update(context.Background(), &prod, l.ID, repository.ListingUpdate{Status: &bogus}),
		ledger.ErrInvalidArgument)

	soldOut := models.ListingSoldOut
	require.NoError(t, svc.Update(context.Background(), &prod, l.ID, repository.ListingUpdate{Status: &soldOut}))
	qty := int64(10)
	assert.ErrorIs(t, svc.Update(context.Background(), &prod, l.ID, repository.ListingUpdate{QuantityKg: &qty}),
		ledger.ErrInvalidState)
}

func TestMarketplaceShowsActiveWithProducer(t *testing.T) {
	svc, users, store := newListingService(t)
	prod := producerUser(t, users, store, "subj-p", "producer")

	active, err := svc.Create(context.Background(), &prod, services.ListingInput{
		QuantityKg: 100, PricePerKg: 2, Location: "Gujarat", EnergySource: "solar",
	})
	require.NoError(t, err)
	hidden, err := svc.Create(context.Background(), &prod, services.ListingInput{
		QuantityKg: 40, PricePerKg: 3, Location: "Rajasthan", EnergySource: "wind",
	})
	require.NoError(t, err)
	inactive := models.ListingInactive
	require.NoError(t, svc.Update(context.Background(), &prod, hidden.ID, repository.ListingUpdate{Status: &inactive}))

	views, err := svc.Marketplace(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, active.ID, views[0].ID)
	assert.Equal(t, "producer", views[0].ProducerUsername)

	mine, err := svc.ListMine(context.Background(), &prod)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestGetListingNotFound(t *testing.T) {
	svc, _, _ := newListingService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
