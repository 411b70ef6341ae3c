package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
)

// ListingService manages marketplace offers; the credit movement for a
// purchase lives in the ledger, not here.
type ListingService struct {
	store repo.Store
	gate  *authz.Gate
}

func NewListingService(store repo.Store, gate *authz.Gate) *ListingService {
	return &ListingService{store: store, gate: gate}
}

type ListingInput struct {
	QuantityKg           int64
	PricePerKg           int64
	Location             string
	EnergySource         string
	CertificationDetails *string
}

func (in ListingInput) validate() error {
	if in.QuantityKg <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ledger.ErrInvalidArgument)
	}
	if in.PricePerKg < 0 {
		return fmt.Errorf("price cannot be negative: %w", ledger.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Location) == "" || strings.TrimSpace(in.EnergySource) == "" {
		return fmt.Errorf("location and energy source required: %w", ledger.ErrInvalidArgument)
	}
	return nil
}

func (s *ListingService) Create(ctx context.Context, actor *models.User, in ListingInput) (models.HydrogenListing, error) {
	if err := s.gate.RequireRole(actor, models.RoleProducer); err != nil {
		return models.HydrogenListing{}, err
	}
	if err := in.validate(); err != nil {
		return models.HydrogenListing{}, err
	}
	return s.store.Listings().Create(ctx, models.HydrogenListing{
		ProducerID:           actor.ID,
		QuantityKg:           in.QuantityKg,
		PricePerKg:           in.PricePerKg,
		Location:             strings.TrimSpace(in.Location),
		EnergySource:         strings.TrimSpace(in.EnergySource),
		CertificationDetails: in.CertificationDetails,
		Status:               models.ListingActive,
	})
}

// Update edits a listing's mutable fields. Only the owning producer or an
// admin may touch it; sold_out listings are closed for edits.
func (s *ListingService) Update(ctx context.Context, actor *models.User, id uuid.UUID, up repo.ListingUpdate) error {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return err
	}
	listing, err := s.store.Listings().GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	if listing.ProducerID != actor.ID {
		if err := s.gate.RequireAdmin(actor); err != nil {
			return err
		}
	}
	if listing.Status == models.ListingSoldOut {
		return fmt.Errorf("listing is sold out: %w", ledger.ErrInvalidState)
	}
	if up.QuantityKg != nil && *up.QuantityKg < 0 {
		return fmt.Errorf("quantity cannot be negative: %w", ledger.ErrInvalidArgument)
	}
	if up.PricePerKg != nil && *up.PricePerKg < 0 {
		return fmt.Errorf("price cannot be negative: %w", ledger.ErrInvalidArgument)
	}
	if up.Status != nil && !up.Status.IsValid() {
		return fmt.Errorf("unknown listing status: %w", ledger.ErrInvalidArgument)
	}
	return s.store.Listings().Update(ctx, id, up)
}

// Marketplace lists active offers with producer details for the public page.
func (s *ListingService) Marketplace(ctx context.Context) ([]models.ListingView, error) {
	listings, err := s.store.Listings().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.ListingView, 0, len(listings))
	names := map[uuid.UUID]models.User{}
	for _, l := range listings {
		v := models.ListingView{HydrogenListing: l, ProducerUsername: "unknown"}
		u, ok := names[l.ProducerID]
		if !ok {
			if loaded, err := s.store.Users().GetByID(ctx, l.ProducerID); err == nil {
				u, ok = loaded, true
				names[l.ProducerID] = loaded
			}
		}
		if ok {
			v.ProducerUsername = u.Username
			v.ProducerOrganization = u.Organization
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (models.HydrogenListing, error) {
	l, err := s.store.Listings().GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.HydrogenListing{}, ledger.ErrNotFound
	}
	return l, err
}

func (s *ListingService) ListMine(ctx context.Context, actor *models.User) ([]models.HydrogenListing, error) {
	if err := s.gate.RequireRole(actor, models.RoleProducer); err != nil {
		return nil, err
	}
	return s.store.Listings().ListByProducer(ctx, actor.ID)
}
