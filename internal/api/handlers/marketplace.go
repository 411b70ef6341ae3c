package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/api/validate"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/services"
)

type MarketplaceHandler struct {
	Listings *services.ListingService
	Ledger   *ledger.Service
	Users    *services.UserService
}

func NewMarketplaceHandler(listings *services.ListingService, l *ledger.Service, users *services.UserService) *MarketplaceHandler {
	return &MarketplaceHandler{Listings: listings, Ledger: l, Users: users}
}

func (h *MarketplaceHandler) actor(r *http.Request) (*models.User, error) {
	return (&UserHandler{Users: h.Users}).actor(r)
}

// Browse is public: no credit data leaks through listings.
func (h *MarketplaceHandler) Browse(w http.ResponseWriter, r *http.Request) {
	views, err := h.Listings.Marketplace(r.Context())
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

func (h *MarketplaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad listing id", nil)
		return
	}
	l, err := h.Listings.Get(r.Context(), id)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

type listingReq struct {
	QuantityKg           int64   `json:"quantity_kg" validate:"required,gt=0"`
	PricePerKg           int64   `json:"price_per_kg" validate:"gte=0"`
	Location             string  `json:"location" validate:"required"`
	EnergySource         string  `json:"energy_source" validate:"required"`
	CertificationDetails *string `json:"certification_details"`
}

func (h *MarketplaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req listingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	l, err := h.Listings.Create(r.Context(), actor, services.ListingInput{
		QuantityKg:           req.QuantityKg,
		PricePerKg:           req.PricePerKg,
		Location:             req.Location,
		EnergySource:         req.EnergySource,
		CertificationDetails: req.CertificationDetails,
	})
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, l)
}

type listingUpdateReq struct {
	QuantityKg           *int64  `json:"quantity_kg" validate:"omitempty,gte=0"`
	PricePerKg           *int64  `json:"price_per_kg" validate:"omitempty,gte=0"`
	Location             *string `json:"location"`
	EnergySource         *string `json:"energy_source"`
	CertificationDetails *string `json:"certification_details"`
	Status               *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *MarketplaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad listing id", nil)
		return
	}
	var req listingUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	up := repo.ListingUpdate{
		QuantityKg:           req.QuantityKg,
		PricePerKg:           req.PricePerKg,
		Location:             req.Location,
		EnergySource:         req.EnergySource,
		CertificationDetails: req.CertificationDetails,
	}
	if req.Status != nil {
		st := models.ListingStatus(*req.Status)
		up.Status = &st
	}
	if err := h.Listings.Update(r.Context(), actor, id, up); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *MarketplaceHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	listings, err := h.Listings.ListMine(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listings)
}

type purchaseReq struct {
	QuantityKg int64  `json:"quantity_kg" validate:"required,gt=0"`
	Pin        string `json:"pin"`
}

func (h *MarketplaceHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad listing id", nil)
		return
	}
	var req purchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	txn, err := h.Ledger.PurchaseListing(r.Context(), actor, id, req.QuantityKg, req.Pin)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, txn)
}
