package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/api/validate"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/services"
)

type ApplicationHandler struct {
	Applications *services.ApplicationService
	Users        *services.UserService
}

func NewApplicationHandler(apps *services.ApplicationService, users *services.UserService) *ApplicationHandler {
	return &ApplicationHandler{Applications: apps, Users: users}
}

func (h *ApplicationHandler) actor(r *http.Request) (*models.User, error) {
	return (&UserHandler{Users: h.Users}).actor(r)
}

type applyReq struct {
	CompanyName        string                       `json:"company_name" validate:"required"`
	RegistrationNumber string                       `json:"registration_number" validate:"required"`
	BusinessAddress    string                       `json:"business_address" validate:"required"`
	ContactPerson      string                       `json:"contact_person" validate:"required"`
	Website            string                       `json:"website" validate:"omitempty,url"`
	Documents          []models.ApplicationDocument `json:"documents"`
}

func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req applyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	app, err := h.Applications.Apply(r.Context(), actor, models.ProducerDetails{
		CompanyName:        req.CompanyName,
		RegistrationNumber: req.RegistrationNumber,
		BusinessAddress:    req.BusinessAddress,
		ContactPerson:      req.ContactPerson,
		Website:            req.Website,
	}, req.Documents)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	apps, err := h.Applications.Mine(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, apps)
}

func (h *ApplicationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	apps, err := h.Applications.ListPending(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, apps)
}

type reviewReq struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes"`
}

func (h *ApplicationHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad application id", nil)
		return
	}
	var req reviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	app, err := h.Applications.Review(r.Context(), actor, id, req.Approve, req.Notes)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, app)
}
