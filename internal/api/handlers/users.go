package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/api/validate"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/middleware"
	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/services"
)

type UserHandler struct {
	Users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

// actor resolves the authenticated caller to their stored user row. The
// stored role is authoritative, whatever the token claims.
func (h *UserHandler) actor(r *http.Request) (*models.User, error) {
	subject, ok := middleware.Subject(r.Context())
	if !ok {
		return nil, ledger.ErrNotAuthenticated
	}
	u, err := h.Users.Resolve(r.Context(), subject)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, actor)
}

type profileReq struct {
	Fullname     *string `json:"fullname"`
	Username     *string `json:"username" validate:"omitempty,min=3,max=32"`
	Organization *string `json:"organization"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req profileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	up := repo.ProfileUpdate{Fullname: req.Fullname, Username: req.Username, Organization: req.Organization}
	if err := h.Users.UpdateProfile(r.Context(), actor, up); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type pinReq struct {
	CurrentPin string `json:"current_pin"`
	NewPin     string `json:"new_pin" validate:"required,min=4,max=12,numeric"`
}

func (h *UserHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req pinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	if err := h.Users.SetPin(r.Context(), actor, req.CurrentPin, req.NewPin); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *UserHandler) OnboardCustomer(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := h.Users.OnboardStripeCustomer(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"stripe_customer_id": id})
}

func (h *UserHandler) OnboardAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := h.Users.OnboardStripeAccount(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"stripe_account_id": id})
}
