package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/api/validate"
	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/middleware"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/services"
)

type AuthHandler struct {
	TM     *auth.TokenManager
	Users  *services.UserService
	AppEnv string
}

func NewAuthHandler(tm *auth.TokenManager, users *services.UserService, appEnv string) *AuthHandler {
	return &AuthHandler{TM: tm, Users: users, AppEnv: appEnv}
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

type devLoginReq struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Role      string `json:"role"`
}

// DevLogin mints a token pair for an arbitrary subject. Dev only; in prod
// the identity provider issues tokens and this endpoint is not mounted.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	if req.Role == "" {
		req.Role = string(models.RoleBuyer)
	}
	access, refresh, exp, err := h.TM.GeneratePair(req.SubjectID, req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "refresh_token required", nil)
		return
	}
	claims, err := h.TM.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "invalid refresh token", nil)
		return
	}
	access, refresh, exp, err := h.TM.GeneratePair(claims.SubjectID, claims.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

type syncReq struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Fullname string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// Sync upserts the caller's user row on first login.
func (h *AuthHandler) Sync(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.Subject(r.Context())
	if !ok {
		httpx.WriteLedgerError(w, ledger.ErrNotAuthenticated)
		return
	}
	var req syncReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	u, err := h.Users.SyncUser(r.Context(), subject, req.Username, req.Fullname, req.Email)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
