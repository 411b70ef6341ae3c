package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/api/validate"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/services"
)

type LedgerHandler struct {
	Ledger *ledger.Service
	Users  *services.UserService
}

func NewLedgerHandler(l *ledger.Service, users *services.UserService) *LedgerHandler {
	return &LedgerHandler{Ledger: l, Users: users}
}

func (h *LedgerHandler) actor(r *http.Request) (*models.User, error) {
	return (&UserHandler{Users: h.Users}).actor(r)
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	b, err := h.Ledger.Balance(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *LedgerHandler) Credits(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	credits, err := h.Ledger.Credits(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, credits)
}

func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	views, err := h.Ledger.History(r.Context(), actor, limit, offset)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

type transferReq struct {
	Recipient string `json:"recipient" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Pin       string `json:"pin"`
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req transferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	txn, err := h.Ledger.Transfer(r.Context(), actor, req.Recipient, req.Amount, req.Pin)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, txn)
}

type retireReq struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Pin    string `json:"pin"`
}

func (h *LedgerHandler) Retire(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req retireReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	txn, err := h.Ledger.Retire(r.Context(), actor, req.Amount, req.Pin)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, txn)
}

type withdrawalReq struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=upi stripe"`
	UpiID  string `json:"upi_id"`
	Pin    string `json:"pin"`
}

func (h *LedgerHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req withdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	out, err := h.Ledger.RequestWithdrawal(r.Context(), actor,
		req.Amount, models.WithdrawalMethod(req.Method), models.WithdrawalDetails{UpiID: req.UpiID}, req.Pin)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, out)
}

func (h *LedgerHandler) Withdrawals(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	reqs, err := h.Ledger.Withdrawals(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reqs)
}

func (h *LedgerHandler) Withdrawal(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad withdrawal id", nil)
		return
	}
	req, err := h.Ledger.Withdrawal(r.Context(), actor, id)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

func (h *LedgerHandler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	views, err := h.Ledger.PendingWithdrawals(r.Context(), actor)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

type finalizeReq struct {
	Outcome string  `json:"outcome" validate:"required,oneof=processed failed"`
	Notes   *string `json:"notes"`
}

func (h *LedgerHandler) FinalizeWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad withdrawal id", nil)
		return
	}
	var req finalizeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	out, err := h.Ledger.FinalizeWithdrawal(r.Context(), actor, id, models.WithdrawalStatus(req.Outcome), req.Notes)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type issueReq struct {
	ProducerID string            `json:"producer_id" validate:"required,uuid"`
	Amount     int64             `json:"amount" validate:"required,gt=0"`
	Metadata   map[string]string `json:"metadata"`
}

func (h *LedgerHandler) Issue(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req issueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	producerID, _ := uuid.Parse(req.ProducerID)
	minted, err := h.Ledger.IssueGenerationCredits(r.Context(), actor, producerID, req.Amount, req.Metadata)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, minted)
}

type certifyReq struct {
	CreditIDs []string `json:"credit_ids" validate:"required,min=1,dive,uuid"`
}

func (h *LedgerHandler) Certify(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	var req certifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.CreditIDs))
	for _, s := range req.CreditIDs {
		id, _ := uuid.Parse(s)
		ids = append(ids, id)
	}
	if err := h.Ledger.CertifyCredits(r.Context(), actor, ids); err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"certified": len(ids)})
}
