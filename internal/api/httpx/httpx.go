package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hydit/hydit-backend/internal/ledger"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// WriteLedgerError maps the ledger error taxonomy to HTTP in one place.
// Unknown errors become an opaque 500; their detail stays in the logs.
func WriteLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotAuthenticated):
		WriteError(w, http.StatusUnauthorized, "not_authenticated", "authentication required", nil)
	case errors.Is(err, ledger.ErrNotAuthorized):
		WriteError(w, http.StatusForbidden, "unauthorized", "unauthorized", nil)
	case errors.Is(err, ledger.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error(), nil)
	case errors.Is(err, ledger.ErrInvalidState):
		WriteError(w, http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, ledger.ErrSettlementFailed):
		WriteError(w, http.StatusBadGateway, "settlement_failed", "settlement failed", nil)
	case errors.Is(err, ledger.ErrInvalidArgument):
		WriteError(w, http.StatusBadRequest, "invalid_argument", err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
