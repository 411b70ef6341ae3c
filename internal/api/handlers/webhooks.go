package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/ledger"
)

const maxWebhookBody = 64 << 10

// WebhookHandler is the payment processor's entry point. It trusts the
// signature, not the caller, and relies on fulfillment idempotency to make
// redelivery safe.
type WebhookHandler struct {
	Ledger        *ledger.Service
	SigningSecret string
	Log           *slog.Logger
}

func NewWebhookHandler(l *ledger.Service, signingSecret string, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{Ledger: l, SigningSecret: signingSecret, Log: log}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "unreadable payload", nil)
		return
	}

	var event stripe.Event
	if h.SigningSecret != "" {
		event, err = webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.SigningSecret)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed", nil)
			return
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad event payload", nil)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "bad payment intent", nil)
			return
		}
		h.fulfill(w, r, pi.ID, pi.Metadata)
	default:
		// Acknowledge everything else so the processor stops retrying.
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *WebhookHandler) fulfill(w http.ResponseWriter, r *http.Request, paymentID string, metadata map[string]string) {
	userID, err := uuid.Parse(metadata["userId"])
	if err != nil {
		h.Log.Error("webhook payment without user metadata", "payment", paymentID)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "missing user metadata", nil)
		return
	}
	credits, err := strconv.ParseInt(metadata["credits"], 10, 64)
	if err != nil || credits <= 0 {
		h.Log.Error("webhook payment without credit metadata", "payment", paymentID)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "missing credit metadata", nil)
		return
	}

	p, err := h.Ledger.FulfillPurchase(r.Context(), userID, paymentID, credits)
	if err != nil {
		httpx.WriteLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
