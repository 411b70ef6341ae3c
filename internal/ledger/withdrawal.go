package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/metrics"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/pricing"
	repo "github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/settlement"
)

// RequestWithdrawal earmarks amount of the caller's credits for cash-out.
// The credits move to pending_withdrawal and stop being spendable, but stay
// owned by the caller until a finalize decides the outcome. Stripe requests
// are handed to the payout worker; UPI requests wait for admin review.
func (s *Service) RequestWithdrawal(ctx context.Context, actor *models.User, amount int64, method models.WithdrawalMethod, details models.WithdrawalDetails, pin string) (models.WithdrawalRequest, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.WithdrawalRequest{}, err
	}
	if amount <= 0 {
		return models.WithdrawalRequest{}, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	if !method.IsValid() {
		return models.WithdrawalRequest{}, fmt.Errorf("unknown withdrawal method %q: %w", method, ErrInvalidArgument)
	}
	switch method {
	case models.MethodUPI:
		if details.UpiID == "" {
			return models.WithdrawalRequest{}, fmt.Errorf("upi id required: %w", ErrInvalidArgument)
		}
	case models.MethodStripe:
		if actor.StripeAccountID == nil || *actor.StripeAccountID == "" {
			return models.WithdrawalRequest{}, fmt.Errorf("no linked payout account: %w", ErrInvalidArgument)
		}
		details.StripeAccountID = *actor.StripeAccountID
	}
	if err := s.checkPin(actor, pin); err != nil {
		return models.WithdrawalRequest{}, err
	}

	var req models.WithdrawalRequest
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		ids, err := s.selectSpendable(ctx, tx, actor.ID, amount)
		if err != nil {
			return err
		}
		if err := tx.Credits().SetStatus(ctx, ids, models.CreditPendingWithdrawal, nil); err != nil {
			return err
		}
		// The cache tracks spendable credits, so earmarking debits it now.
		if _, err := tx.Users().AdjustBalance(ctx, actor.ID, -amount); err != nil {
			return err
		}

		req, err = tx.Withdrawals().Create(ctx, models.WithdrawalRequest{
			UserID:    actor.ID,
			Amount:    amount,
			CreditIDs: ids,
			Method:    method,
			Details:   details,
			Status:    models.WithdrawalPending,
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, "withdrawal", req.ID.String(), "requested", map[string]any{
			"user": actor.Username, "amount": amount, "method": string(method),
		})
		return nil
	})
	if err := s.done("withdraw_request", err); err != nil {
		return models.WithdrawalRequest{}, err
	}
	s.log.InfoContext(ctx, "withdrawal requested", "user", actor.ID, "request", req.ID, "method", method)

	if method == models.MethodStripe {
		id := req.ID
		s.wp.Submit(func() {
			if err := s.ProcessPayout(context.Background(), id); err != nil {
				s.log.Error("payout attempt failed", "request", id, "err", err)
			}
		})
	}
	return req, nil
}

// FinalizeWithdrawal records the outcome of a pending request. Certifier
// or admin. Processed moves the earmarked credits to withdrawn; failed
// returns them to active and restores the balance cache. A request
// finalizes exactly once: the second call gets ErrInvalidState whatever
// the outcome.
func (s *Service) FinalizeWithdrawal(ctx context.Context, actor *models.User, requestID uuid.UUID, outcome models.WithdrawalStatus, notes *string) (models.WithdrawalRequest, error) {
	if err := s.gate.RequireCertifier(actor); err != nil {
		return models.WithdrawalRequest{}, err
	}
	if !outcome.Terminal() {
		return models.WithdrawalRequest{}, fmt.Errorf("outcome must be processed or failed: %w", ErrInvalidArgument)
	}
	req, err := s.finalize(ctx, requestID, outcome, nil, &actor.ID, notes)
	if err := s.done("withdraw_finalize", err); err != nil {
		return models.WithdrawalRequest{}, err
	}
	return req, nil
}

func (s *Service) finalize(ctx context.Context, requestID uuid.UUID, outcome models.WithdrawalStatus, transferID *string, reviewedBy *uuid.UUID, notes *string) (models.WithdrawalRequest, error) {
	var out models.WithdrawalRequest
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		req, err := tx.Withdrawals().GetByID(ctx, requestID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("withdrawal %s: %w", requestID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return fmt.Errorf("withdrawal %s already %s: %w", req.ID, req.Status, ErrInvalidState)
		}

		now := time.Now().UTC()
		err = tx.Withdrawals().Finalize(ctx, req.ID, repo.WithdrawalFinalize{
			Status:           outcome,
			ProcessedAt:      now,
			StripeTransferID: transferID,
			ReviewedBy:       reviewedBy,
			ReviewNotes:      notes,
		})
		if errors.Is(err, repo.ErrNotFound) {
			// Lost the race to a concurrent finalize.
			return fmt.Errorf("withdrawal %s: %w", req.ID, ErrInvalidState)
		}
		if err != nil {
			return err
		}

		switch outcome {
		case models.WithdrawalProcessed:
			if err := tx.Credits().SetStatus(ctx, req.CreditIDs, models.CreditWithdrawn, &now); err != nil {
				return err
			}
		case models.WithdrawalFailed:
			// Full reversal: credits become spendable again and the cache
			// gets the earmarked amount back.
			if err := tx.Credits().SetStatus(ctx, req.CreditIDs, models.CreditActive, nil); err != nil {
				return err
			}
			if _, err := tx.Users().AdjustBalance(ctx, req.UserID, req.Amount); err != nil {
				return err
			}
		}

		req.Status = outcome
		req.ProcessedAt = &now
		req.StripeTransferID = transferID
		req.ReviewedBy = reviewedBy
		req.ReviewNotes = notes
		out = req

		s.audit(ctx, tx, "withdrawal", req.ID.String(), "finalized", map[string]any{
			"outcome": string(outcome), "amount": req.Amount,
		})
		return nil
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	s.log.InfoContext(ctx, "withdrawal finalized", "request", out.ID, "outcome", outcome)
	return out, nil
}

// ProcessPayout attempts the real-currency transfer for a pending stripe
// request and finalizes it with the observed outcome. The attempt is bounded
// by the payout timeout; the idempotency key pins retries to one transfer.
func (s *Service) ProcessPayout(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.store.Withdrawals().GetByID(ctx, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("withdrawal %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return nil
	}
	if req.Method != models.MethodStripe {
		return fmt.Errorf("payout requires the stripe method: %w", ErrInvalidArgument)
	}

	dest := req.Details.StripeAccountID
	if dest == "" {
		note := "no destination account on request"
		if _, ferr := s.finalize(ctx, req.ID, models.WithdrawalFailed, nil, nil, &note); ferr != nil && !errors.Is(ferr, ErrInvalidState) {
			return ferr
		}
		metrics.PayoutsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%s: %w", note, ErrSettlementFailed)
	}

	cctx, cancel := context.WithTimeout(ctx, s.payoutTimeout)
	defer cancel()
	ref, err := s.pay.CreatePayout(cctx, settlement.PayoutInput{
		AmountMinorUnits:     pricing.CreditsToMinorUnits(req.Amount),
		Currency:             s.currency,
		DestinationAccountID: dest,
		IdempotencyKey:       "withdrawal_" + req.ID.String(),
	})
	if err != nil {
		note := err.Error()
		if _, ferr := s.finalize(ctx, req.ID, models.WithdrawalFailed, nil, nil, &note); ferr != nil && !errors.Is(ferr, ErrInvalidState) {
			return ferr
		}
		metrics.PayoutsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("payout for withdrawal %s: %w: %v", req.ID, ErrSettlementFailed, err)
	}

	if _, err := s.finalize(ctx, req.ID, models.WithdrawalProcessed, &ref, nil, nil); err != nil {
		if errors.Is(err, ErrInvalidState) {
			// Finalized concurrently; the transfer reference is already on
			// the other finalize or the attempt was superseded.
			return nil
		}
		return err
	}
	metrics.PayoutsTotal.WithLabelValues("processed").Inc()
	return nil
}
