package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// BalanceSummary reports the caller's position. Active comes from counting
// credit rows, Cached from the denormalized user field; the two must agree.
type BalanceSummary struct {
	Active            int64 `json:"active"`
	PendingWithdrawal int64 `json:"pending_withdrawal"`
	Cached            int64 `json:"cached"`
}

func (s *Service) Balance(ctx context.Context, actor *models.User) (BalanceSummary, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return BalanceSummary{}, err
	}
	active, err := s.store.Credits().CountByOwnerAndStatus(ctx, actor.ID, models.CreditActive)
	if err != nil {
		return BalanceSummary{}, err
	}
	pending, err := s.store.Credits().CountByOwnerAndStatus(ctx, actor.ID, models.CreditPendingWithdrawal)
	if err != nil {
		return BalanceSummary{}, err
	}
	u, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		return BalanceSummary{}, err
	}
	return BalanceSummary{Active: active, PendingWithdrawal: pending, Cached: u.HydcoinBalance}, nil
}

// Credits lists every credit the caller owns, terminal ones included.
func (s *Service) Credits(ctx context.Context, actor *models.User) ([]models.Credit, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Credits().ListByOwner(ctx, actor.ID)
}

// History returns the caller's transaction log with display names resolved.
func (s *Service) History(ctx context.Context, actor *models.User, limit, offset int) ([]models.TransactionView, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	txns, err := s.store.Transactions().ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	names := map[uuid.UUID]string{actor.ID: actor.Username}
	resolve := func(id uuid.UUID) string {
		if name, ok := names[id]; ok {
			return name
		}
		u, err := s.store.Users().GetByID(ctx, id)
		if err != nil {
			names[id] = "unknown"
			return "unknown"
		}
		names[id] = u.Username
		return u.Username
	}

	views := make([]models.TransactionView, 0, len(txns))
	for _, t := range txns {
		v := models.TransactionView{Transaction: t, ToUsername: resolve(t.ToUserID)}
		if t.FromUserID == nil {
			v.FromUsername = "system"
		} else {
			v.FromUsername = resolve(*t.FromUserID)
			v.CallerIsFrom = *t.FromUserID == actor.ID
		}
		views = append(views, v)
	}
	return views, nil
}

// Withdrawals lists the caller's withdrawal requests, newest first.
func (s *Service) Withdrawals(ctx context.Context, actor *models.User) ([]models.WithdrawalRequest, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Withdrawals().ListByUser(ctx, actor.ID)
}

// Withdrawal returns one request; the owner or a reviewer.
func (s *Service) Withdrawal(ctx context.Context, actor *models.User, id uuid.UUID) (models.WithdrawalRequest, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.WithdrawalRequest{}, err
	}
	req, err := s.store.Withdrawals().GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.WithdrawalRequest{}, ErrNotFound
	}
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if req.UserID != actor.ID {
		if err := s.gate.RequireCertifier(actor); err != nil {
			return models.WithdrawalRequest{}, err
		}
	}
	return req, nil
}

// PendingWithdrawals lists all pending requests for certifier or admin
// review.
func (s *Service) PendingWithdrawals(ctx context.Context, actor *models.User) ([]models.WithdrawalView, error) {
	if err := s.gate.RequireCertifier(actor); err != nil {
		return nil, err
	}
	reqs, err := s.store.Withdrawals().ListPending(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.WithdrawalView, 0, len(reqs))
	for _, r := range reqs {
		v := models.WithdrawalView{WithdrawalRequest: r, Username: "unknown"}
		if u, err := s.store.Users().GetByID(ctx, r.UserID); err == nil {
			v.Username = u.Username
		}
		views = append(views, v)
	}
	return views, nil
}
