// Package ledger implements the credit ledger core: every operation that
// moves, mints, retires or earmarks credits runs here, inside one atomic
// store transaction, keeping the balance cache equal to the count of the
// owner's active credits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/auth"
	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/metrics"
	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/pricing"
	repo "github.com/hydit/hydit-backend/internal/repository"
	"github.com/hydit/hydit-backend/internal/settlement"
	"github.com/hydit/hydit-backend/internal/worker"
)

const defaultPayoutTimeout = 30 * time.Second

// Config carries the tunables the service cannot default sensibly on its own.
type Config struct {
	// Currency is the ISO code sent with payouts.
	Currency string
	// PayoutTimeout bounds a single payout attempt against the processor.
	PayoutTimeout time.Duration
}

type Service struct {
	store repo.Store
	gate  *authz.Gate
	pay   settlement.Adapter
	wp    *worker.Pool
	log   *slog.Logger

	currency      string
	payoutTimeout time.Duration
}

func New(store repo.Store, gate *authz.Gate, pay settlement.Adapter, wp *worker.Pool, log *slog.Logger, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = pricing.DefaultCurrency
	}
	if cfg.PayoutTimeout <= 0 {
		cfg.PayoutTimeout = defaultPayoutTimeout
	}
	return &Service{
		store:         store,
		gate:          gate,
		pay:           pay,
		wp:            wp,
		log:           log,
		currency:      cfg.Currency,
		payoutTimeout: cfg.PayoutTimeout,
	}
}

// ----------------- Helpers -----------------

func (s *Service) audit(ctx context.Context, tx repo.Tx, entityType, entityID, action string, details map[string]any) {
	id := entityID
	_ = tx.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: entityType,
		EntityID:   &id,
		Action:     action,
		Details:    details,
	})
}

// checkPin verifies the transaction PIN when the caller has one configured.
func (s *Service) checkPin(actor *models.User, pin string) error {
	if actor.TransactionPinHash == "" {
		return nil
	}
	if err := auth.VerifyPin(pin, actor.TransactionPinHash); err != nil {
		return fmt.Errorf("transaction pin mismatch: %w", ErrNotAuthorized)
	}
	return nil
}

// selectSpendable locks amount active credits of owner, oldest first. The
// lock is held until the enclosing transaction commits, so two concurrent
// spends can never pick the same credit.
func (s *Service) selectSpendable(ctx context.Context, tx repo.Tx, owner uuid.UUID, amount int64) ([]uuid.UUID, error) {
	ids, err := tx.Credits().SelectForUpdate(ctx, owner, models.CreditActive, amount)
	if err != nil {
		return nil, err
	}
	if int64(len(ids)) < amount {
		return nil, fmt.Errorf("need %d active credits, have %d: %w", amount, len(ids), ErrInsufficientBalance)
	}
	return ids, nil
}

func (s *Service) done(op string, err error) error {
	if err != nil {
		metrics.LedgerOpsFailed.WithLabelValues(op).Inc()
		return err
	}
	metrics.LedgerOpsTotal.WithLabelValues(op).Inc()
	return nil
}

// ----------------- Transfer -----------------

// Transfer moves amount credits from the caller to the user named by
// recipientUsername. Ownership of whole credits changes; nothing is minted
// or destroyed.
func (s *Service) Transfer(ctx context.Context, actor *models.User, recipientUsername string, amount int64, pin string) (models.Transaction, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.Transaction{}, err
	}
	if amount <= 0 {
		return models.Transaction{}, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	if err := s.checkPin(actor, pin); err != nil {
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		recipient, err := tx.Users().GetByUsername(ctx, recipientUsername)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("recipient %q: %w", recipientUsername, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if recipient.ID == actor.ID {
			return fmt.Errorf("cannot transfer to self: %w", ErrInvalidArgument)
		}

		ids, err := s.selectSpendable(ctx, tx, actor.ID, amount)
		if err != nil {
			return err
		}
		if err := tx.Credits().Reassign(ctx, ids, recipient.ID); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, actor.ID, -amount); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, recipient.ID, amount); err != nil {
			return err
		}

		txn, err = tx.Transactions().Create(ctx, models.Transaction{
			FromUserID: &actor.ID,
			ToUserID:   recipient.ID,
			Amount:     amount,
			Type:       models.TxnTransfer,
			CreditIDs:  ids,
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, "transaction", txn.ID.String(), "transfer", map[string]any{
			"from": actor.Username, "to": recipient.Username, "amount": amount,
		})
		return nil
	})
	if err := s.done("transfer", err); err != nil {
		return models.Transaction{}, err
	}
	s.log.InfoContext(ctx, "transfer committed", "from", actor.ID, "amount", amount)
	return txn, nil
}

// ----------------- Retire -----------------

// Retire permanently removes amount of the caller's credits from
// circulation, recording an offset claim. Retired credits stay on the books
// as an audit trail and can never be spent again.
func (s *Service) Retire(ctx context.Context, actor *models.User, amount int64, pin string) (models.Transaction, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.Transaction{}, err
	}
	if amount <= 0 {
		return models.Transaction{}, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	if err := s.checkPin(actor, pin); err != nil {
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		ids, err := s.selectSpendable(ctx, tx, actor.ID, amount)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Credits().SetStatus(ctx, ids, models.CreditRetired, &now); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, actor.ID, -amount); err != nil {
			return err
		}

		// Self-referential record: the retiring user is both ends.
		txn, err = tx.Transactions().Create(ctx, models.Transaction{
			FromUserID: &actor.ID,
			ToUserID:   actor.ID,
			Amount:     amount,
			Type:       models.TxnRetirement,
			CreditIDs:  ids,
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, "transaction", txn.ID.String(), "retire", map[string]any{
			"user": actor.Username, "amount": amount,
		})
		return nil
	})
	if err := s.done("retire", err); err != nil {
		return models.Transaction{}, err
	}
	s.log.InfoContext(ctx, "retirement committed", "user", actor.ID, "amount", amount)
	return txn, nil
}
