package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/pricing"
	repo "github.com/hydit/hydit-backend/internal/repository"
)

// FulfillPurchase mints credits credits for a completed token top-up. It is
// keyed on the payment processor's reference: replays of the same
// externalPaymentID return the original purchase and mint nothing. Called
// from the payment webhook, so there is no actor to authorize.
func (s *Service) FulfillPurchase(ctx context.Context, userID uuid.UUID, externalPaymentID string, credits int64) (models.Purchase, error) {
	if externalPaymentID == "" {
		return models.Purchase{}, fmt.Errorf("external payment id required: %w", ErrInvalidArgument)
	}
	if credits <= 0 {
		return models.Purchase{}, fmt.Errorf("credits must be positive: %w", ErrInvalidArgument)
	}

	var out models.Purchase
	var replay bool
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		existing, err := tx.Purchases().GetByExternalID(ctx, externalPaymentID)
		if err == nil {
			out, replay = existing, true
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return err
		}

		p, err := tx.Purchases().Create(ctx, models.Purchase{
			UserID:            userID,
			ExternalPaymentID: externalPaymentID,
			Credits:           credits,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		minted := make([]models.Credit, 0, credits)
		ids := make([]uuid.UUID, 0, credits)
		for i := int64(0); i < credits; i++ {
			c := models.Credit{
				ID:        uuid.New(),
				OwnerID:   userID,
				Status:    models.CreditActive,
				Source:    models.NewPurchaseSource(p.ID),
				IssueDate: now,
			}
			minted = append(minted, c)
			ids = append(ids, c.ID)
		}
		if err := tx.Credits().MintBatch(ctx, minted); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, userID, credits); err != nil {
			return err
		}

		// System mint: no sender.
		if _, err := tx.Transactions().Create(ctx, models.Transaction{
			ToUserID:  userID,
			Amount:    credits,
			Type:      models.TxnPurchase,
			CreditIDs: ids,
		}); err != nil {
			return err
		}
		s.audit(ctx, tx, "purchase", p.ID.String(), "fulfilled", map[string]any{
			"user": userID.String(), "credits": credits, "payment": externalPaymentID,
		})
		out = p
		return nil
	})
	if err := s.done("fulfill", err); err != nil {
		return models.Purchase{}, err
	}
	if replay {
		s.log.InfoContext(ctx, "purchase replayed", "payment", externalPaymentID)
	} else {
		s.log.InfoContext(ctx, "purchase fulfilled", "payment", externalPaymentID, "credits", credits)
	}
	return out, nil
}

// PurchaseListing buys quantityKg from a marketplace listing, paying the
// producer in credits. The cost in whole credits changes owner, the listing
// volume shrinks, and a listing that hits zero flips to sold_out.
func (s *Service) PurchaseListing(ctx context.Context, actor *models.User, listingID uuid.UUID, quantityKg int64, pin string) (models.Transaction, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.Transaction{}, err
	}
	if quantityKg <= 0 {
		return models.Transaction{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidArgument)
	}
	if err := s.checkPin(actor, pin); err != nil {
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		listing, err := tx.Listings().GetByID(ctx, listingID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if listing.Status != models.ListingActive {
			return fmt.Errorf("listing is %s: %w", listing.Status, ErrInvalidState)
		}
		if listing.ProducerID == actor.ID {
			return fmt.Errorf("cannot buy own listing: %w", ErrInvalidArgument)
		}
		if quantityKg > listing.QuantityKg {
			return fmt.Errorf("only %d kg available: %w", listing.QuantityKg, ErrInvalidArgument)
		}

		cost := pricing.ListingCost(quantityKg, listing.PricePerKg)
		ids, err := s.selectSpendable(ctx, tx, actor.ID, cost)
		if err != nil {
			return err
		}
		if err := tx.Credits().Reassign(ctx, ids, listing.ProducerID); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, actor.ID, -cost); err != nil {
			return err
		}
		if _, err := tx.Users().AdjustBalance(ctx, listing.ProducerID, cost); err != nil {
			return err
		}

		remaining, err := tx.Listings().AdjustQuantity(ctx, listing.ID, -quantityKg)
		if err != nil {
			return err
		}
		if remaining == 0 {
			soldOut := models.ListingSoldOut
			if err := tx.Listings().Update(ctx, listing.ID, repo.ListingUpdate{Status: &soldOut}); err != nil {
				return err
			}
		}

		txn, err = tx.Transactions().Create(ctx, models.Transaction{
			FromUserID: &actor.ID,
			ToUserID:   listing.ProducerID,
			Amount:     cost,
			Type:       models.TxnPurchase,
			CreditIDs:  ids,
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, "listing", listing.ID.String(), "purchased", map[string]any{
			"buyer": actor.Username, "quantity_kg": quantityKg, "cost": cost,
		})
		return nil
	})
	if err := s.done("market_purchase", err); err != nil {
		return models.Transaction{}, err
	}
	s.log.InfoContext(ctx, "listing purchased", "buyer", actor.ID, "listing", listingID, "kg", quantityKg)
	return txn, nil
}

// IssueGenerationCredits mints issued (not yet spendable) credits against a
// producer's certified hydrogen output. Producers issue for themselves;
// admins may issue for any producer.
func (s *Service) IssueGenerationCredits(ctx context.Context, actor *models.User, producerID uuid.UUID, amount int64, metadata map[string]string) ([]models.Credit, error) {
	if actor != nil && actor.ID == producerID {
		if err := s.gate.RequireRole(actor, models.RoleProducer); err != nil {
			return nil, err
		}
	} else if err := s.gate.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}

	var minted []models.Credit
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		producer, err := tx.Users().GetByID(ctx, producerID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("producer %s: %w", producerID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if producer.Role != models.RoleProducer {
			return fmt.Errorf("user %s is not a producer: %w", producer.Username, ErrInvalidArgument)
		}

		now := time.Now().UTC()
		minted = make([]models.Credit, 0, amount)
		for i := int64(0); i < amount; i++ {
			minted = append(minted, models.Credit{
				ID:        uuid.New(),
				OwnerID:   producer.ID,
				Status:    models.CreditIssued,
				Source:    models.NewGenerationSource(producer.ID, metadata),
				IssueDate: now,
			})
		}
		// Issued credits are not spendable yet, so the cache is untouched.
		if err := tx.Credits().MintBatch(ctx, minted); err != nil {
			return err
		}
		s.audit(ctx, tx, "credit", producer.ID.String(), "issued", map[string]any{
			"producer": producer.Username, "amount": amount,
		})
		return nil
	})
	if err := s.done("issue", err); err != nil {
		return nil, err
	}
	return minted, nil
}

// CertifyCredits promotes issued generation credits to active, stamping the
// certifier. Only then do they enter the owner's spendable balance.
func (s *Service) CertifyCredits(ctx context.Context, actor *models.User, creditIDs []uuid.UUID) error {
	if err := s.gate.RequireCertifier(actor); err != nil {
		return err
	}
	if len(creditIDs) == 0 {
		return fmt.Errorf("no credits given: %w", ErrInvalidArgument)
	}

	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		credits, err := tx.Credits().GetByIDs(ctx, creditIDs)
		if err != nil {
			return err
		}
		if len(credits) != len(creditIDs) {
			return fmt.Errorf("some credits do not exist: %w", ErrNotFound)
		}

		perOwner := map[uuid.UUID]int64{}
		for _, c := range credits {
			if c.OwnerID == actor.ID {
				return fmt.Errorf("cannot certify own credits: %w", ErrNotAuthorized)
			}
			if c.Status != models.CreditIssued || c.Source.Type != models.SourceGeneration {
				return fmt.Errorf("credit %s is not awaiting certification: %w", c.ID, ErrInvalidState)
			}
			perOwner[c.OwnerID]++
		}

		now := time.Now().UTC()
		if err := tx.Credits().SetStatus(ctx, creditIDs, models.CreditActive, nil); err != nil {
			return err
		}
		if err := tx.Credits().SetCertification(ctx, creditIDs, actor.ID, now); err != nil {
			return err
		}
		for owner, n := range perOwner {
			if _, err := tx.Users().AdjustBalance(ctx, owner, n); err != nil {
				return err
			}
		}
		s.audit(ctx, tx, "credit", actor.ID.String(), "certified", map[string]any{
			"certifier": actor.Username, "count": len(creditIDs),
		})
		return nil
	})
	return s.done("certify", err)
}
