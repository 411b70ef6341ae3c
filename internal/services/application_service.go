package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/authz"
	"github.com/hydit/hydit-backend/internal/ledger"
	"github.com/hydit/hydit-backend/internal/models"
	repo "github.com/hydit/hydit-backend/internal/repository"
)

// ApplicationService runs the producer onboarding workflow. Approval is the
// only path to the producer role.
type ApplicationService struct {
	store repo.Store
	gate  *authz.Gate
}

func NewApplicationService(store repo.Store, gate *authz.Gate) *ApplicationService {
	return &ApplicationService{store: store, gate: gate}
}

func (s *ApplicationService) Apply(ctx context.Context, actor *models.User, details models.ProducerDetails, docs []models.ApplicationDocument) (models.ProducerApplication, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return models.ProducerApplication{}, err
	}
	if actor.Role == models.RoleProducer {
		return models.ProducerApplication{}, fmt.Errorf("already a producer: %w", ledger.ErrInvalidState)
	}
	if strings.TrimSpace(details.CompanyName) == "" || strings.TrimSpace(details.RegistrationNumber) == "" {
		return models.ProducerApplication{}, fmt.Errorf("company name and registration number required: %w", ledger.ErrInvalidArgument)
	}

	active, err := s.store.Applications().HasActiveForUser(ctx, actor.ID)
	if err != nil {
		return models.ProducerApplication{}, err
	}
	if active {
		return models.ProducerApplication{}, fmt.Errorf("an application is already open: %w", ledger.ErrInvalidState)
	}

	now := time.Now().UTC()
	for i := range docs {
		if docs[i].UploadDate.IsZero() {
			docs[i].UploadDate = now
		}
		if docs[i].Status == "" {
			docs[i].Status = "pending"
		}
	}
	return s.store.Applications().Create(ctx, models.ProducerApplication{
		UserID:    actor.ID,
		Status:    models.ApplicationPending,
		Details:   details,
		Documents: docs,
	})
}

func (s *ApplicationService) Mine(ctx context.Context, actor *models.User) ([]models.ProducerApplication, error) {
	if err := s.gate.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.store.Applications().GetByUser(ctx, actor.ID)
}

func (s *ApplicationService) ListPending(ctx context.Context, actor *models.User) ([]models.ProducerApplication, error) {
	if err := s.gate.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.Applications().ListPending(ctx)
}

// Review decides a pending application. Approval promotes the applicant to
// producer inside the same transaction, so the role and the decision cannot
// diverge.
func (s *ApplicationService) Review(ctx context.Context, actor *models.User, id uuid.UUID, approve bool, notes *string) (models.ProducerApplication, error) {
	if err := s.gate.RequireAdmin(actor); err != nil {
		return models.ProducerApplication{}, err
	}

	status := models.ApplicationRejected
	if approve {
		status = models.ApplicationApproved
	}

	var out models.ProducerApplication
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		app, err := tx.Applications().GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("application %s: %w", id, ledger.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("application already %s: %w", app.Status, ledger.ErrInvalidState)
		}

		now := time.Now().UTC()
		rev := repo.ApplicationReview{
			Status:      status,
			ReviewedBy:  actor.ID,
			ReviewNotes: notes,
			ReviewedAt:  now,
		}
		if err := tx.Applications().Review(ctx, app.ID, rev); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("application %s: %w", id, ledger.ErrInvalidState)
			}
			return err
		}
		if approve {
			if err := tx.Users().SetRole(ctx, app.UserID, models.RoleProducer); err != nil {
				return err
			}
		}

		app.Status = status
		app.ReviewedBy = &actor.ID
		app.ReviewNotes = notes
		app.ReviewedAt = &now
		out = app

		entityID := app.ID.String()
		_ = tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: "producer_application",
			EntityID:   &entityID,
			Action:     "reviewed",
			Details:    map[string]any{"status": string(status), "reviewer": actor.Username},
		})
		return nil
	})
	if err != nil {
		return models.ProducerApplication{}, err
	}
	return out, nil
}
