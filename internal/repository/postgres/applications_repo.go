package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
)

type applicationsRepo struct{ q querier }

const applicationColumns = `id, user_id, status, details, documents, reviewed_by,
	review_notes, reviewed_at, created_at`

func scanApplication(row interface{ Scan(...any) error }) (models.ProducerApplication, error) {
	var a models.ProducerApplication
	err := row.Scan(&a.ID, &a.UserID, &a.Status, &a.Details, &a.Documents,
		&a.ReviewedBy, &a.ReviewNotes, &a.ReviewedAt, &a.CreatedAt)
	return a, notFound(err)
}

func (r *applicationsRepo) Create(ctx context.Context, a models.ProducerApplication) (models.ProducerApplication, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO producer_applications(id, user_id, status, details, documents)
		 VALUES($1,$2,$3,$4,$5)
		 RETURNING `+applicationColumns,
		a.ID, a.UserID, a.Status, a.Details, a.Documents,
	)
	return scanApplication(row)
}

func (r *applicationsRepo) GetByID(ctx context.Context, id uuid.UUID) (models.ProducerApplication, error) {
	return scanApplication(r.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM producer_applications WHERE id=$1`, id))
}

func (r *applicationsRepo) GetByUser(ctx context.Context, userID uuid.UUID) ([]models.ProducerApplication, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+applicationColumns+` FROM producer_applications
		  WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

func (r *applicationsRepo) HasActiveForUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM producer_applications
		    WHERE user_id=$1 AND status IN ('pending','approved'))`,
		userID,
	).Scan(&exists)
	return exists, err
}

func (r *applicationsRepo) ListPending(ctx context.Context) ([]models.ProducerApplication, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+applicationColumns+` FROM producer_applications
		  WHERE status='pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

func (r *applicationsRepo) Review(ctx context.Context, id uuid.UUID, rev repository.ApplicationReview) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE producer_applications
		    SET status=$2, reviewed_by=$3, review_notes=$4, reviewed_at=$5
		  WHERE id=$1 AND status='pending'`,
		id, rev.Status, rev.ReviewedBy, rev.ReviewNotes, rev.ReviewedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func collectApplications(rows pgx.Rows) ([]models.ProducerApplication, error) {
	defer rows.Close()
	var out []models.ProducerApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
