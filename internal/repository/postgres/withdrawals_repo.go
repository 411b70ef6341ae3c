package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
)

type withdrawalsRepo struct{ q querier }

const withdrawalColumns = `id, user_id, amount, credit_ids, method, details, status,
	processed_at, stripe_transfer_id, reviewed_by, review_notes, created_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.CreditIDs, &w.Method, &w.Details,
		&w.Status, &w.ProcessedAt, &w.StripeTransferID, &w.ReviewedBy, &w.ReviewNotes, &w.CreatedAt)
	return w, notFound(err)
}

func (r *withdrawalsRepo) Create(ctx context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO withdrawal_requests(id, user_id, amount, credit_ids, method, details, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+withdrawalColumns,
		w.ID, w.UserID, w.Amount, w.CreditIDs, w.Method, w.Details, w.Status,
	)
	return scanWithdrawal(row)
}

func (r *withdrawalsRepo) GetByID(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	return scanWithdrawal(r.q.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id=$1`, id))
}

// Finalize only ever moves a pending request to a terminal status; the status
// guard in the WHERE clause makes a second finalize a no-row update.
func (r *withdrawalsRepo) Finalize(ctx context.Context, id uuid.UUID, fin repository.WithdrawalFinalize) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE withdrawal_requests
		    SET status=$2, processed_at=$3, stripe_transfer_id=$4, reviewed_by=$5, review_notes=$6
		  WHERE id=$1 AND status='pending'`,
		id, fin.Status, fin.ProcessedAt, fin.StripeTransferID, fin.ReviewedBy, fin.ReviewNotes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *withdrawalsRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WithdrawalRequest, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests
		  WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectWithdrawals(rows)
}

func (r *withdrawalsRepo) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests
		  WHERE status='pending' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectWithdrawals(rows)
}

func collectWithdrawals(rows pgx.Rows) ([]models.WithdrawalRequest, error) {
	defer rows.Close()
	var out []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
