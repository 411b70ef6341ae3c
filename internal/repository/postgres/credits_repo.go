package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hydit/hydit-backend/internal/models"
)

type creditsRepo struct{ q querier }

const creditColumns = `id, owner_id, status, source, issue_date, retirement_date`

func scanCredit(row interface{ Scan(...any) error }) (models.Credit, error) {
	var c models.Credit
	err := row.Scan(&c.ID, &c.OwnerID, &c.Status, &c.Source, &c.IssueDate, &c.RetirementDate)
	return c, notFound(err)
}

// SelectForUpdate locks the chosen rows for the rest of the transaction.
// Oldest-first ordering keeps selection deterministic under concurrency.
func (r *creditsRepo) SelectForUpdate(ctx context.Context, owner uuid.UUID, status models.CreditStatus, limit int64) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id FROM credits
		  WHERE owner_id=$1 AND status=$2
		  ORDER BY issue_date, id
		  LIMIT $3
		  FOR UPDATE`,
		owner, status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *creditsRepo) MintBatch(ctx context.Context, credits []models.Credit) error {
	batch := &pgx.Batch{}
	for _, c := range credits {
		batch.Queue(
			`INSERT INTO credits(id, owner_id, status, source, issue_date)
			 VALUES($1,$2,$3,$4,$5)`,
			c.ID, c.OwnerID, c.Status, c.Source, c.IssueDate,
		)
	}
	switch q := r.q.(type) {
	case pgx.Tx:
		return q.SendBatch(ctx, batch).Close()
	default:
		// Auto-commit path; used only by seed helpers.
		for _, c := range credits {
			if _, err := r.q.Exec(ctx,
				`INSERT INTO credits(id, owner_id, status, source, issue_date)
				 VALUES($1,$2,$3,$4,$5)`,
				c.ID, c.OwnerID, c.Status, c.Source, c.IssueDate,
			); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *creditsRepo) SetStatus(ctx context.Context, ids []uuid.UUID, status models.CreditStatus, retiredAt *time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE credits
		    SET status=$2,
		        retirement_date = COALESCE($3, retirement_date)
		  WHERE id = ANY($1)`,
		ids, status, retiredAt,
	)
	return err
}

func (r *creditsRepo) Reassign(ctx context.Context, ids []uuid.UUID, newOwner uuid.UUID) error {
	_, err := r.q.Exec(ctx, `UPDATE credits SET owner_id=$2 WHERE id = ANY($1)`, ids, newOwner)
	return err
}

func (r *creditsRepo) SetCertification(ctx context.Context, ids []uuid.UUID, certifierID uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE credits
		    SET source = jsonb_set(
		          jsonb_set(source, '{generation,certifierId}', to_jsonb($2::text)),
		          '{generation,certificationDate}', to_jsonb($3::timestamptz))
		  WHERE id = ANY($1) AND source->>'type' = 'generation'`,
		ids, certifierID.String(), at,
	)
	return err
}

func (r *creditsRepo) CountByOwnerAndStatus(ctx context.Context, owner uuid.UUID, status models.CreditStatus) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM credits WHERE owner_id=$1 AND status=$2`,
		owner, status,
	).Scan(&n)
	return n, err
}

func (r *creditsRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Credit, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+creditColumns+` FROM credits WHERE id = ANY($1) ORDER BY issue_date, id`, ids)
	if err != nil {
		return nil, err
	}
	return collectCredits(rows)
}

func (r *creditsRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]models.Credit, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+creditColumns+` FROM credits WHERE owner_id=$1 ORDER BY issue_date, id`, owner)
	if err != nil {
		return nil, err
	}
	return collectCredits(rows)
}

func collectCredits(rows pgx.Rows) ([]models.Credit, error) {
	defer rows.Close()
	var out []models.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
