package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
)

type transactionsRepo struct{ q querier }

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx,
		`INSERT INTO transactions(id, from_user_id, to_user_id, amount, type, credit_ids)
		 VALUES($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		t.ID, t.FromUserID, t.ToUserID, t.Amount, t.Type, t.CreditIDs,
	).Scan(&t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, from_user_id, to_user_id, amount, type, credit_ids, created_at
		   FROM transactions
		  WHERE from_user_id=$1 OR to_user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Type, &t.CreditIDs, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
