package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
)

type purchasesRepo struct{ q querier }

func (r *purchasesRepo) Create(ctx context.Context, p models.Purchase) (models.Purchase, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx,
		`INSERT INTO purchases(id, user_id, external_payment_id, credits)
		 VALUES($1,$2,$3,$4)
		 RETURNING created_at`,
		p.ID, p.UserID, p.ExternalPaymentID, p.Credits,
	).Scan(&p.CreatedAt)
	return p, err
}

func (r *purchasesRepo) GetByExternalID(ctx context.Context, externalPaymentID string) (models.Purchase, error) {
	var p models.Purchase
	err := r.q.QueryRow(ctx,
		`SELECT id, user_id, external_payment_id, credits, created_at
		   FROM purchases WHERE external_payment_id=$1`,
		externalPaymentID,
	).Scan(&p.ID, &p.UserID, &p.ExternalPaymentID, &p.Credits, &p.CreatedAt)
	return p, notFound(err)
}
