package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/hydit/hydit-backend/internal/models"
	"github.com/hydit/hydit-backend/internal/repository"
)

type usersRepo struct{ q querier }

const userColumns = `id, subject_id, username, fullname, email, role, hydcoin_balance,
	stripe_customer_id, stripe_account_id, transaction_pin_hash, organization, verified,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var pinHash *string
	err := row.Scan(&u.ID, &u.SubjectID, &u.Username, &u.Fullname, &u.Email, &u.Role,
		&u.HydcoinBalance, &u.StripeCustomerID, &u.StripeAccountID, &pinHash,
		&u.Organization, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if pinHash != nil {
		u.TransactionPinHash = *pinHash
	}
	return u, notFound(err)
}

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx,
		`INSERT INTO users(id, subject_id, username, fullname, email, role, organization, verified)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+userColumns,
		u.ID, u.SubjectID, u.Username, u.Fullname, u.Email, u.Role, u.Organization, u.Verified,
	)
	return scanUser(row)
}

func (r *usersRepo) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *usersRepo) GetBySubject(ctx context.Context, subjectID string) (models.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE subject_id=$1`, subjectID))
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id uuid.UUID, up repository.ProfileUpdate) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users
		    SET fullname     = COALESCE($2, fullname),
		        username     = COALESCE($3, username),
		        organization = COALESCE($4, organization),
		        updated_at   = now()
		  WHERE id=$1`,
		id, up.Fullname, up.Username, up.Organization,
	)
	if err == nil && tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return err
}

func (r *usersRepo) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET role=$2, updated_at=now() WHERE id=$1`, id, role)
	return err
}

func (r *usersRepo) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET stripe_customer_id=$2, updated_at=now() WHERE id=$1`, id, customerID)
	return err
}

func (r *usersRepo) SetStripeAccountID(ctx context.Context, id uuid.UUID, accountID string) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET stripe_account_id=$2, updated_at=now() WHERE id=$1`, id, accountID)
	return err
}

func (r *usersRepo) SetPinHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.q.Exec(ctx, `UPDATE users SET transaction_pin_hash=$2, updated_at=now() WHERE id=$1`, id, hash)
	return err
}

func (r *usersRepo) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := r.q.QueryRow(ctx,
		`UPDATE users
		    SET hydcoin_balance = hydcoin_balance + $2,
		        updated_at      = now()
		  WHERE id=$1
		  RETURNING hydcoin_balance`,
		id, delta,
	).Scan(&balance)
	return balance, notFound(err)
}
