package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydit/hydit-backend/internal/repository"
)

// querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so
// every repo works identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepos struct{ q querier }

func (t txRepos) Users() repository.Users               { return &usersRepo{t.q} }
func (t txRepos) Credits() repository.Credits           { return &creditsRepo{t.q} }
func (t txRepos) Transactions() repository.Transactions { return &transactionsRepo{t.q} }
func (t txRepos) Withdrawals() repository.Withdrawals   { return &withdrawalsRepo{t.q} }
func (t txRepos) Purchases() repository.Purchases       { return &purchasesRepo{t.q} }
func (t txRepos) Listings() repository.Listings         { return &listingsRepo{t.q} }
func (t txRepos) Applications() repository.Applications { return &applicationsRepo{t.q} }
func (t txRepos) AuditLogs() repository.AuditLogs       { return &auditLogsRepo{t.q} }

// Store implements repository.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	txRepos
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, txRepos: txRepos{q: pool}}
}

// WithTx runs fn inside one serializable database transaction. Credit
// selection and mutation always happen through the same Tx, which is what
// keeps concurrent spenders from double-selecting the same rows.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(txRepos{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if err == pgx.ErrNoRows {
		return repository.ErrNotFound
	}
	return err
}
