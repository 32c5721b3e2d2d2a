// Package postgres implements the repository contracts on PostgreSQL using pgx
// directly (no ORM).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the durable repository.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool. The pool is closed by Store.Close.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func repos(db dbtx) repository.Repos {
	return repository.Repos{
		Slots:    &SlotRepository{db: db},
		Bookings: &BookingRepository{db: db},
		Payments: &PaymentRepository{db: db},
		Catalog:  &CatalogRepository{db: db},
		Users:    &UserRepository{db: db},
		Reviews:  &ReviewRepository{db: db},
	}
}

func (s *Store) Repos() repository.Repos {
	return repos(s.pool)
}

// InTx runs fn in a READ COMMITTED transaction. Isolation between concurrent
// units of work comes from row locks (FOR UPDATE and conditional UPDATEs),
// which block the second writer until the first commits or rolls back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, repos(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
