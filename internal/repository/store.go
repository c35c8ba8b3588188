package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLStore is the sqlx implementation of Store. Queries are written with '?'
// placeholders and rebound for the connected driver, so the same code runs
// on PostgreSQL and SQLite.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Repositories() Repositories {
	return newRepositories(s.db)
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func newRepositories(db sqlx.ExtContext) Repositories {
	return Repositories{
		Loans:     &loanRepository{db: db},
		Schedule:  &scheduleRepository{db: db},
		Payments:  &paymentRepository{db: db},
		Penalties: &penaltyRepository{db: db},
		Products:  &productRepository{db: db},
	}
}

// isPostgres reports whether row locks are available.
func isPostgres(db sqlx.ExtContext) bool {
	return sqlx.BindType(db.DriverName()) == sqlx.DOLLAR
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
