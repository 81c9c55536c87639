package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultLockTimeout = 5 * time.Second

// Store provides access to queries and transaction scoping.
type Store struct {
	db          *pgxpool.Pool
	queries     *Queries
	lockTimeout time.Duration
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:          db,
		queries:     New(db),
		lockTimeout: defaultLockTimeout,
	}
}

// WithLockTimeout bounds how long a transaction waits on a row lock before
// failing with ErrConcurrentModification.
func (s *Store) WithLockTimeout(d time.Duration) *Store {
	if d > 0 {
		s.lockTimeout = d
	}
	return s
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

// RunInTx executes fn within a database transaction. Lock-wait timeouts,
// serialization failures and deadlocks surface as domain.ErrConcurrentModification.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// MapError translates retryable PostgreSQL failures into domain.ErrConcurrentModification.
func MapError(err error) error {
	if err == nil || errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "55P03", // lock_not_available
		"40001", // serialization_failure
		"40P01": // deadlock_detected
		return fmt.Errorf("%w: %w", domain.ErrConcurrentModification, err)
	default:
		return err
	}
}

// IsUniqueViolation reports whether err is a unique_violation on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}
