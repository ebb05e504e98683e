package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store is a Querier that can also run a function inside a database
// transaction. Services depend on Store so tests can substitute an
// in-memory implementation.
type Store interface {
	Querier

	// ExecTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	ExecTx(ctx context.Context, fn func(Querier) error) error
}

// SQLStore implements Store on a *sql.DB.
type SQLStore struct {
	*Queries
	db *sql.DB
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		Queries: New(db),
		db:      db,
	}
}

// ExecTx runs fn with a Querier bound to a new transaction.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
