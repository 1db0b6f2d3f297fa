// Package store defines the contract the Dispatcher uses to mutate
// user-owned tables transactionally alongside each event's checkpoint, and
// a minimal SQLite-backed implementation sufficient to exercise it. A real
// indexer built on this package typically supplies its own Store wrapping a
// richer schema; this one is deliberately bare.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/riftline/evmsync/internal/logger"
)

// Store is the user-facing record store the Dispatcher opens one
// transaction against per dispatched event. Mutations only ever happen
// inside a Tx handed to a handler; nothing else writes to it.
type Store interface {
	Begin(ctx context.Context) (*sql.Tx, error)

	// Rollback hard-deletes every row with block_number >= fromBlock from
	// every table the store has registered, in one transaction. Called by
	// the Dispatcher when a ReorgEvent invalidates in-flight state.
	Rollback(ctx context.Context, fromBlock uint64) error
}

// SQLStore is the reference Store: a *sql.DB plus the list of
// block-number-keyed tables a reorg rollback must sweep. Tables are
// registered by name, following the same "trusted metadata, not user
// input" assumption as the table names baked into a handler's own SQL.
type SQLStore struct {
	db     *sql.DB
	log    *logger.Logger
	tables []string
}

// New wraps db as a Store. Call RegisterTable for every table a handler
// writes to that should be swept on rollback.
func New(db *sql.DB, log *logger.Logger) *SQLStore {
	return &SQLStore{db: db, log: log.WithComponent("record-store")}
}

// RegisterTable adds table to the set swept by Rollback. table must have a
// block_number column; it is never interpolated from untrusted input.
func (s *SQLStore) RegisterTable(table string) {
	s.tables = append(s.tables, table)
}

func (s *SQLStore) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Rollback mirrors the teacher's BaseIndexer.HandleReorg: one transaction,
// one DELETE per registered table, keyed on block_number.
func (s *SQLStore) Rollback(ctx context.Context, fromBlock uint64) error {
	if len(s.tables) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record store rollback: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("record store rollback: failed to rollback transaction: %v", err)
		}
	}()

	for _, table := range s.tables {
		if strings.ContainsAny(table, " ;'\"") {
			return fmt.Errorf("record store rollback: invalid table name %q", table)
		}
		//nolint:gosec // table comes from RegisterTable, not user input
		query := "DELETE FROM " + table + " WHERE block_number >= ?"
		if _, err := tx.ExecContext(ctx, query, fromBlock); err != nil {
			return fmt.Errorf("record store rollback: delete from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record store rollback: commit: %w", err)
	}

	s.log.Warnw("record store rolled back", "from_block", fromBlock, "tables", s.tables)
	return nil
}
