package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/russross/meddler"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx; meddler's Query/Save
// helpers accept either through its own meddler.DB interface, this is
// just the read-only subset Table needs for its non-transactional reads.
type dbtx interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Table is a generic, meddler-backed CRUD surface over one user-owned
// table, for handlers that want more than the bare Store.Begin/Rollback
// pair. T must carry meddler struct tags, the same convention the Cache
// Store's row types use (see internal/cachestore's dbBlock etc).
type Table[T any] interface {
	Create(ctx context.Context, tx *sql.Tx, row *T) error
	Update(ctx context.Context, tx *sql.Tx, row *T) error
	Upsert(ctx context.Context, tx *sql.Tx, row *T) error
	Delete(ctx context.Context, tx *sql.Tx, id any) error

	FindUnique(ctx context.Context, db dbtx, id any) (*T, error)
	FindMany(ctx context.Context, db dbtx, where string, args ...any) ([]*T, error)

	CreateMany(ctx context.Context, tx *sql.Tx, rows []*T) error
	UpdateMany(ctx context.Context, tx *sql.Tx, rows []*T) error
}

// SQLTable is the reference Table implementation: a thin wrapper around
// meddler's struct<->row mapping, generalized from the teacher's
// BaseIndexer.QueryEvents (one hardcoded table per event type, read-only)
// to an arbitrary meddler-tagged struct with full CRUD, keyed by id.
type SQLTable[T any] struct {
	name string
	pk   string
}

// NewSQLTable returns a Table backed by the given table name and primary
// key column. The table must already exist (the Dispatcher's
// SetupHandler is the usual place to create one) and its schema must
// match T's meddler tags.
func NewSQLTable[T any](table, pkColumn string) *SQLTable[T] {
	return &SQLTable[T]{name: table, pk: pkColumn}
}

func (t *SQLTable[T]) Create(ctx context.Context, tx *sql.Tx, row *T) error {
	if err := meddler.Insert(tx, t.name, row); err != nil {
		return fmt.Errorf("table %s: create: %w", t.name, err)
	}
	return nil
}

func (t *SQLTable[T]) Update(ctx context.Context, tx *sql.Tx, row *T) error {
	if err := meddler.Update(tx, t.name, row); err != nil {
		return fmt.Errorf("table %s: update: %w", t.name, err)
	}
	return nil
}

// Upsert relies on meddler.Save's insert-if-unset/update-otherwise
// behavior, keyed on T's primary key field.
func (t *SQLTable[T]) Upsert(ctx context.Context, tx *sql.Tx, row *T) error {
	if err := meddler.Save(tx, t.name, row); err != nil {
		return fmt.Errorf("table %s: upsert: %w", t.name, err)
	}
	return nil
}

func (t *SQLTable[T]) Delete(ctx context.Context, tx *sql.Tx, id any) error {
	//nolint:gosec // table and pk names are fixed at construction, not user input
	query := "DELETE FROM " + t.name + " WHERE " + t.pk + " = ?"
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("table %s: delete: %w", t.name, err)
	}
	return nil
}

func (t *SQLTable[T]) FindUnique(ctx context.Context, db dbtx, id any) (*T, error) {
	var row T
	//nolint:gosec // table and pk names are fixed at construction, not user input
	query := "SELECT * FROM " + t.name + " WHERE " + t.pk + " = ?"
	if err := meddler.QueryRow(db, &row, query, id); err != nil {
		return nil, fmt.Errorf("table %s: find unique: %w", t.name, err)
	}
	return &row, nil
}

func (t *SQLTable[T]) FindMany(ctx context.Context, db dbtx, where string, args ...any) ([]*T, error) {
	//nolint:gosec // table name is fixed at construction, not user input; where is caller-trusted SQL
	query := "SELECT * FROM " + t.name
	if where != "" {
		query += " WHERE " + where
	}

	var rows []*T
	if err := meddler.QueryAll(db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("table %s: find many: %w", t.name, err)
	}
	return rows, nil
}

func (t *SQLTable[T]) CreateMany(ctx context.Context, tx *sql.Tx, rows []*T) error {
	for _, row := range rows {
		if err := t.Create(ctx, tx, row); err != nil {
			return err
		}
	}
	return nil
}

func (t *SQLTable[T]) UpdateMany(ctx context.Context, tx *sql.Tx, rows []*T) error {
	for _, row := range rows {
		if err := t.Update(ctx, tx, row); err != nil {
			return err
		}
	}
	return nil
}
