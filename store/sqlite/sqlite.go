/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store and generic.TxStore on SQLite. Every collection
  lives in one documents table as JSON; sequence counters live in their own
  table and are advanced by a single atomic statement.

INTERFACES IMPLEMENTED:
  generic.EntityStore: Snapshot, Add, Update, Delete, Batch
  generic.Sequencer:   Reserve, Peek
  generic.TxStore:     WithTx

KEY TABLES:
  documents: (collection, id) -> JSON body, ordered by insertion seq
  counters:  name -> next value

COUNTER RESERVATION:
  INSERT ... ON CONFLICT(name) DO UPDATE SET next_value = next_value + n
  RETURNING next_value

  One statement, so two writers can never read the same value. The first
  number of the block is the returned value minus n.

QUERIES:
  QueryEntries pushes journal filters down to SQLite with json_extract,
  built with squirrel.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  poster := accounting.NewPoster(store, log)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/collections.go: document codec shared with the memory store
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/ledger-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		UNIQUE (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection, seq);

	-- Hot path for statements: journal entries by account and date
	CREATE INDEX IF NOT EXISTS idx_documents_entry_account
		ON documents(json_extract(body, '$.account'), json_extract(body, '$.date'))
		WHERE collection = 'journalEntries';

	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		next_value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTITY STORE (generic.EntityStore interface)
// =============================================================================

func (s *Store) Snapshot(ctx context.Context) (*generic.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(ctx, s.db)
}

func (s *Store) Add(ctx context.Context, c generic.Collection, id string, record any) error {
	return s.Batch(ctx, []generic.Op{generic.AddOp(c, id, record)})
}

func (s *Store) Update(ctx context.Context, c generic.Collection, id string, patch map[string]any) error {
	return s.Batch(ctx, []generic.Op{generic.UpdateOp(c, id, patch)})
}

func (s *Store) Delete(ctx context.Context, c generic.Collection, id string) error {
	return s.Batch(ctx, []generic.Op{generic.DeleteOp(c, id)})
}

// Batch applies ops in one SQL transaction.
func (s *Store) Batch(ctx context.Context, ops []generic.Op) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.Persist("begin batch", err)
	}
	defer sqlTx.Rollback()

	if err := applyAll(ctx, sqlTx, ops); err != nil {
		return err
	}
	return generic.Persist("commit batch", sqlTx.Commit())
}

// =============================================================================
// SEQUENCER (generic.Sequencer interface)
// =============================================================================

func (s *Store) Reserve(ctx context.Context, counter string, n, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reserve(ctx, s.db, counter, n, seed)
}

func (s *Store) Peek(ctx context.Context, counter string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return peek(ctx, s.db, counter)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.Persist("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return generic.Persist("commit transaction", sqlTx.Commit())
}

// txStore runs inside WithTx, which already holds the lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Snapshot(ctx context.Context) (*generic.Snapshot, error) {
	return snapshot(ctx, ts.tx)
}

func (ts *txStore) Add(ctx context.Context, c generic.Collection, id string, record any) error {
	return ts.Batch(ctx, []generic.Op{generic.AddOp(c, id, record)})
}

func (ts *txStore) Update(ctx context.Context, c generic.Collection, id string, patch map[string]any) error {
	return ts.Batch(ctx, []generic.Op{generic.UpdateOp(c, id, patch)})
}

func (ts *txStore) Delete(ctx context.Context, c generic.Collection, id string) error {
	return ts.Batch(ctx, []generic.Op{generic.DeleteOp(c, id)})
}

func (ts *txStore) Batch(ctx context.Context, ops []generic.Op) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return applyAll(ctx, ts.tx, ops)
}

func (ts *txStore) Reserve(ctx context.Context, counter string, n, seed int64) (int64, error) {
	return reserve(ctx, ts.tx, counter, n, seed)
}

func (ts *txStore) Peek(ctx context.Context, counter string) (int64, error) {
	return peek(ctx, ts.tx, counter)
}

// =============================================================================
// QUERIES
// =============================================================================

// QueryEntries returns journal entries matching filter without decoding the
// whole snapshot.
func (s *Store) QueryEntries(ctx context.Context, f generic.EntryFilter) ([]generic.JournalEntry, error) {
	if err := f.Period.Validate(); err != nil {
		return nil, err
	}

	qb := sq.Select("body").
		From("documents").
		Where(sq.Eq{"collection": string(generic.CollJournalEntries)}).
		OrderBy("seq")

	if f.Account != "" {
		qb = qb.Where(sq.Eq{"json_extract(body, '$.account')": string(f.Account)})
	}
	if f.EntityType != generic.EntityNone {
		qb = qb.Where(sq.Eq{"json_extract(body, '$.entityType')": string(f.EntityType)})
	}
	if f.EntityID != "" {
		qb = qb.Where(sq.Eq{"json_extract(body, '$.entityId')": string(f.EntityID)})
	}
	if f.EntryType != "" {
		qb = qb.Where(sq.Eq{"json_extract(body, '$.entryType')": string(f.EntryType)})
	}
	if f.VoucherPrefix != "" {
		qb = qb.Where(sq.Expr("substr(json_extract(body, '$.voucherId'), 1, ?) = ?", len(f.VoucherPrefix), f.VoucherPrefix))
	}
	if !f.Period.Start.IsZero() {
		qb = qb.Where(sq.GtOrEq{"json_extract(body, '$.date')": f.Period.Start.String()})
	}
	if !f.Period.End.IsZero() {
		qb = qb.Where(sq.LtOrEq{"json_extract(body, '$.date')": f.Period.End.String()})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entry query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.Persist("query entries", err)
	}
	defer rows.Close()

	var entries []generic.JournalEntry
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, generic.Persist("scan entry", err)
		}
		var e generic.JournalEntry
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, generic.Persist("query entries", rows.Err())
}

// =============================================================================
// SHARED HELPERS - Used by Store and txStore
// =============================================================================

func snapshot(ctx context.Context, q queryer) (*generic.Snapshot, error) {
	rows, err := q.QueryContext(ctx, "SELECT collection, id, body FROM documents ORDER BY seq")
	if err != nil {
		return nil, generic.Persist("load documents", err)
	}
	defer rows.Close()

	var docs []generic.Document
	for rows.Next() {
		var (
			collection, id, body string
		)
		if err := rows.Scan(&collection, &id, &body); err != nil {
			return nil, generic.Persist("scan document", err)
		}
		docs = append(docs, generic.Document{
			Collection: generic.Collection(collection),
			ID:         id,
			Body:       json.RawMessage(body),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, generic.Persist("load documents", err)
	}

	counters, err := loadCounters(ctx, q)
	if err != nil {
		return nil, err
	}
	return generic.DecodeSnapshot(docs, counters)
}

func loadCounters(ctx context.Context, q queryer) (map[string]int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, next_value FROM counters")
	if err != nil {
		return nil, generic.Persist("load counters", err)
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			next int64
		)
		if err := rows.Scan(&name, &next); err != nil {
			return nil, generic.Persist("scan counter", err)
		}
		counters[name] = next
	}
	return counters, generic.Persist("load counters", rows.Err())
}

func applyAll(ctx context.Context, q queryer, ops []generic.Op) error {
	for _, op := range ops {
		if err := apply(ctx, q, op); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, q queryer, op generic.Op) error {
	switch op.Kind {
	case generic.OpAdd:
		body, err := generic.EncodeRecord(op.ID, op.Record)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
			string(op.Collection), op.ID, string(body))
		if isUniqueConstraintError(err) {
			return &generic.DuplicateError{Collection: op.Collection, ID: op.ID}
		}
		return generic.Persist("add "+string(op.Collection), err)

	case generic.OpUpdate:
		var body string
		err := q.QueryRowContext(ctx,
			"SELECT body FROM documents WHERE collection = ? AND id = ?",
			string(op.Collection), op.ID).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return &generic.NotFoundError{Collection: op.Collection, ID: op.ID}
		}
		if err != nil {
			return generic.Persist("load "+string(op.Collection), err)
		}
		merged, err := generic.MergePatch(json.RawMessage(body), op.Patch)
		if err != nil {
			return fmt.Errorf("patch %s/%s: %w", op.Collection, op.ID, err)
		}
		_, err = q.ExecContext(ctx,
			"UPDATE documents SET body = ? WHERE collection = ? AND id = ?",
			string(merged), string(op.Collection), op.ID)
		return generic.Persist("update "+string(op.Collection), err)

	case generic.OpDelete:
		_, err := q.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?",
			string(op.Collection), op.ID)
		return generic.Persist("delete "+string(op.Collection), err)
	}
	return &generic.ValidationError{Field: "kind", Message: "unknown op kind " + string(op.Kind)}
}

func reserve(ctx context.Context, q queryer, counter string, n, seed int64) (int64, error) {
	if n <= 0 {
		return 0, &generic.ValidationError{Field: "n", Message: "reservation size must be positive"}
	}
	var next int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO counters (name, next_value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET next_value = next_value + ?
		RETURNING next_value`,
		counter, max(seed, 1)+n, n,
	).Scan(&next)
	if err != nil {
		return 0, generic.Persist("reserve "+counter, err)
	}
	return next - n, nil
}

func peek(ctx context.Context, q queryer, counter string) (int64, error) {
	var next int64
	err := q.QueryRowContext(ctx, "SELECT next_value FROM counters WHERE name = ?", counter).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return next, generic.Persist("peek "+counter, err)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
