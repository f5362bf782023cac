// Package postgres provides a generic.Sequencer on a PostgreSQL counters table.
//
// Reservation is one UPSERT + RETURNING statement, so the database hands out
// every block exactly once even with many application instances.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/ledger-engine/generic"
)

// Querier interface for database operations. Satisfied by *pgxpool.Pool,
// *pgx.Conn and pgx.Tx. Only the pool is safe to share between goroutines.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_counters (
	name TEXT PRIMARY KEY,
	next_value BIGINT NOT NULL
)`

// Sequencer implements generic.Sequencer.
type Sequencer struct {
	q Querier
}

func New(q Querier) *Sequencer {
	return &Sequencer{q: q}
}

// Connect opens a connection pool on dsn and ensures the schema exists.
// Concurrent requests reserve through the pool; the caller closes it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, *Sequencer, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("store/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("store/postgres: ping: %w", err)
	}
	seq := New(pool)
	if err := seq.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, seq, nil
}

// Migrate creates the counters table.
func (s *Sequencer) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

// Reserve allocates n numbers and returns the first.
func (s *Sequencer) Reserve(ctx context.Context, counter string, n, seed int64) (int64, error) {
	if n <= 0 {
		return 0, &generic.ValidationError{Field: "n", Message: "reservation size must be positive"}
	}
	var next int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO ledger_counters (name, next_value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET next_value = ledger_counters.next_value + $3
		RETURNING next_value
	`, counter, max(seed, 1)+n, n).Scan(&next)
	if err != nil {
		return 0, generic.Persist("postgres reserve "+counter, err)
	}
	// next is one past the end of the block.
	return next - n, nil
}

// Peek returns the next number Reserve would hand out, or 0 if unused.
func (s *Sequencer) Peek(ctx context.Context, counter string) (int64, error) {
	var next int64
	err := s.q.QueryRow(ctx, `SELECT next_value FROM ledger_counters WHERE name = $1`, counter).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, generic.Persist("postgres peek "+counter, err)
	}
	return next, nil
}
