/*
store.go - Persistence contracts for collections and sequence counters

PURPOSE:
  Defines the boundary between the engines and the database. Records live
  in flat collections addressable by id; the engines read a Snapshot and
  write back through four primitives plus atomic batches.

KEY INTERFACES:
  EntityStore: Snapshot, Add, Update, Delete, Batch
  Sequencer:   atomic counter reservation for voucher and bale numbers
  Store:       EntityStore + Sequencer
  TxStore:     Store with WithTx for multi-step writes

COUNTERS:
  Reserve(counter, n, seed) hands out the block [first, first+n) and advances
  the counter in one atomic step. Two writers can never receive the same
  number, and numbers are never handed out again, even after the records
  using them are deleted.

  The seed is the first number a fresh counter hands out. Voucher counters
  seed at 1; bale counters seed at the item's stored nextBaleNumber so that
  migrated items continue where they left off.

  AdvanceCounter raises a counter to a floor and never lowers it. Restore
  uses it so restored numbers are not handed out again.

ATOMIC BATCHES:
  Batch applies every Op or none of them. A direct sale (invoice + 4 entries)
  is one Batch.

IMPLEMENTATIONS:
  - generic/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite document store
  - store/redis, store/postgres: alternative Sequencers

SEE ALSO:
  - collections.go: collection registry and document codec
  - ledger.go: balanced voucher writes on top of a Store
*/
package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// OPS - Units of a batch write
// =============================================================================

type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one write in a batch. Record is set for adds, Patch for updates.
type Op struct {
	Kind       OpKind
	Collection Collection
	ID         string
	Record     any
	Patch      map[string]any
}

func AddOp(c Collection, id string, record any) Op {
	return Op{Kind: OpAdd, Collection: c, ID: id, Record: record}
}

func UpdateOp(c Collection, id string, patch map[string]any) Op {
	return Op{Kind: OpUpdate, Collection: c, ID: id, Patch: patch}
}

func DeleteOp(c Collection, id string) Op {
	return Op{Kind: OpDelete, Collection: c, ID: id}
}

// EntryOps returns one add per journal entry.
func EntryOps(entries ...JournalEntry) []Op {
	ops := make([]Op, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, AddOp(CollJournalEntries, string(e.ID), e))
	}
	return ops
}

// Validate checks the op shape before any store touches it.
func (o Op) Validate() error {
	if !o.Collection.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, o.Collection)
	}
	if o.ID == "" {
		return &ValidationError{Field: "id", Message: "op on " + string(o.Collection) + " has no id"}
	}
	switch o.Kind {
	case OpAdd:
		if o.Record == nil {
			return &ValidationError{Field: "record", Message: "add " + o.ID + " has no record"}
		}
	case OpUpdate:
		if len(o.Patch) == 0 {
			return &ValidationError{Field: "patch", Message: "update " + o.ID + " has no fields"}
		}
	case OpDelete:
	default:
		return &ValidationError{Field: "kind", Message: "unknown op kind " + string(o.Kind)}
	}
	return nil
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EntityStore persists flat collections of records.
type EntityStore interface {
	// Snapshot returns the current state of every collection.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Add inserts a record. Fails with ErrDuplicateRecord if id exists.
	Add(ctx context.Context, c Collection, id string, record any) error

	// Update overlays patch onto an existing record.
	// Fails with a NotFoundError if id does not exist.
	Update(ctx context.Context, c Collection, id string, patch map[string]any) error

	// Delete removes a record. Deleting a missing id is not an error.
	Delete(ctx context.Context, c Collection, id string) error

	// Batch applies all ops atomically.
	Batch(ctx context.Context, ops []Op) error
}

// Sequencer hands out monotonically increasing numbers per counter.
type Sequencer interface {
	// Reserve allocates n consecutive numbers and returns the first.
	// seed is the first number handed out by a counter that was never used.
	Reserve(ctx context.Context, counter string, n int64, seed int64) (int64, error)

	// Peek returns the number the next Reserve would start at, or 0 if unused.
	Peek(ctx context.Context, counter string) (int64, error)
}

// Store is the full persistence contract the services depend on.
type Store interface {
	EntityStore
	Sequencer
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the inner Store is undone.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// RunInTx runs fn inside WithTx when s supports it, otherwise directly.
func RunInTx(ctx context.Context, s Store, fn func(Store) error) error {
	if tx, ok := s.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s)
}

// SplitSequencer pairs an EntityStore with a Sequencer from another backend,
// e.g. SQLite documents numbered by Redis counters.
type SplitSequencer struct {
	EntityStore
	Sequencer
}

// AdvanceCounter moves counter forward so that the next reservation starts at
// next or later. A counter already at or past next is left alone; counters
// never move back. Concurrent reservations may push it further, never lower.
func AdvanceCounter(ctx context.Context, seq Sequencer, counter string, next int64) error {
	if next <= 1 {
		return nil
	}
	cur, err := seq.Peek(ctx, counter)
	if err != nil {
		return err
	}
	switch {
	case cur >= next:
		return nil
	case cur == 0:
		// Unused: seeding one below next leaves next as the stored value.
		_, err = seq.Reserve(ctx, counter, 1, next-1)
	default:
		_, err = seq.Reserve(ctx, counter, next-cur, cur)
	}
	return err
}

// Counter names.
const (
	CounterReceipt = "receipt"
	CounterPayment = "payment"
	CounterExpense = "expense"
	CounterInvoice = "invoice"
)

// BaleCounter names the bale-number sequence of an item.
func BaleCounter(itemID string) string { return "bale:" + itemID }
