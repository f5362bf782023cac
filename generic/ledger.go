/*
ledger.go - Balanced journal vouchers

PURPOSE:
  The journal is the source of truth for every balance. Account, entity and
  statement figures are always computed by summing entries; there is no
  stored running total that could drift.

CRITICAL INVARIANTS:
  1. BALANCED: for every voucher, sum(debit) == sum(credit)
  2. SINGLE-SIDED: each entry has exactly one non-zero side, never negative
  3. ALL-OR-NOTHING: a voucher's entries are written in one Batch

CORRECTIONS:
  Amounts are never edited in place. A correction deletes the pair and
  posts a new one. Deletion only happens through admin tools.

SEE ALSO:
  - store.go: low-level persistence
  - accounting/: builds vouchers from business events
*/
package generic

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Journal entry persistence
// =============================================================================

type Ledger interface {
	// Post writes entries after checking every voucher among them balances.
	// extra ops (invoice records, counters) are written in the same batch.
	Post(ctx context.Context, entries []JournalEntry, extra ...Op) error

	// Entries returns entries matching filter, in insertion order.
	Entries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error)

	// Voucher returns the legs of one voucher.
	Voucher(ctx context.Context, id VoucherID) ([]JournalEntry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using EntityStore
// =============================================================================

type DefaultLedger struct {
	Store EntityStore
}

func NewLedger(store EntityStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Post(ctx context.Context, entries []JournalEntry, extra ...Op) error {
	if err := CheckBalanced(entries); err != nil {
		return err
	}
	ops := append(append([]Op(nil), extra...), EntryOps(entries...)...)
	return l.Store.Batch(ctx, ops)
}

func (l *DefaultLedger) Entries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error) {
	if err := filter.Period.Validate(); err != nil {
		return nil, err
	}
	snap, err := l.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.EntriesWhere(filter), nil
}

func (l *DefaultLedger) Voucher(ctx context.Context, id VoucherID) ([]JournalEntry, error) {
	snap, err := l.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	legs := snap.EntriesForVoucher(id)
	if len(legs) == 0 {
		return nil, &NotFoundError{Collection: CollJournalEntries, ID: string(id)}
	}
	return legs, nil
}

// CheckBalanced validates every entry and verifies that each voucher in the
// set has equal debit and credit totals.
func CheckBalanced(entries []JournalEntry) error {
	if len(entries) == 0 {
		return &ValidationError{Field: "entries", Message: "voucher has no entries"}
	}
	type totals struct{ debit, credit decimal.Decimal }
	byVoucher := make(map[VoucherID]*totals)
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		if e.VoucherID == "" {
			return &ValidationError{Field: "voucherId", Message: "entry " + string(e.ID) + " has no voucher"}
		}
		t, ok := byVoucher[e.VoucherID]
		if !ok {
			t = &totals{}
			byVoucher[e.VoucherID] = t
		}
		t.debit = t.debit.Add(e.Debit)
		t.credit = t.credit.Add(e.Credit)
	}

	ids := make([]string, 0, len(byVoucher))
	for id := range byVoucher {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := byVoucher[VoucherID(id)]
		if !t.debit.Equal(t.credit) {
			return &UnbalancedVoucherError{VoucherID: VoucherID(id), Debit: t.debit, Credit: t.credit}
		}
	}
	return nil
}

// Totals sums both sides of a set of entries.
func Totals(entries []JournalEntry) (debit, credit decimal.Decimal) {
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}
