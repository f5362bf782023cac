package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/demo"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id, voucher, date string, account generic.AccountID, debit, credit int64) generic.JournalEntry {
	return generic.JournalEntry{
		ID:        generic.EntryID(id),
		VoucherID: generic.VoucherID(voucher),
		Date:      generic.MustParseDate(date),
		EntryType: generic.EntryReceipt,
		Account:   account,
		Debit:     decimal.NewFromInt(debit),
		Credit:    decimal.NewFromInt(credit),
	}
}

func TestStore_AddUpdateDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	acc := generic.Account{ID: "BANK-9", Name: "Spare Bank", Kind: generic.KindBank}
	require.NoError(t, s.Add(ctx, generic.CollAccounts, string(acc.ID), acc))

	// Duplicate ids are rejected.
	err := s.Add(ctx, generic.CollAccounts, string(acc.ID), acc)
	assert.ErrorIs(t, err, generic.ErrDuplicateRecord)

	// Update overlays only the patched fields.
	require.NoError(t, s.Update(ctx, generic.CollAccounts, string(acc.ID), map[string]any{"name": "Reserve Bank"}))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	got, ok := snap.Account(acc.ID)
	require.True(t, ok)
	assert.Equal(t, "Reserve Bank", got.Name)
	assert.Equal(t, generic.KindBank, got.Kind)

	err = s.Update(ctx, generic.CollAccounts, "missing", map[string]any{"name": "x"})
	assert.True(t, generic.IsNotFound(err))

	require.NoError(t, s.Delete(ctx, generic.CollAccounts, string(acc.ID)))
	require.NoError(t, s.Delete(ctx, generic.CollAccounts, string(acc.ID)), "deleting twice is not an error")
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
}

func TestStore_BatchIsAtomic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, demo.Seed(ctx, s, false))

	// GIVEN: a batch whose last op collides with an existing account
	ops := []generic.Op{
		generic.AddOp(generic.CollJournalEntries, "je-1", entry("je-1", "RV-001", "2025-01-02", demo.Bank, 10, 0)),
		generic.AddOp(generic.CollAccounts, string(demo.Cash), generic.Account{ID: demo.Cash}),
	}

	// WHEN: it is applied
	err := s.Batch(ctx, ops)

	// THEN: nothing is written
	assert.ErrorIs(t, err, generic.ErrDuplicateRecord)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.JournalEntries)
}

func TestStore_BatchRejectsUnknownCollection(t *testing.T) {
	s := newStore(t)

	err := s.Batch(context.Background(), []generic.Op{generic.DeleteOp("widgets", "w-1")})

	assert.ErrorIs(t, err, generic.ErrUnknownCollection)
}

func TestStore_WithTxRollsBackCounterAndWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: a transaction reserves a number, writes, then fails
	err := s.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.Reserve(ctx, generic.CounterReceipt, 1, 1); err != nil {
			return err
		}
		if err := tx.Add(ctx, generic.CollJournalEntries, "je-1", entry("je-1", "RV-001", "2025-01-02", demo.Bank, 10, 0)); err != nil {
			return err
		}
		return boom
	})

	// THEN: neither the number nor the entry survives
	assert.ErrorIs(t, err, boom)
	next, err := s.Peek(ctx, generic.CounterReceipt)
	require.NoError(t, err)
	assert.Zero(t, next)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.JournalEntries)
}

func TestStore_ReserveBlocks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	counter := generic.BaleCounter(demo.BaleItem)

	a, err := s.Reserve(ctx, counter, 5, 101)
	require.NoError(t, err)
	b, err := s.Reserve(ctx, counter, 2, 101)
	require.NoError(t, err)

	assert.Equal(t, int64(101), a)
	assert.Equal(t, int64(106), b)
	next, err := s.Peek(ctx, counter)
	require.NoError(t, err)
	assert.Equal(t, int64(108), next)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(108), snap.Counter(counter))
}

func TestQueryEntries_MatchesSnapshotFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	entries := []generic.JournalEntry{
		entry("je-d-RV-001", "RV-001", "2025-01-05", demo.Bank, 100, 0),
		entry("je-c-RV-001", "RV-001", "2025-01-05", generic.AccountReceivable, 0, 100),
		entry("je-d-RV-002", "RV-002", "2025-02-10", demo.Bank, 40, 0),
		entry("je-c-RV-002", "RV-002", "2025-02-10", generic.AccountReceivable, 0, 40),
		entry("je-d-PV-001", "PV-001", "2025-03-01", generic.AccountPayable, 25, 0),
		entry("je-c-PV-001", "PV-001", "2025-03-01", demo.Bank, 0, 25),
	}
	entries[1].EntityType, entries[1].EntityID = generic.EntityCustomer, demo.Customer
	entries[3].EntityType, entries[3].EntityID = generic.EntityCustomer, demo.OtherCustomer
	require.NoError(t, s.Batch(ctx, generic.EntryOps(entries...)))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter generic.EntryFilter
		want   int
	}{
		{"account", generic.EntryFilter{Account: demo.Bank}, 3},
		{"account in period", generic.EntryFilter{Account: demo.Bank, Period: generic.Period{
			Start: generic.MustParseDate("2025-02-01"), End: generic.MustParseDate("2025-02-28")}}, 1},
		{"party", generic.EntryFilter{Account: generic.AccountReceivable, EntityType: generic.EntityCustomer, EntityID: demo.Customer}, 1},
		{"voucher prefix", generic.EntryFilter{VoucherPrefix: "PV"}, 2},
		{"up to", generic.EntryFilter{Period: generic.UpTo(generic.MustParseDate("2025-01-31"))}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryEntries(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			assert.Equal(t, snap.EntriesWhere(tt.filter), got)
		})
	}
}

func TestQueryEntries_InvalidPeriod(t *testing.T) {
	s := newStore(t)

	_, err := s.QueryEntries(context.Background(), generic.EntryFilter{Period: generic.Period{
		Start: generic.MustParseDate("2025-03-01"), End: generic.MustParseDate("2025-01-01")}})

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
