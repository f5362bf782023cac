/*
generic_test.go - Tests for the journal core

Tests for:
- Voucher balance and leg invariants (CheckBalanced, Ledger.Post)
- Role-signed balances and grouped sums
- Currency conversion, dates and periods
- The document codec used by every store
- Error classification
*/
package generic_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var day = generic.MustParseDate("2025-03-10")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func leg(id, voucher string, account generic.AccountID, debit, credit string) generic.JournalEntry {
	return generic.JournalEntry{
		ID:        generic.EntryID(id),
		VoucherID: generic.VoucherID(voucher),
		Date:      day,
		EntryType: generic.EntryJournal,
		Account:   account,
		Debit:     dec(debit),
		Credit:    dec(credit),
	}
}

// =============================================================================
// VOUCHER INVARIANTS
// =============================================================================

func TestCheckBalanced(t *testing.T) {
	tests := []struct {
		name    string
		entries []generic.JournalEntry
		wantErr error
	}{
		{
			name: "balanced pair",
			entries: []generic.JournalEntry{
				leg("d", "JV-1", "BANK-001", "100", "0"),
				leg("c", "JV-1", "AR-001", "0", "100"),
			},
		},
		{
			name: "two vouchers, each balanced",
			entries: []generic.JournalEntry{
				leg("d1", "JV-1", "BANK-001", "10", "0"),
				leg("d2", "JV-2", "EXP-001", "5", "0"),
				leg("c1", "JV-1", "AR-001", "0", "10"),
				leg("c2", "JV-2", "CASH-001", "0", "5"),
			},
		},
		{
			name: "unbalanced",
			entries: []generic.JournalEntry{
				leg("d", "JV-1", "BANK-001", "100", "0"),
				leg("c", "JV-1", "AR-001", "0", "99.99"),
			},
			wantErr: generic.ErrUnbalancedVoucher,
		},
		{
			name:    "both sides on one leg",
			entries: []generic.JournalEntry{leg("d", "JV-1", "BANK-001", "1", "1")},
			wantErr: generic.ErrValidation,
		},
		{
			name:    "negative side",
			entries: []generic.JournalEntry{leg("d", "JV-1", "BANK-001", "-1", "0")},
			wantErr: generic.ErrValidation,
		},
		{
			name:    "no voucher id",
			entries: []generic.JournalEntry{leg("d", "", "BANK-001", "1", "0")},
			wantErr: generic.ErrValidation,
		},
		{
			name:    "empty",
			wantErr: generic.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generic.CheckBalanced(tt.entries)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckBalanced_ReportsTotals(t *testing.T) {
	err := generic.CheckBalanced([]generic.JournalEntry{
		leg("d", "JV-7", "BANK-001", "100", "0"),
		leg("c", "JV-7", "AR-001", "0", "60"),
	})

	var ue *generic.UnbalancedVoucherError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, generic.VoucherID("JV-7"), ue.VoucherID)
	assert.True(t, ue.Debit.Equal(dec("100")))
	assert.True(t, ue.Credit.Equal(dec("60")))
}

func TestLedgerPost_WritesEntriesAndExtrasTogether(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	ledger := generic.NewLedger(s)

	// GIVEN: a balanced voucher and an invoice record posted with it
	inv := generic.SalesInvoice{ID: "SI-001", Date: day, CustomerID: "cust-1", Status: generic.InvoicePosted}
	entries := []generic.JournalEntry{
		leg("je-d-SI-001", "SI-001", "AR-001", "240", "0"),
		leg("je-c-SI-001", "SI-001", "REV-001", "0", "240"),
	}

	// WHEN
	require.NoError(t, ledger.Post(ctx, entries, generic.AddOp(generic.CollSalesInvoices, "SI-001", inv)))

	// THEN: both are stored and the voucher reads back
	legs, err := ledger.Voucher(ctx, "SI-001")
	require.NoError(t, err)
	assert.Len(t, legs, 2)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	_, ok := snap.Invoice("SI-001")
	assert.True(t, ok)
}

func TestLedgerPost_UnbalancedWritesNothing(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	ledger := generic.NewLedger(s)

	err := ledger.Post(ctx,
		[]generic.JournalEntry{leg("d", "JV-1", "BANK-001", "5", "0")},
		generic.AddOp(generic.CollSalesInvoices, "SI-009", generic.SalesInvoice{ID: "SI-009"}),
	)

	assert.ErrorIs(t, err, generic.ErrUnbalancedVoucher)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.JournalEntries)
	assert.Empty(t, snap.SalesInvoices)

	_, err = ledger.Voucher(ctx, "JV-1")
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// BALANCES
// =============================================================================

func TestBalance_RoleSigns(t *testing.T) {
	// Customer invoiced 240, pays 100.
	b := generic.Balance{Debit: dec("240"), Credit: dec("100")}

	assert.True(t, b.Net(generic.RoleReceivable).Equal(dec("140")))
	assert.True(t, b.Net(generic.RolePayable).Equal(dec("-140")))
	assert.True(t, b.Net(generic.RoleNone).Equal(b.DebitNet()))
	assert.True(t, b.CreditNet().Equal(dec("-140")))
}

func TestBalanceCalculator_GroupsByEntityAndKind(t *testing.T) {
	snap := &generic.Snapshot{
		Accounts: []generic.Account{
			{ID: "CASH-001", Kind: generic.KindCash},
			{ID: "BANK-001", Kind: generic.KindBank},
			{ID: "AR-001", Kind: generic.KindReceivable},
		},
	}
	ar1 := leg("c1", "RV-1", "AR-001", "0", "30")
	ar1.EntityType, ar1.EntityID = generic.EntityCustomer, "cust-1"
	ar2 := leg("d2", "SI-1", "AR-001", "100", "0")
	ar2.EntityType, ar2.EntityID = generic.EntityCustomer, "cust-2"
	snap.JournalEntries = []generic.JournalEntry{
		leg("d1", "RV-1", "CASH-001", "30", "0"), ar1,
		ar2, leg("c2", "SI-1", "REV-001", "0", "100"),
		leg("d3", "JV-1", "BANK-001", "7", "0"), leg("c3", "JV-1", "CASH-001", "0", "7"),
	}
	bc := generic.NewBalanceCalculator(snap)

	byEntity := bc.ByEntity(generic.EntryFilter{Account: "AR-001"})
	assert.True(t, byEntity["cust-1"].Net(generic.RoleReceivable).Equal(dec("-30")))
	assert.True(t, byEntity["cust-2"].Net(generic.RoleReceivable).Equal(dec("100")))

	cashAndBank := bc.SumKinds(generic.EntryFilter{}, generic.KindCash, generic.KindBank)
	assert.True(t, cashAndBank.Equal(dec("30")))

	cash := bc.Calculate(generic.EntryFilter{Account: "CASH-001"})
	assert.Equal(t, 2, cash.Entries)
	assert.True(t, cash.DebitNet().Equal(dec("23")))
}

// =============================================================================
// CURRENCY, DATES, PERIODS
// =============================================================================

func TestConvertToBase(t *testing.T) {
	got, err := generic.ConvertToBase(dec("100"), generic.CurrencyUSD, dec("9"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100")), "base currency ignores the rate")

	got, err = generic.ConvertToBase(dec("100"), generic.CurrencyEUR, dec("1.17"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("117")))

	_, err = generic.ConvertToBase(dec("100"), generic.CurrencyGBP, decimal.Zero)
	assert.ErrorIs(t, err, generic.ErrValidation)

	assert.True(t, generic.EffectiveRate(generic.CurrencyUSD, dec("3")).Equal(decimal.NewFromInt(1)))
	assert.True(t, generic.DefaultConversionRate(generic.CurrencyAED).Equal(dec("0.2725")))
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D generic.Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2025-02-28"}`), &v))
	assert.Equal(t, "2025-02-28", v.D.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-02-28"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"d":"28/02/2025"}`), &v))
}

func TestPeriod(t *testing.T) {
	p := generic.Period{Start: generic.MustParseDate("2025-01-01"), End: generic.MustParseDate("2025-01-31")}

	assert.True(t, p.Contains(generic.MustParseDate("2025-01-01")), "start is inclusive")
	assert.True(t, p.Contains(generic.MustParseDate("2025-01-31")), "end is inclusive")
	assert.False(t, p.Contains(generic.MustParseDate("2025-02-01")))
	assert.True(t, generic.UpTo(day).Contains(generic.MustParseDate("1999-12-31")))

	bad := generic.Period{Start: p.End, End: p.Start}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)

	ytd := generic.YearToDate(day)
	assert.Equal(t, "2025-01-01", ytd.Start.String())
}

// =============================================================================
// DOCUMENT CODEC
// =============================================================================

func TestMergePatch_KeepsIDAndNumberPrecision(t *testing.T) {
	body := json.RawMessage(`{"id":"item-1","name":"Old","nextBaleNumber":12345678901234567}`)

	merged, err := generic.MergePatch(body, map[string]any{"name": "New", "id": "other"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"item-1","name":"New","nextBaleNumber":12345678901234567}`, string(merged))
	assert.Contains(t, string(merged), "12345678901234567", "numbers are not rounded through float64")
}

func TestEncodeRecord_IDMustMatch(t *testing.T) {
	_, err := generic.EncodeRecord("acc-1", generic.Account{ID: "acc-2"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	body, err := generic.EncodeRecord("acc-1", generic.Account{ID: "acc-1", Name: "Cash"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"name":"Cash"`)
}

func TestDecodeSnapshot_UnknownCollection(t *testing.T) {
	_, err := generic.DecodeSnapshot([]generic.Document{{Collection: "widgets", ID: "w", Body: json.RawMessage(`{"id":"w"}`)}}, nil)
	assert.ErrorIs(t, err, generic.ErrUnknownCollection)

	_, err = generic.LookupCollection("journalEntries")
	assert.NoError(t, err)
}

func TestSnapshotRecords_CoversPartyCollections(t *testing.T) {
	snap := &generic.Snapshot{
		Suppliers:        []generic.Party{{ID: "sup-1", Name: "Delta"}},
		CommissionAgents: []generic.Party{{ID: "cm-1"}, {ID: "cm-2"}},
	}

	assert.Len(t, snap.Records(generic.CollSuppliers), 1)
	recs := snap.Records(generic.CollCommissionAgents)
	require.Len(t, recs, 2)
	assert.Equal(t, "cm-2", recs[1].ID)
	assert.Empty(t, snap.Records(generic.CollCustomers))
}

func TestNewID_PrefixedAndUnique(t *testing.T) {
	a, b := generic.NewID("req_"), generic.NewID("req_")

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestPersist(t *testing.T) {
	cause := errors.New("disk full")

	err := generic.Persist("add entries", cause)
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.False(t, generic.IsClientError(err))

	// Domain errors pass through untouched.
	nf := &generic.NotFoundError{Collection: generic.CollItems, ID: "x"}
	assert.Same(t, nf, generic.Persist("load", nf))
	assert.NoError(t, generic.Persist("noop", nil))
}

func TestErrorClassification(t *testing.T) {
	warning := &generic.StockWarning{Subject: "B-001", Available: dec("5"), Requested: dec("6"), Unit: generic.UnitBales}
	assert.True(t, generic.IsWarning(warning))
	assert.True(t, generic.IsClientError(warning))
	assert.Contains(t, warning.Error(), "confirm")

	block := &generic.InsufficientStockError{Subject: "op-1", Available: dec("1"), Requested: dec("2"), Unit: generic.UnitKg}
	assert.False(t, generic.IsWarning(block))
	assert.ErrorIs(t, block, generic.ErrInsufficientStock)

	assert.ErrorIs(t, &generic.BackdateError{UserID: "u"}, generic.ErrBackdatedPosting)
	assert.ErrorIs(t, &generic.DuplicateError{Collection: generic.CollItems, ID: "i"}, generic.ErrDuplicateRecord)
}
