package reports_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/demo"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/reports"
)

var today = generic.MustParseDate("2025-06-15")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// chart returns a snapshot holding the demo setup records and no activity.
func chart() *generic.Snapshot {
	snap := &generic.Snapshot{
		Accounts:      demo.Accounts(),
		Items:         demo.Items(),
		OriginalTypes: demo.OriginalTypes(),
		Customers: []generic.Party{
			{ID: demo.Customer, Name: "Al Noor Textiles"},
			{ID: demo.OtherCustomer, Name: "Gulf Fibres"},
		},
		Suppliers: []generic.Party{{ID: demo.Supplier, Name: "Delta Cotton Co."}},
	}
	return snap
}

var entrySeq int

// post appends a balanced two-leg voucher.
func post(snap *generic.Snapshot, date generic.Date, debit, credit generic.JournalEntry, amount decimal.Decimal) {
	entrySeq++
	v := generic.VoucherID(fmt.Sprintf("JV-%03d", entrySeq))
	debit.ID, debit.VoucherID, debit.Date, debit.Debit = generic.EntryID(fmt.Sprintf("d-%d", entrySeq)), v, date, amount
	credit.ID, credit.VoucherID, credit.Date, credit.Credit = generic.EntryID(fmt.Sprintf("c-%d", entrySeq)), v, date, amount
	snap.JournalEntries = append(snap.JournalEntries, debit, credit)
}

func leg(account generic.AccountID) generic.JournalEntry {
	return generic.JournalEntry{Account: account, EntryType: generic.EntryJournal}
}

func tagged(account generic.AccountID, t generic.EntityType, id generic.EntityID) generic.JournalEntry {
	e := leg(account)
	e.EntityType, e.EntityID = t, id
	return e
}

// =============================================================================
// BALANCES
// =============================================================================

func TestAccountBalance_RespectsAsOf(t *testing.T) {
	snap := chart()
	post(snap, today.AddDays(-1), leg(demo.Bank), leg(generic.AccountCapital), dec("1000"))
	post(snap, today.AddDays(1), leg(demo.Bank), leg(generic.AccountCapital), dec("50"))

	assert.True(t, reports.AccountBalance(snap, demo.Bank, today).Equal(dec("1000")))
	assert.True(t, reports.AccountBalance(snap, generic.AccountCapital, today).Equal(dec("-1000")))
	assert.True(t, reports.AccountBalance(snap, demo.Bank, today.AddDays(1)).Equal(dec("1050")))
}

func TestEntityBalance_SignFollowsControlRole(t *testing.T) {
	snap := chart()

	// GIVEN: a customer invoiced 240 who paid 100, and a supplier owed 75
	post(snap, today, tagged(generic.AccountReceivable, generic.EntityCustomer, demo.Customer), leg(generic.AccountRevenue), dec("240"))
	post(snap, today, leg(demo.Bank), tagged(generic.AccountReceivable, generic.EntityCustomer, demo.Customer), dec("100"))
	post(snap, today, leg(generic.AccountPurchases), tagged(generic.AccountPayable, generic.EntitySupplier, demo.Supplier), dec("75"))

	// THEN: both read positive under their control account's convention
	assert.True(t, reports.EntityBalance(snap, generic.AccountReceivable, generic.EntityCustomer, today).Equal(dec("140")))
	assert.True(t, reports.EntityBalance(snap, generic.AccountPayable, generic.EntitySupplier, today).Equal(dec("75")))
	assert.True(t, reports.EntityBalanceFor(snap, generic.AccountReceivable, generic.EntityCustomer, demo.Customer, today).Equal(dec("140")))
	assert.True(t, reports.EntityBalanceFor(snap, generic.AccountReceivable, generic.EntityCustomer, demo.OtherCustomer, today).IsZero())
}

func TestEntityBalance_MissingControlAccountUsesEntityRole(t *testing.T) {
	snap := chart()
	kept := snap.Accounts[:0]
	for _, a := range snap.Accounts {
		if a.ID != generic.AccountPayable {
			kept = append(kept, a)
		}
	}
	snap.Accounts = kept

	// GIVEN: a supplier owed 75 on AP, with AP absent from the chart
	post(snap, today, leg(generic.AccountPurchases), tagged(generic.AccountPayable, generic.EntitySupplier, demo.Supplier), dec("75"))

	// THEN: the supplier still reads credit-positive
	assert.True(t, reports.EntityBalance(snap, generic.AccountPayable, generic.EntitySupplier, today).Equal(dec("75")))
	assert.True(t, reports.EntityBalanceFor(snap, generic.AccountPayable, generic.EntitySupplier, demo.Supplier, today).Equal(dec("75")))
	rows, err := reports.PartyBalances(snap, generic.EntitySupplier, today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Balance.Equal(dec("75")))
}

func TestPartyBalances_ListsEveryPartySortedByName(t *testing.T) {
	snap := chart()
	post(snap, today, tagged(generic.AccountReceivable, generic.EntityCustomer, demo.OtherCustomer), leg(generic.AccountRevenue), dec("30"))

	rows, err := reports.PartyBalances(snap, generic.EntityCustomer, today)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Al Noor Textiles", rows[0].Name)
	assert.True(t, rows[0].Balance.IsZero())
	assert.Equal(t, "Gulf Fibres", rows[1].Name)
	assert.True(t, rows[1].Balance.Equal(dec("30")))

	_, err = reports.PartyBalances(snap, "vendor", today)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestNetIncome_OverInclusivePeriod(t *testing.T) {
	snap := chart()
	start := generic.MustParseDate("2025-01-01")
	end := generic.MustParseDate("2025-01-31")

	post(snap, start, tagged(generic.AccountReceivable, generic.EntityCustomer, demo.Customer), leg(generic.AccountRevenue), dec("500"))
	post(snap, end, leg(demo.Rent), leg(demo.Bank), dec("120"))
	post(snap, end.AddDays(1), leg(demo.Utilities), leg(demo.Bank), dec("999"))

	got, err := reports.NetIncome(snap, generic.Period{Start: start, End: end})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("380")), "got %s", got)

	_, err = reports.NetIncome(snap, generic.Period{Start: end, End: start})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

// =============================================================================
// BALANCE SHEET
// =============================================================================

func TestBalanceSheet_ClassifiesAccounts(t *testing.T) {
	snap := chart()
	post(snap, today, leg(demo.Bank), leg(generic.AccountCapital), dec("10000"))
	post(snap, today, leg(generic.AccountInventory), leg(generic.AccountOpeningEquity), dec("900"))
	post(snap, today, leg(generic.AccountPurchases), tagged(generic.AccountPayable, generic.EntitySupplier, demo.Supplier), dec("500"))
	post(snap, today, leg(demo.Cash), leg(demo.Loan), dec("2000"))
	post(snap, today, tagged(generic.AccountReceivable, generic.EntityCustomer, demo.Customer), leg(generic.AccountRevenue), dec("800"))

	bs := reports.BuildBalanceSheet(snap, today)

	assert.True(t, bs.Assets.Total.Equal(dec("13700")))
	assert.True(t, bs.Liabilities.Payables.Equal(dec("500")))
	assert.True(t, bs.Liabilities.Loans.Equal(dec("2000")))
	assert.True(t, bs.Equity.Capital.Equal(dec("10000")))
	assert.True(t, bs.Equity.OpeningBalanceEquity.Equal(dec("900")))
	assert.True(t, bs.Equity.RetainedEarnings.Equal(dec("300")))
	assert.True(t, bs.Balanced)
	assert.True(t, bs.Difference().IsZero())
}

// Any set of balanced vouchers over the chart must satisfy A = L + E.
func TestBalanceSheet_BalancesForRandomLedgers(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	accounts := demo.Accounts()

	for run := 0; run < 50; run++ {
		snap := chart()
		for i := 0; i < 40; i++ {
			dr := accounts[rng.Intn(len(accounts))].ID
			cr := accounts[rng.Intn(len(accounts))].ID
			amount := decimal.New(rng.Int63n(1_000_000)+1, -2)
			date := today.AddDays(rng.Intn(60) - 30)
			post(snap, date, leg(dr), leg(cr), amount)
		}
		bs := reports.BuildBalanceSheet(snap, today)
		require.True(t, bs.Balanced, "run %d off by %s", run, bs.Difference())
	}
}

func TestBalanceSheet_PrintGroupsThousands(t *testing.T) {
	snap := chart()
	post(snap, today, leg(demo.Bank), leg(generic.AccountCapital), dec("1234567.5"))

	var buf bytes.Buffer
	require.NoError(t, reports.BuildBalanceSheet(snap, today).Print(&buf))

	out := buf.String()
	assert.Contains(t, out, "Balance Sheet as of 2025-06-15")
	assert.Contains(t, out, "1,234,567.50")
	assert.NotContains(t, out, "OUT OF BALANCE")
}

// =============================================================================
// STOCK AND PRODUCTION
// =============================================================================

func TestRawStockReport_OnlyBatchesInHand(t *testing.T) {
	snap := chart()
	cotton := demo.CottonPurchaseRecord()
	wool := generic.OriginalPurchase{
		ID:                "op-002",
		BatchKey:          generic.BatchKey{SupplierID: demo.Supplier, OriginalTypeID: demo.RawWool, BatchNumber: "W-1"},
		Date:              cotton.Date.AddDays(5),
		QuantityPurchased: dec("4"),
		Rate:              dec("100"),
	}
	snap.OriginalPurchases = []generic.OriginalPurchase{wool, cotton}
	snap.OriginalOpenings = []generic.OriginalOpening{
		{ID: "oo-1", BatchKey: wool.BatchKey, Opened: dec("4"), TotalKg: dec("800")},
		{ID: "oo-2", BatchKey: cotton.BatchKey, Opened: dec("250"), TotalKg: dec("250")},
	}

	report, err := reports.BuildRawStockReport(snap, reports.StockFilter{})
	require.NoError(t, err)

	// THEN: the fully opened wool batch is omitted
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, demo.CottonPurchase, row.PurchaseID)
	assert.Equal(t, "Delta Cotton Co.", row.SupplierName)
	assert.True(t, row.InHand.Equal(dec("750")))
	assert.True(t, report.TotalInHandKg.Equal(dec("750")))

	filtered, err := reports.BuildRawStockReport(snap, reports.StockFilter{OriginalTypeID: demo.RawWool})
	require.NoError(t, err)
	assert.Empty(t, filtered.Rows)
}

func TestRawStockReport_SharedKeyOpensFirstPurchaseOnly(t *testing.T) {
	snap := chart()
	first := demo.CottonPurchaseRecord()
	second := first
	second.ID = "op-009"
	second.Date = first.Date.AddDays(3)
	snap.OriginalPurchases = []generic.OriginalPurchase{first, second}
	snap.OriginalOpenings = []generic.OriginalOpening{
		{ID: "oo-1", BatchKey: first.BatchKey, Opened: dec("600"), TotalKg: dec("600")},
	}

	report, err := reports.BuildRawStockReport(snap, reports.StockFilter{})
	require.NoError(t, err)

	// THEN: the opening is counted once, against the earlier purchase
	require.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].Opened.Equal(dec("600")))
	assert.True(t, report.Rows[1].Opened.IsZero())
	assert.True(t, report.TotalOpened.Equal(dec("600")))
	want := first.QuantityPurchased.Add(second.QuantityPurchased).Sub(dec("600"))
	assert.True(t, report.TotalInHand.Equal(want), "got %s", report.TotalInHand)
}

func TestDailyProduction_SortedWithTotals(t *testing.T) {
	snap := chart()
	snap.Productions = []generic.Production{
		{ID: "p1", Date: today, ItemID: demo.SackItem, QuantityProduced: dec("2")},
		{ID: "p2", Date: today, ItemID: demo.BaleItem, QuantityProduced: dec("5"), StartBaleNumber: 1, EndBaleNumber: 5},
		{ID: "p3", Date: today.AddDays(-1), ItemID: demo.BaleItem, QuantityProduced: dec("9")},
		{ID: "p4", Date: today, ItemID: demo.KgItem, QuantityProduced: dec("40")},
	}

	report, err := reports.DailyProduction(snap, today)
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, "Cotton Bale 100kg", report.Rows[0].ItemName)
	assert.Equal(t, "Cotton Waste", report.Rows[1].ItemName)
	assert.Equal(t, "Wool Sack 50kg", report.Rows[2].ItemName)
	assert.True(t, report.TotalBales.Equal(dec("5")))
	assert.True(t, report.TotalKg.Equal(dec("640")))
}

// =============================================================================
// FEASIBILITY
// =============================================================================

func invoice(id string, date generic.Date, status generic.InvoiceStatus, item string, qty, rate string) generic.SalesInvoice {
	return generic.SalesInvoice{
		ID: generic.VoucherID(id), Date: date, CustomerID: demo.Customer, Status: status,
		Items: []generic.InvoiceLine{{ItemID: item, Quantity: dec(qty), Rate: dec(rate), Currency: generic.CurrencyUSD}},
	}
}

func TestFeasibility_ScoresAndRanks(t *testing.T) {
	snap := chart()
	period := generic.Period{Start: today.AddDays(-30), End: today}

	// GIVEN: bales made on 2 days (1000 Kg) and sold on 6 invoices (900 Kg at 1.35)
	snap.Productions = []generic.Production{
		{ID: "p1", Date: today.AddDays(-10), ItemID: demo.BaleItem, QuantityProduced: dec("5")},
		{ID: "p2", Date: today.AddDays(-5), ItemID: demo.BaleItem, QuantityProduced: dec("5")},
		{ID: "p3", Date: today.AddDays(-5), ItemID: demo.KgItem, QuantityProduced: dec("100")},
	}
	for i := 0; i < 6; i++ {
		snap.SalesInvoices = append(snap.SalesInvoices,
			invoice(fmt.Sprintf("SI-%03d", i+1), today.AddDays(-i), generic.InvoicePosted, demo.BaleItem, "1.5", "1.35"))
	}
	// AND: an unposted invoice that must be ignored
	snap.SalesInvoices = append(snap.SalesInvoices,
		invoice("SI-099", today, generic.InvoiceUnposted, demo.BaleItem, "100", "9"))

	report, err := reports.Feasibility(snap, period, reports.ItemFilter{})
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	bale := report.Rows[0]
	assert.Equal(t, demo.BaleItem, bale.ItemID)
	assert.Equal(t, 2, bale.ProductionDays)
	assert.Equal(t, 6, bale.SalesInvoices)
	assert.True(t, bale.SoldKg.Equal(dec("900")))
	assert.True(t, bale.AvgSalesPrice.Equal(dec("1.35")))
	assert.True(t, bale.MarginPerKg.Equal(dec("0.45")))
	assert.True(t, bale.ProfitLoss.Equal(dec("405")))
	// 0.45/0.90×50 = 25, +25 frequency, +25 for 1000/900
	assert.InDelta(t, 75.0, bale.Score, 1e-9)
	assert.Equal(t, reports.RatingGood, bale.Rating)

	// THEN: waste produced but never sold scores negative
	waste := report.Rows[1]
	assert.Equal(t, demo.KgItem, waste.ItemID)
	assert.Equal(t, reports.RatingPoor, waste.Rating)
	assert.True(t, report.TotalProfitLoss.Equal(dec("405").Add(waste.ProfitLoss)))
}

func TestFeasibility_CategoryFilter(t *testing.T) {
	snap := chart()
	snap.Items[0].CategoryID = "cat-bales"
	snap.Productions = []generic.Production{
		{ID: "p1", Date: today, ItemID: demo.BaleItem, QuantityProduced: dec("1")},
		{ID: "p2", Date: today, ItemID: demo.KgItem, QuantityProduced: dec("1")},
	}

	report, err := reports.Feasibility(snap, generic.UpTo(today), reports.ItemFilter{CategoryID: "cat-bales"})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, demo.BaleItem, report.Rows[0].ItemID)
}
