/*
Package demo holds the standard chart of accounts and a small sample
company used for seeding new databases, API scenarios and tests.

CONTENTS:
  - Setup records: accounts, parties, items, raw material types
  - Sample records: one raw cotton purchase ready to open or sell

  Setup survives a hard reset; samples do not.

SEE ALSO:
  - api/scenarios.go: named scenarios built on these records
*/
package demo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// Well-known ids of the demo company.
const (
	Cash       generic.AccountID = "CASH-001"
	Bank       generic.AccountID = "BANK-001"
	Rent       generic.AccountID = "EXP-001"
	Utilities  generic.AccountID = "EXP-002"
	Loan       generic.AccountID = "LOAN-001"
	Investment generic.AccountID = "INVS-001"

	Customer      generic.EntityID = "cust-001"
	OtherCustomer generic.EntityID = "cust-002"
	Supplier      generic.EntityID = "sup-001"
	Employee      generic.EntityID = "emp-001"
	Forwarder     generic.EntityID = "ff-001"
	ClearingAgent generic.EntityID = "ca-001"
	Commission    generic.EntityID = "cm-001"

	BaleItem = "item-001"
	KgItem   = "item-002"
	SackItem = "item-003"

	RawCotton = "ot-001"
	RawWool   = "ot-002"

	CottonPurchase = "op-001"
	CottonBatch    = "B-001"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Accounts returns the standard chart of accounts.
func Accounts() []generic.Account {
	return []generic.Account{
		{ID: Cash, Name: "Cash in Hand", Kind: generic.KindCash},
		{ID: Bank, Name: "Main Bank Account", Kind: generic.KindBank},
		{ID: generic.AccountReceivable, Name: "Accounts Receivable", Kind: generic.KindReceivable},
		{ID: generic.AccountPayable, Name: "Accounts Payable", Kind: generic.KindPayable},
		{ID: generic.AccountCustomsPayable, Name: "Customs Payable", Kind: generic.KindPayable},
		{ID: generic.AccountRevenue, Name: "Sales Revenue", Kind: generic.KindRevenue},
		{ID: Rent, Name: "Rent", Kind: generic.KindExpense},
		{ID: Utilities, Name: "Utilities", Kind: generic.KindExpense},
		{ID: generic.AccountPurchases, Name: "Purchases", Kind: generic.KindExpense},
		{ID: generic.AccountCOGS, Name: "Cost of Goods Sold", Kind: generic.KindExpense},
		{ID: generic.AccountInventory, Name: "Inventory", Kind: generic.KindInventory},
		{ID: Loan, Name: "Bank Loan", Kind: generic.KindLoan},
		{ID: Investment, Name: "Investments", Kind: generic.KindInvestment},
		{ID: generic.AccountCapital, Name: "Owner's Capital", Kind: generic.KindCapital},
		{ID: generic.AccountOpeningEquity, Name: "Opening Balance Equity", Kind: generic.KindCapital},
	}
}

// Items returns the finished goods of the demo company.
func Items() []generic.Item {
	return []generic.Item{
		{ID: BaleItem, Name: "Cotton Bale 100kg", PackingType: generic.UnitBales, BaleSize: d("100"),
			NextBaleNumber: 1, AvgProductionPrice: d("0.90"), AvgSalesPrice: d("1.20"), PricesPerKg: true},
		{ID: KgItem, Name: "Cotton Waste", PackingType: generic.UnitKg, BaleSize: d("1"),
			AvgProductionPrice: d("0.20"), AvgSalesPrice: d("0.35")},
		{ID: SackItem, Name: "Wool Sack 50kg", PackingType: generic.UnitSacks, BaleSize: d("50"),
			AvgProductionPrice: d("1.10"), AvgSalesPrice: d("1.60"), PricesPerKg: true},
	}
}

// OriginalTypes returns the raw material grades.
func OriginalTypes() []generic.OriginalType {
	return []generic.OriginalType{
		{ID: RawCotton, Name: "Raw Cotton", PackingType: generic.UnitKg, PackingSize: d("1")},
		{ID: RawWool, Name: "Raw Wool", PackingType: generic.UnitBales, PackingSize: d("200")},
	}
}

type party struct {
	t generic.EntityType
	p generic.Party
}

func parties() []party {
	return []party{
		{generic.EntityCustomer, generic.Party{ID: Customer, Name: "Al Noor Textiles"}},
		{generic.EntityCustomer, generic.Party{ID: OtherCustomer, Name: "Gulf Fibres"}},
		{generic.EntitySupplier, generic.Party{ID: Supplier, Name: "Delta Cotton Co."}},
		{generic.EntityEmployee, generic.Party{ID: Employee, Name: "Sara Malik"}},
		{generic.EntityFreightForwarder, generic.Party{ID: Forwarder, Name: "Seaway Freight"}},
		{generic.EntityClearingAgent, generic.Party{ID: ClearingAgent, Name: "Port Clearing LLC"}},
		{generic.EntityCommissionAgent, generic.Party{ID: Commission, Name: "R. Khan Brokers"}},
	}
}

// CottonPurchaseRecord is 1000 Kg of raw cotton at $0.50/Kg, batch B-001.
func CottonPurchaseRecord() generic.OriginalPurchase {
	return generic.OriginalPurchase{
		ID: CottonPurchase,
		BatchKey: generic.BatchKey{
			SupplierID:     Supplier,
			OriginalTypeID: RawCotton,
			BatchNumber:    CottonBatch,
		},
		Date:              generic.MustParseDate("2025-01-10"),
		QuantityPurchased: d("1000"),
		Rate:              d("0.50"),
		Currency:          generic.CurrencyUSD,
		ConversionRate:    d("1"),
	}
}

// SetupOps returns one add per setup record.
func SetupOps() []generic.Op {
	var ops []generic.Op
	for _, a := range Accounts() {
		ops = append(ops, generic.AddOp(generic.CollAccounts, string(a.ID), a))
	}
	for _, p := range parties() {
		info, _ := p.t.Info()
		ops = append(ops, generic.AddOp(info.Collection, string(p.p.ID), p.p))
	}
	for _, it := range Items() {
		ops = append(ops, generic.AddOp(generic.CollItems, it.ID, it))
	}
	for _, t := range OriginalTypes() {
		ops = append(ops, generic.AddOp(generic.CollOriginalTypes, t.ID, t))
	}
	return ops
}

// SampleOps returns the sample transactional records.
func SampleOps() []generic.Op {
	p := CottonPurchaseRecord()
	return []generic.Op{generic.AddOp(generic.CollOriginalPurchases, p.ID, p)}
}

// Seed writes setup records, plus the samples when withSamples is set, in
// one batch.
func Seed(ctx context.Context, s generic.EntityStore, withSamples bool) error {
	ops := SetupOps()
	if withSamples {
		ops = append(ops, SampleOps()...)
	}
	return s.Batch(ctx, ops)
}

// IsEmpty reports whether the store has no chart of accounts yet.
func IsEmpty(ctx context.Context, s generic.EntityStore) (bool, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return len(snap.Accounts) == 0, nil
}
