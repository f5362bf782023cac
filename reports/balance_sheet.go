package reports

import (
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// BALANCE SHEET - Assets = Liabilities + Equity
// =============================================================================

// Assets are debit-positive.
type Assets struct {
	Cash        decimal.Decimal `json:"cash"`
	Bank        decimal.Decimal `json:"bank"`
	Receivables decimal.Decimal `json:"receivables"`
	Inventory   decimal.Decimal `json:"inventory"`
	Investments decimal.Decimal `json:"investments"`

	TotalCurrent decimal.Decimal `json:"totalCurrent"`
	Total        decimal.Decimal `json:"total"`
}

// Liabilities are credit-positive.
type Liabilities struct {
	Payables decimal.Decimal `json:"payables"`
	Loans    decimal.Decimal `json:"loans"`

	TotalCurrent  decimal.Decimal `json:"totalCurrent"`
	TotalLongTerm decimal.Decimal `json:"totalLongTerm"`
	Total         decimal.Decimal `json:"total"`
}

// Equity is credit-positive. Capital excludes the opening balance account.
type Equity struct {
	Capital              decimal.Decimal `json:"capital"`
	OpeningBalanceEquity decimal.Decimal `json:"openingBalanceEquity"`
	RetainedEarnings     decimal.Decimal `json:"retainedEarnings"`
	Total                decimal.Decimal `json:"total"`
}

type BalanceSheet struct {
	AsOf        generic.Date `json:"asOf"`
	Assets      Assets       `json:"assets"`
	Liabilities Liabilities  `json:"liabilities"`
	Equity      Equity       `json:"equity"`

	TotalLiabilitiesAndEquity decimal.Decimal `json:"totalLiabilitiesAndEquity"`
	// Balanced reports whether Assets.Total == TotalLiabilitiesAndEquity.
	Balanced bool `json:"balanced"`
}

// Difference is Assets - (Liabilities + Equity). Zero for a sound ledger.
func (bs BalanceSheet) Difference() decimal.Decimal {
	return bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity)
}

// BuildBalanceSheet classifies every account by kind as of asOf. Retained
// earnings are net income from the first entry through asOf.
func BuildBalanceSheet(snap *generic.Snapshot, asOf generic.Date) BalanceSheet {
	bc := generic.NewBalanceCalculator(snap)
	filter := generic.EntryFilter{Period: generic.UpTo(asOf)}
	byAccount := bc.ByAccount(filter)

	debitSum := func(kinds ...generic.AccountKind) decimal.Decimal {
		return bc.SumKinds(filter, kinds...)
	}

	var a Assets
	a.Cash = debitSum(generic.KindCash)
	a.Bank = debitSum(generic.KindBank)
	a.Receivables = debitSum(generic.KindReceivable)
	a.Inventory = debitSum(generic.KindInventory)
	a.Investments = debitSum(generic.KindInvestment)
	a.TotalCurrent = a.Cash.Add(a.Bank).Add(a.Receivables).Add(a.Inventory)
	a.Total = a.TotalCurrent.Add(a.Investments)

	var l Liabilities
	l.Payables = debitSum(generic.KindPayable).Neg()
	l.Loans = debitSum(generic.KindLoan).Neg()
	l.TotalCurrent = l.Payables
	l.TotalLongTerm = l.Loans
	l.Total = l.TotalCurrent.Add(l.TotalLongTerm)

	var e Equity
	e.Capital, e.OpeningBalanceEquity = decimal.Zero, decimal.Zero
	for _, acc := range snap.AccountsOfKind(generic.KindCapital) {
		if acc.ID == generic.AccountOpeningEquity {
			e.OpeningBalanceEquity = byAccount[acc.ID].CreditNet()
			continue
		}
		e.Capital = e.Capital.Add(byAccount[acc.ID].CreditNet())
	}
	e.RetainedEarnings = debitSum(generic.KindRevenue).Neg().Sub(debitSum(generic.KindExpense))
	e.Total = e.Capital.Add(e.OpeningBalanceEquity).Add(e.RetainedEarnings)

	total := l.Total.Add(e.Total)
	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    a,
		Liabilities:               l,
		Equity:                    e,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  a.Total.Equal(total),
	}
}
