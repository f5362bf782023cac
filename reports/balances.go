/*
Package reports derives statements from a ledger snapshot.

PURPOSE:
  Nothing in this package writes. Every figure is recomputed from journal
  entries (balances and income) or from production and sales records
  (stock and feasibility) of one Snapshot.

SIGN CONVENTIONS:
  AccountBalance is always debit - credit. Sub-ledger balances take their
  sign from the control account's role. Statements present liabilities,
  equity and revenue credit-positive.

SEE ALSO:
  - generic/balance.go: BalanceCalculator
  - balance_sheet.go: the A = L + E check
*/
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// AccountBalance returns Σ(debit - credit) on an account up to asOf.
func AccountBalance(snap *generic.Snapshot, accountID generic.AccountID, asOf generic.Date) decimal.Decimal {
	return generic.NewBalanceCalculator(snap).
		Calculate(generic.EntryFilter{Account: accountID, Period: generic.UpTo(asOf)}).
		DebitNet()
}

// controlRole reads the role off the chart, falling back to the entity
// type's own role when the control account is missing.
func controlRole(snap *generic.Snapshot, controlAccountID generic.AccountID, entityType generic.EntityType) generic.ControlRole {
	if a, ok := snap.Account(controlAccountID); ok {
		return a.Role()
	}
	if info, ok := entityType.Info(); ok {
		return info.Role
	}
	return generic.RoleNone
}

// EntityBalance returns the balance of every entity of entityType on a
// control account, signed by the account's role.
func EntityBalance(snap *generic.Snapshot, controlAccountID generic.AccountID, entityType generic.EntityType, asOf generic.Date) decimal.Decimal {
	b := generic.NewBalanceCalculator(snap).Calculate(generic.EntryFilter{
		Account:    controlAccountID,
		EntityType: entityType,
		Period:     generic.UpTo(asOf),
	})
	return b.Net(controlRole(snap, controlAccountID, entityType))
}

// EntityBalanceFor is EntityBalance narrowed to one entity.
func EntityBalanceFor(snap *generic.Snapshot, controlAccountID generic.AccountID, entityType generic.EntityType, entityID generic.EntityID, asOf generic.Date) decimal.Decimal {
	b := generic.NewBalanceCalculator(snap).Calculate(generic.EntryFilter{
		Account:    controlAccountID,
		EntityType: entityType,
		EntityID:   entityID,
		Period:     generic.UpTo(asOf),
	})
	return b.Net(controlRole(snap, controlAccountID, entityType))
}

// PartyBalance is one row of a sub-ledger listing.
type PartyBalance struct {
	ID      generic.EntityID `json:"id"`
	Name    string           `json:"name"`
	Balance decimal.Decimal  `json:"balance"`
}

// PartyBalances lists every party of entityType with its balance on the
// type's control account, sorted by name.
func PartyBalances(snap *generic.Snapshot, entityType generic.EntityType, asOf generic.Date) ([]PartyBalance, error) {
	info, ok := entityType.Info()
	if !ok {
		return nil, &generic.ValidationError{Field: "entityType", Message: "unknown entity type " + string(entityType)}
	}
	role := controlRole(snap, info.ControlAccount, entityType)
	byEntity := generic.NewBalanceCalculator(snap).ByEntity(generic.EntryFilter{
		Account:    info.ControlAccount,
		EntityType: entityType,
		Period:     generic.UpTo(asOf),
	})

	parties := snap.Parties(entityType)
	rows := make([]PartyBalance, 0, len(parties))
	for _, p := range parties {
		rows = append(rows, PartyBalance{ID: p.ID, Name: p.Name, Balance: byEntity[p.ID].Net(role)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

// =============================================================================
// INCOME
// =============================================================================

type IncomeStatement struct {
	Period    generic.Period  `json:"period"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetIncome decimal.Decimal `json:"netIncome"`
}

// Income returns revenue (credit-positive) and expenses (debit-positive)
// over an inclusive period.
func Income(snap *generic.Snapshot, period generic.Period) (IncomeStatement, error) {
	if err := period.Validate(); err != nil {
		return IncomeStatement{}, err
	}
	bc := generic.NewBalanceCalculator(snap)
	filter := generic.EntryFilter{Period: period}
	revenue := bc.SumKinds(filter, generic.KindRevenue).Neg()
	expenses := bc.SumKinds(filter, generic.KindExpense)
	return IncomeStatement{
		Period:    period,
		Revenue:   revenue,
		Expenses:  expenses,
		NetIncome: revenue.Sub(expenses),
	}, nil
}

// NetIncome = Σ(credit - debit) over revenue - Σ(debit - credit) over expense.
func NetIncome(snap *generic.Snapshot, period generic.Period) (decimal.Decimal, error) {
	s, err := Income(snap, period)
	if err != nil {
		return decimal.Zero, err
	}
	return s.NetIncome, nil
}
