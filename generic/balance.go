/*
balance.go - Balance calculation from journal entries

PURPOSE:
  Computes account and sub-ledger balances by summing entries. This is the
  central calculation behind every report: "what is on this account as of
  this date?"

KEY INSIGHT:
  A balance is never stored. It is Σdebit and Σcredit over the entries that
  match a filter, and the sign of the net figure depends on the role of the
  account being read:

    Asset / expense / receivable:   Net = debit - credit
    Liability / revenue / payable:  Net = credit - debit

EXAMPLE:
  Customer C1 invoiced 240 (Dr AR 240) then pays 100 (Cr AR 100):

    Balance{Debit: 240, Credit: 100}.Net(RoleReceivable) = 140

SEE ALSO:
  - reports/: statements built on top of BalanceCalculator
  - snapshot.go: EntryFilter
*/
package generic

import "github.com/shopspring/decimal"

// =============================================================================
// BALANCE - Two-sided totals for one filter
// =============================================================================

type Balance struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
	// Entries is the number of entries that contributed.
	Entries int
}

// Add folds one entry into the balance.
func (b Balance) Add(e JournalEntry) Balance {
	return Balance{
		Debit:   b.Debit.Add(e.Debit),
		Credit:  b.Credit.Add(e.Credit),
		Entries: b.Entries + 1,
	}
}

// DebitNet returns debit - credit.
func (b Balance) DebitNet() decimal.Decimal { return b.Debit.Sub(b.Credit) }

// CreditNet returns credit - debit.
func (b Balance) CreditNet() decimal.Decimal { return b.Credit.Sub(b.Debit) }

// Net applies a control-account role. RoleNone reads debit-positive.
func (b Balance) Net(role ControlRole) decimal.Decimal { return role.Signed(b.Debit, b.Credit) }

// =============================================================================
// BALANCE CALCULATOR - Sums entries of a snapshot
// =============================================================================

// BalanceCalculator reads balances from one snapshot.
type BalanceCalculator struct {
	Snapshot *Snapshot
}

func NewBalanceCalculator(snap *Snapshot) *BalanceCalculator {
	return &BalanceCalculator{Snapshot: snap}
}

// Calculate sums every entry matching filter.
func (bc *BalanceCalculator) Calculate(filter EntryFilter) Balance {
	var b Balance
	for _, e := range bc.Snapshot.JournalEntries {
		if filter.Matches(e) {
			b = b.Add(e)
		}
	}
	return b
}

// ByAccount sums every entry matching filter grouped by account.
// The filter's Account field is ignored.
func (bc *BalanceCalculator) ByAccount(filter EntryFilter) map[AccountID]Balance {
	filter.Account = ""
	out := make(map[AccountID]Balance)
	for _, e := range bc.Snapshot.JournalEntries {
		if filter.Matches(e) {
			out[e.Account] = out[e.Account].Add(e)
		}
	}
	return out
}

// ByEntity sums every entry matching filter grouped by entity id.
// Entries without an entity are skipped.
func (bc *BalanceCalculator) ByEntity(filter EntryFilter) map[EntityID]Balance {
	out := make(map[EntityID]Balance)
	for _, e := range bc.Snapshot.JournalEntries {
		if e.EntityID == "" || !filter.Matches(e) {
			continue
		}
		out[e.EntityID] = out[e.EntityID].Add(e)
	}
	return out
}

// SumKinds adds the debit-positive balances of every account of the given
// kinds as of the filter's period.
func (bc *BalanceCalculator) SumKinds(filter EntryFilter, kinds ...AccountKind) decimal.Decimal {
	byAccount := bc.ByAccount(filter)
	total := decimal.Zero
	for _, a := range bc.Snapshot.AccountsOfKind(kinds...) {
		total = total.Add(byAccount[a.ID].DebitNet())
	}
	return total
}
