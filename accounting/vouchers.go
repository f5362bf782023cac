package accounting

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// VOUCHER VIEWS
// =============================================================================

// Voucher is one voucher id and its legs. Amount is the debit total.
type Voucher struct {
	ID          generic.VoucherID      `json:"voucherId"`
	Type        generic.EntryType      `json:"type"`
	Date        generic.Date           `json:"date"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Entries     []generic.JournalEntry `json:"entries,omitempty"`
}

func summarize(id generic.VoucherID, entries []generic.JournalEntry) Voucher {
	v := Voucher{ID: id, Amount: decimal.Zero}
	for i, e := range entries {
		if i == 0 {
			v.Type, v.Date, v.Description = e.EntryType, e.Date, e.Description
		}
		v.Amount = v.Amount.Add(e.Debit)
	}
	v.Entries = append([]generic.JournalEntry(nil), entries...)
	return v
}

// VoucherFilter narrows ListVouchers. Zero values match everything.
type VoucherFilter struct {
	Type   generic.EntryType
	Period generic.Period
}

// invoicePrefix marks sales invoice vouchers, which have their own views.
const invoicePrefix = "SI"

// ListVouchers groups journal entries by voucher, newest first.
// Sales invoice vouchers are excluded.
func ListVouchers(snap *generic.Snapshot, filter VoucherFilter) ([]Voucher, error) {
	if err := filter.Period.Validate(); err != nil {
		return nil, err
	}
	entries := snap.EntriesWhere(generic.EntryFilter{EntryType: filter.Type, Period: filter.Period})

	var order []generic.VoucherID
	groups := make(map[generic.VoucherID][]generic.JournalEntry)
	for _, e := range entries {
		if strings.HasPrefix(string(e.VoucherID), invoicePrefix) {
			continue
		}
		if _, seen := groups[e.VoucherID]; !seen {
			order = append(order, e.VoucherID)
		}
		groups[e.VoucherID] = append(groups[e.VoucherID], e)
	}

	out := make([]Voucher, 0, len(order))
	for _, id := range order {
		out = append(out, summarize(id, groups[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// VoucherLine is one leg with the names an operator reads.
type VoucherLine struct {
	generic.JournalEntry
	AccountName    string `json:"accountName"`
	EntityName     string `json:"entityName,omitempty"`
	EntityTypeName string `json:"entityTypeName,omitempty"`
}

// VoucherDetail is a voucher ready for display.
type VoucherDetail struct {
	Voucher
	Lines       []VoucherLine   `json:"lines"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
}

// DescribeVoucher resolves account and party names for every leg. Names
// fall back to the raw id when the record no longer exists.
func DescribeVoucher(snap *generic.Snapshot, id generic.VoucherID) (VoucherDetail, error) {
	entries := snap.EntriesForVoucher(id)
	if len(entries) == 0 {
		return VoucherDetail{}, &generic.NotFoundError{Collection: generic.CollJournalEntries, ID: string(id)}
	}

	detail := VoucherDetail{Voucher: summarize(id, entries)}
	detail.TotalDebit, detail.TotalCredit = generic.Totals(entries)
	for _, e := range entries {
		line := VoucherLine{JournalEntry: e, AccountName: string(e.Account)}
		if acc, ok := snap.Account(e.Account); ok {
			line.AccountName = acc.Name
		}
		if e.EntityID != "" {
			line.EntityName = entityName(snap, e.EntityType, e.EntityID)
			line.EntityTypeName = e.EntityType.DisplayName()
		}
		detail.Lines = append(detail.Lines, line)
	}
	return detail, nil
}

func entityName(snap *generic.Snapshot, t generic.EntityType, id generic.EntityID) string {
	if id == MiscReceipt {
		return "Miscellaneous Receipt"
	}
	if p, ok := snap.Party(t, id); ok {
		return p.Name
	}
	return string(id)
}
