package generic

import (
	"strings"
)

// =============================================================================
// SNAPSHOT - Read model handed to every engine
// =============================================================================

// Snapshot is the current state of every collection. Engines take it as an
// explicit argument and never mutate it; new records flow back through the
// store as Ops.
//
// Slices keep insertion order. Lookups are linear; data volumes are small.
type Snapshot struct {
	Accounts          []Account          `json:"accounts"`
	Customers         []Party            `json:"customers"`
	Suppliers         []Party            `json:"suppliers"`
	Employees         []Party            `json:"employees"`
	FreightForwarders []Party            `json:"freightForwarders"`
	ClearingAgents    []Party            `json:"clearingAgents"`
	CommissionAgents  []Party            `json:"commissionAgents"`
	Items             []Item             `json:"items"`
	OriginalTypes     []OriginalType     `json:"originalTypes"`
	OriginalPurchases []OriginalPurchase `json:"originalPurchases"`
	OriginalOpenings  []OriginalOpening  `json:"originalOpenings"`
	Productions       []Production       `json:"productions"`
	SalesInvoices     []SalesInvoice     `json:"salesInvoices"`
	JournalEntries    []JournalEntry     `json:"journalEntries"`

	// Counters holds the next value of every sequence, keyed by counter name.
	Counters map[string]int64 `json:"counters"`
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s *Snapshot) Account(id AccountID) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// AccountsOfKind returns every account of the given kinds, in insertion order.
func (s *Snapshot) AccountsOfKind(kinds ...AccountKind) []Account {
	var out []Account
	for _, a := range s.Accounts {
		for _, k := range kinds {
			if a.Kind == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Parties returns the collection backing an entity type.
func (s *Snapshot) Parties(t EntityType) []Party {
	switch t {
	case EntityCustomer:
		return s.Customers
	case EntitySupplier:
		return s.Suppliers
	case EntityEmployee:
		return s.Employees
	case EntityFreightForwarder:
		return s.FreightForwarders
	case EntityClearingAgent:
		return s.ClearingAgents
	case EntityCommissionAgent:
		return s.CommissionAgents
	}
	return nil
}

func (s *Snapshot) Party(t EntityType, id EntityID) (Party, bool) {
	for _, p := range s.Parties(t) {
		if p.ID == id {
			return p, true
		}
	}
	return Party{}, false
}

// FindParty searches every payable collection for id and reports its type.
func (s *Snapshot) FindParty(id EntityID) (Party, EntityType, bool) {
	for _, t := range orderedEntityTypes {
		if p, ok := s.Party(t, id); ok {
			return p, t, true
		}
	}
	return Party{}, EntityNone, false
}

func (s *Snapshot) Item(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Snapshot) OriginalType(id string) (OriginalType, bool) {
	for _, t := range s.OriginalTypes {
		if t.ID == id {
			return t, true
		}
	}
	return OriginalType{}, false
}

func (s *Snapshot) Purchase(id string) (OriginalPurchase, bool) {
	for _, p := range s.OriginalPurchases {
		if p.ID == id {
			return p, true
		}
	}
	return OriginalPurchase{}, false
}

func (s *Snapshot) Invoice(id VoucherID) (SalesInvoice, bool) {
	for _, inv := range s.SalesInvoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return SalesInvoice{}, false
}

// EntriesForVoucher returns the legs of one voucher in insertion order.
func (s *Snapshot) EntriesForVoucher(id VoucherID) []JournalEntry {
	var out []JournalEntry
	for _, e := range s.JournalEntries {
		if e.VoucherID == id {
			out = append(out, e)
		}
	}
	return out
}

// EntriesWhere returns entries matching f.
func (s *Snapshot) EntriesWhere(f EntryFilter) []JournalEntry {
	var out []JournalEntry
	for _, e := range s.JournalEntries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Counter returns the stored next value of a sequence, or 0 if never used.
func (s *Snapshot) Counter(name string) int64 {
	if s.Counters == nil {
		return 0
	}
	return s.Counters[name]
}

// Clone returns a deep enough copy for callers that stage changes locally.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Accounts:          append([]Account(nil), s.Accounts...),
		Customers:         append([]Party(nil), s.Customers...),
		Suppliers:         append([]Party(nil), s.Suppliers...),
		Employees:         append([]Party(nil), s.Employees...),
		FreightForwarders: append([]Party(nil), s.FreightForwarders...),
		ClearingAgents:    append([]Party(nil), s.ClearingAgents...),
		CommissionAgents:  append([]Party(nil), s.CommissionAgents...),
		Items:             append([]Item(nil), s.Items...),
		OriginalTypes:     append([]OriginalType(nil), s.OriginalTypes...),
		OriginalPurchases: append([]OriginalPurchase(nil), s.OriginalPurchases...),
		OriginalOpenings:  append([]OriginalOpening(nil), s.OriginalOpenings...),
		Productions:       append([]Production(nil), s.Productions...),
		SalesInvoices:     append([]SalesInvoice(nil), s.SalesInvoices...),
		JournalEntries:    append([]JournalEntry(nil), s.JournalEntries...),
		Counters:          make(map[string]int64, len(s.Counters)),
	}
	for k, v := range s.Counters {
		c.Counters[k] = v
	}
	return c
}

// Record is one stored record of a snapshot with its address.
type Record struct {
	Collection Collection
	ID         string
	Value      any
}

// Records returns every record of c in insertion order.
func (s *Snapshot) Records(c Collection) []Record {
	var out []Record
	add := func(id string, v any) { out = append(out, Record{Collection: c, ID: id, Value: v}) }
	switch c {
	case CollAccounts:
		for _, r := range s.Accounts {
			add(string(r.ID), r)
		}
	case CollItems:
		for _, r := range s.Items {
			add(r.ID, r)
		}
	case CollOriginalTypes:
		for _, r := range s.OriginalTypes {
			add(r.ID, r)
		}
	case CollOriginalPurchases:
		for _, r := range s.OriginalPurchases {
			add(r.ID, r)
		}
	case CollOriginalOpenings:
		for _, r := range s.OriginalOpenings {
			add(r.ID, r)
		}
	case CollProductions:
		for _, r := range s.Productions {
			add(r.ID, r)
		}
	case CollSalesInvoices:
		for _, r := range s.SalesInvoices {
			add(string(r.ID), r)
		}
	case CollJournalEntries:
		for _, r := range s.JournalEntries {
			add(string(r.ID), r)
		}
	default:
		for _, t := range EntityTypes() {
			if info, _ := t.Info(); info.Collection == c {
				for _, r := range s.Parties(t) {
					add(string(r.ID), r)
				}
			}
		}
	}
	return out
}

// =============================================================================
// ENTRY FILTER
// =============================================================================

// EntryFilter selects journal entries. Zero fields match everything.
type EntryFilter struct {
	Account       AccountID
	EntityType    EntityType
	EntityID      EntityID
	VoucherPrefix string
	EntryType     EntryType
	Period        Period
}

func (f EntryFilter) Matches(e JournalEntry) bool {
	if f.Account != "" && e.Account != f.Account {
		return false
	}
	if f.EntityType != EntityNone && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.VoucherPrefix != "" && !strings.HasPrefix(string(e.VoucherID), f.VoucherPrefix) {
		return false
	}
	if f.EntryType != "" && e.EntryType != f.EntryType {
		return false
	}
	return f.Period.Contains(e.Date)
}
