/*
Package generic provides the core bookkeeping and stock model.

PURPOSE:

	This package holds the domain-agnostic types every engine works with:
	journal entries, quantities with packing units, currencies, accounts and
	the entity-type table that drives sub-ledger sign conventions. Engines in
	accounting/, costing/, production/, sales/ and reports/ read a Snapshot of
	these records and emit new records through the Store contracts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: a decimal value with a packing unit (Kg, Bales, Sacks, Boxes)
  - Currency: entered currency plus a manually supplied conversion rate
  - JournalEntry: one side of a double-entry posting
  - EntityType: closed set of sub-ledger tags with a lookup table

DESIGN PRINCIPLES:
 1. Precision: decimal.Decimal for all money and weights
 2. Derived balances: nothing here stores a running total
 3. Closed tags: entity types and account kinds are enumerations with tables,
    never free-form strings interpreted at call sites

SEE ALSO:
  - records.go: stock, production and invoice records
  - snapshot.go: the read model handed to every engine
  - ledger.go: balanced voucher persistence
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Value with a packing unit
// =============================================================================

// Unit is the packing unit a quantity is expressed in.
type Unit string

const (
	UnitKg    Unit = "Kg"
	UnitBales Unit = "Bales"
	UnitSacks Unit = "Sacks"
	UnitBoxes Unit = "Boxes"
)

// Valid reports whether u is one of the known packing units.
func (u Unit) Valid() bool {
	switch u {
	case UnitKg, UnitBales, UnitSacks, UnitBoxes:
		return true
	}
	return false
}

// IsPacked reports whether the unit needs a packing size to reach Kg.
func (u Unit) IsPacked() bool { return u.Valid() && u != UnitKg }

type Quantity struct {
	Value decimal.Decimal
	Unit  Unit
}

func NewQuantity(value float64, unit Unit) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewQuantityFromInt(value int64, unit Unit) Quantity {
	return Quantity{Value: decimal.NewFromInt(value), Unit: unit}
}

// MustParseDecimal parses s or returns zero. Intended for constants and tests.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (q Quantity) Zero() Quantity                 { return Quantity{Value: decimal.Zero, Unit: q.Unit} }
func (q Quantity) Add(b Quantity) Quantity        { return Quantity{Value: q.Value.Add(b.Value), Unit: q.Unit} }
func (q Quantity) Sub(b Quantity) Quantity        { return Quantity{Value: q.Value.Sub(b.Value), Unit: q.Unit} }
func (q Quantity) Mul(s decimal.Decimal) Quantity { return Quantity{Value: q.Value.Mul(s), Unit: q.Unit} }
func (q Quantity) Neg() Quantity                  { return Quantity{Value: q.Value.Neg(), Unit: q.Unit} }
func (q Quantity) IsNegative() bool               { return q.Value.IsNegative() }
func (q Quantity) IsZero() bool                   { return q.Value.IsZero() }
func (q Quantity) IsPositive() bool               { return q.Value.IsPositive() }
func (q Quantity) GreaterThan(b Quantity) bool    { return q.Value.GreaterThan(b.Value) }
func (q Quantity) LessThan(b Quantity) bool       { return q.Value.LessThan(b.Value) }

// =============================================================================
// CURRENCY - Manually entered rates, base currency fixed at 1
// =============================================================================

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyAUD Currency = "AUD"
	CurrencyGBP Currency = "GBP"
	CurrencyAED Currency = "AED"
	CurrencySAR Currency = "SAR"
	CurrencyEUR Currency = "EUR"

	BaseCurrency = CurrencyUSD
)

// Suggested rates offered when a currency is picked. Operators may override them.
var defaultConversionRates = map[Currency]decimal.Decimal{
	CurrencyAUD: MustParseDecimal("0.66"),
	CurrencyGBP: MustParseDecimal("1.34"),
	CurrencyAED: MustParseDecimal("0.2725"),
	CurrencySAR: MustParseDecimal("0.27"),
	CurrencyEUR: MustParseDecimal("1.17"),
	CurrencyUSD: decimal.NewFromInt(1),
}

// DefaultConversionRate returns the suggested rate for c, or 1 if unknown.
func DefaultConversionRate(c Currency) decimal.Decimal {
	if r, ok := defaultConversionRates[c]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// IsBase reports whether c is the base currency. An empty currency means base.
func (c Currency) IsBase() bool { return c == "" || c == BaseCurrency }

// ConvertToBase returns amount expressed in the base currency.
// The base currency ignores rate and always converts at 1.
func ConvertToBase(amount decimal.Decimal, currency Currency, rate decimal.Decimal) (decimal.Decimal, error) {
	if currency.IsBase() {
		return amount, nil
	}
	if !rate.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "conversionRate", Message: "must be positive for " + string(currency)}
	}
	return amount.Mul(rate), nil
}

// EffectiveRate returns the rate actually applied for currency.
func EffectiveRate(currency Currency, rate decimal.Decimal) decimal.Decimal {
	if currency.IsBase() {
		return decimal.NewFromInt(1)
	}
	return rate
}

// OriginalAmount keeps the entered figure of a non-base posting.
type OriginalAmount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntityID string
type VoucherID string
type EntryID string

// Control accounts and fixed ledger buckets referenced by the engines.
const (
	AccountReceivable     AccountID = "AR-001"
	AccountPayable        AccountID = "AP-001"
	AccountCustomsPayable AccountID = "AP-002"
	AccountRevenue        AccountID = "REV-001"
	AccountCOGS           AccountID = "EXP-010"
	AccountPurchases      AccountID = "EXP-004"
	AccountInventory      AccountID = "INV-001"
	AccountCapital        AccountID = "CAP-001"
	AccountOpeningEquity  AccountID = "CAP-002"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountKind string

const (
	KindCash       AccountKind = "cash"
	KindBank       AccountKind = "bank"
	KindReceivable AccountKind = "receivable"
	KindPayable    AccountKind = "payable"
	KindRevenue    AccountKind = "revenue"
	KindExpense    AccountKind = "expense"
	KindLoan       AccountKind = "loan"
	KindCapital    AccountKind = "capital"
	KindInvestment AccountKind = "investment"
	KindInventory  AccountKind = "inventory"
)

// Account is a ledger bucket. Its balance is always derived from entries.
type Account struct {
	ID              AccountID       `json:"id"`
	Name            string          `json:"name"`
	Kind            AccountKind     `json:"kind"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

// IsCashOrBank reports whether the account can be the money side of a voucher.
func (a Account) IsCashOrBank() bool { return a.Kind == KindCash || a.Kind == KindBank }

// Role returns the sub-ledger sign convention of a control account.
func (a Account) Role() ControlRole {
	switch a.Kind {
	case KindReceivable:
		return RoleReceivable
	case KindPayable:
		return RolePayable
	}
	return RoleNone
}

// =============================================================================
// ENTITY TYPES - Sub-ledger tags with a fixed lookup table
// =============================================================================

type EntityType string

const (
	EntityNone             EntityType = ""
	EntityCustomer         EntityType = "customer"
	EntitySupplier         EntityType = "supplier"
	EntityEmployee         EntityType = "employee"
	EntityFreightForwarder EntityType = "freightForwarder"
	EntityClearingAgent    EntityType = "clearingAgent"
	EntityCommissionAgent  EntityType = "commissionAgent"
)

// ControlRole decides which side of a control account counts as positive.
type ControlRole int

const (
	RoleNone ControlRole = iota
	RoleReceivable
	RolePayable
)

// Signed applies the role's convention: receivables are debit-positive,
// payables are credit-positive.
func (r ControlRole) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if r == RolePayable {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// EntityTypeInfo is one row of the entity-type table.
type EntityTypeInfo struct {
	DisplayName    string
	Collection     Collection
	Role           ControlRole
	ControlAccount AccountID
}

var entityTypes = map[EntityType]EntityTypeInfo{
	EntityCustomer:         {DisplayName: "Customer", Collection: CollCustomers, Role: RoleReceivable, ControlAccount: AccountReceivable},
	EntitySupplier:         {DisplayName: "Supplier", Collection: CollSuppliers, Role: RolePayable, ControlAccount: AccountPayable},
	EntityEmployee:         {DisplayName: "Employee", Collection: CollEmployees, Role: RolePayable, ControlAccount: AccountPayable},
	EntityFreightForwarder: {DisplayName: "Freight Forwarder", Collection: CollFreightForwarders, Role: RolePayable, ControlAccount: AccountPayable},
	EntityClearingAgent:    {DisplayName: "Clearing Agent", Collection: CollClearingAgents, Role: RolePayable, ControlAccount: AccountPayable},
	EntityCommissionAgent:  {DisplayName: "Commission Agent", Collection: CollCommissionAgents, Role: RolePayable, ControlAccount: AccountPayable},
}

// orderedEntityTypes fixes iteration order for reports and resets.
var orderedEntityTypes = []EntityType{
	EntityCustomer, EntitySupplier, EntityEmployee,
	EntityFreightForwarder, EntityClearingAgent, EntityCommissionAgent,
}

// EntityTypes returns every tagged entity type in display order.
func EntityTypes() []EntityType {
	return append([]EntityType(nil), orderedEntityTypes...)
}

// Info returns the table row for t. EntityNone has no row.
func (t EntityType) Info() (EntityTypeInfo, bool) {
	info, ok := entityTypes[t]
	return info, ok
}

func (t EntityType) Valid() bool {
	_, ok := entityTypes[t]
	return ok
}

func (t EntityType) DisplayName() string {
	if info, ok := entityTypes[t]; ok {
		return info.DisplayName
	}
	return ""
}

// =============================================================================
// JOURNAL ENTRY - One side of a double-entry posting
// =============================================================================

type EntryType string

const (
	EntryReceipt EntryType = "Receipt"
	EntryPayment EntryType = "Payment"
	EntryExpense EntryType = "Expense"
	EntryJournal EntryType = "Journal"
)

// JournalEntry is one leg of a voucher. Exactly one of Debit or Credit is
// non-zero and neither is negative.
type JournalEntry struct {
	ID             EntryID         `json:"id"`
	VoucherID      VoucherID       `json:"voucherId"`
	Date           Date            `json:"date"`
	EntryType      EntryType       `json:"entryType"`
	Account        AccountID       `json:"account"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Description    string          `json:"description"`
	EntityID       EntityID        `json:"entityId,omitempty"`
	EntityType     EntityType      `json:"entityType,omitempty"`
	OriginalAmount *OriginalAmount `json:"originalAmount,omitempty"`
	CreatedBy      string          `json:"createdBy,omitempty"`
}

// Amount returns whichever side carries the value.
func (e JournalEntry) Amount() decimal.Decimal {
	if e.Debit.IsPositive() {
		return e.Debit
	}
	return e.Credit
}

// IsDebit reports whether this is the debit leg.
func (e JournalEntry) IsDebit() bool { return e.Debit.IsPositive() }

// Validate checks the single-sided, non-negative leg invariant.
func (e JournalEntry) Validate() error {
	if e.Account == "" {
		return &ValidationError{Field: "account", Message: "entry " + string(e.ID) + " has no account"}
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return &ValidationError{Field: "amount", Message: "entry " + string(e.ID) + " has a negative side"}
	}
	if e.Debit.IsPositive() == e.Credit.IsPositive() {
		return &ValidationError{Field: "amount", Message: "entry " + string(e.ID) + " must have exactly one non-zero side"}
	}
	return nil
}
