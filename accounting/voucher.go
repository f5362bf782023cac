/*
voucher.go - Receipt, payment and expense vouchers

PURPOSE:
  Turns one operator request into the two legs of a voucher. BuildVoucher
  is pure: it reads the snapshot, never the store, and either returns both
  legs or an error with nothing built.

VOUCHER SHAPES:
  Receipt:  Dr cash/bank         Cr AR-001 (customer, or misc-receipt)
  Payment:  Dr AP-001 (payee)    Cr cash/bank
  Expense:  Dr expense account   Cr cash/bank

  Both legs carry the base-currency amount (entered × conversion rate).
  OriginalAmount keeps the entered figure for non-USD vouchers only.

NUMBERING:
  RV-001, PV-001, EV-001. Each type has its own counter; the number is
  reserved by Poster after validation succeeds, so a rejected request
  never consumes one.

SEE ALSO:
  - poster.go: validation, reservation and write
  - generic/ledger.go: balance check on every write
*/
package accounting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
)

// MiscReceipt is the counterparty of a receipt not tied to a customer.
const MiscReceipt generic.EntityID = "misc-receipt"

// =============================================================================
// NUMBERING
// =============================================================================

type voucherKind struct {
	prefix  string
	counter string
}

var voucherKinds = map[generic.EntryType]voucherKind{
	generic.EntryReceipt: {prefix: "RV", counter: generic.CounterReceipt},
	generic.EntryPayment: {prefix: "PV", counter: generic.CounterPayment},
	generic.EntryExpense: {prefix: "EV", counter: generic.CounterExpense},
}

// FormatVoucherNumber renders prefix-number ids with at least three digits.
func FormatVoucherNumber(prefix string, n int64) generic.VoucherID {
	return generic.VoucherID(fmt.Sprintf("%s-%03d", prefix, n))
}

// ParseVoucherNumber is the inverse of FormatVoucherNumber. ok is false when
// id does not carry prefix or its suffix is not a positive number.
func ParseVoucherNumber(prefix string, id generic.VoucherID) (n int64, ok bool) {
	rest, found := strings.CutPrefix(string(id), prefix+"-")
	if !found || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// NumberedBy reports the counter that issued a receipt, payment or expense
// voucher id, and its number.
func NumberedBy(id generic.VoucherID) (counter string, n int64, ok bool) {
	for _, k := range voucherKinds {
		if n, ok := ParseVoucherNumber(k.prefix, id); ok {
			return k.counter, n, true
		}
	}
	return "", 0, false
}

// VoucherID returns the id of the n-th voucher of type t, e.g. RV-001.
func VoucherID(t generic.EntryType, n int64) (generic.VoucherID, error) {
	k, ok := voucherKinds[t]
	if !ok {
		return "", unsupportedType(t)
	}
	return FormatVoucherNumber(k.prefix, n), nil
}

// CounterFor returns the sequence name numbering vouchers of type t.
func CounterFor(t generic.EntryType) (string, error) {
	k, ok := voucherKinds[t]
	if !ok {
		return "", unsupportedType(t)
	}
	return k.counter, nil
}

// EntryIDs returns the debit and credit entry ids of a voucher.
func EntryIDs(id generic.VoucherID) (generic.EntryID, generic.EntryID) {
	return generic.EntryID("je-d-" + string(id)), generic.EntryID("je-c-" + string(id))
}

func unsupportedType(t generic.EntryType) error {
	return &generic.ValidationError{Field: "entryType", Message: "vouchers are Receipt, Payment or Expense, got " + string(t)}
}

// =============================================================================
// REQUEST
// =============================================================================

// VoucherRequest is what the operator enters.
//
// Counterparty is a customer id (or MiscReceipt) for receipts, a payee id
// for payments, and an expense account id for expenses.
type VoucherRequest struct {
	Type           generic.EntryType
	Date           generic.Date
	Counterparty   string
	CashBank       generic.AccountID
	Amount         decimal.Decimal
	Currency       generic.Currency
	ConversionRate decimal.Decimal
	Description    string
}

// resolved is a request checked against the snapshot.
type resolved struct {
	amount     decimal.Decimal
	entityType generic.EntityType
}

// Validate checks req against snap without building anything.
func (req VoucherRequest) Validate(snap *generic.Snapshot) error {
	_, err := req.resolve(snap)
	return err
}

func (req VoucherRequest) resolve(snap *generic.Snapshot) (resolved, error) {
	if _, ok := voucherKinds[req.Type]; !ok {
		return resolved{}, unsupportedType(req.Type)
	}
	if req.Date.IsZero() {
		return resolved{}, &generic.ValidationError{Field: "date", Message: "is required"}
	}
	if req.Counterparty == "" {
		return resolved{}, &generic.ValidationError{Field: "counterparty", Message: "is required"}
	}
	if !req.Amount.IsPositive() {
		return resolved{}, &generic.ValidationError{Field: "amount", Message: "must be positive"}
	}
	amount, err := generic.ConvertToBase(req.Amount, req.Currency, req.ConversionRate)
	if err != nil {
		return resolved{}, err
	}

	cash, ok := snap.Account(req.CashBank)
	if !ok {
		return resolved{}, &generic.ValidationError{Field: "cashBank", Message: "unknown account " + string(req.CashBank)}
	}
	if !cash.IsCashOrBank() {
		return resolved{}, &generic.ValidationError{Field: "cashBank", Message: string(req.CashBank) + " is not a cash or bank account"}
	}

	out := resolved{amount: amount}
	switch req.Type {
	case generic.EntryReceipt:
		out.entityType = generic.EntityCustomer
		if generic.EntityID(req.Counterparty) == MiscReceipt {
			break
		}
		if _, ok := snap.Party(generic.EntityCustomer, generic.EntityID(req.Counterparty)); !ok {
			return resolved{}, &generic.ValidationError{Field: "counterparty", Message: "unknown customer " + req.Counterparty}
		}
	case generic.EntryPayment:
		_, t, ok := snap.FindParty(generic.EntityID(req.Counterparty))
		if !ok {
			return resolved{}, &generic.ValidationError{Field: "counterparty", Message: "unknown payee " + req.Counterparty}
		}
		if info, _ := t.Info(); info.Role != generic.RolePayable {
			return resolved{}, &generic.ValidationError{Field: "counterparty", Message: req.Counterparty + " is a " + t.DisplayName() + ", not a payee"}
		}
		out.entityType = t
	case generic.EntryExpense:
		acc, ok := snap.Account(generic.AccountID(req.Counterparty))
		if !ok || acc.Kind != generic.KindExpense {
			return resolved{}, &generic.ValidationError{Field: "counterparty", Message: "unknown expense account " + req.Counterparty}
		}
	}
	return out, nil
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// BuildVoucher returns the debit and credit legs of voucher id.
func BuildVoucher(snap *generic.Snapshot, id generic.VoucherID, req VoucherRequest, user identity.User) (debit, credit generic.JournalEntry, err error) {
	r, err := req.resolve(snap)
	if err != nil {
		return generic.JournalEntry{}, generic.JournalEntry{}, err
	}

	base := generic.JournalEntry{
		VoucherID:   id,
		Date:        req.Date,
		EntryType:   req.Type,
		Description: req.Description,
		CreatedBy:   user.ID,
	}
	if !req.Currency.IsBase() {
		base.OriginalAmount = &generic.OriginalAmount{Amount: req.Amount, Currency: req.Currency}
	}

	debit, credit = base, base
	debit.ID, credit.ID = EntryIDs(id)
	debit.Debit = r.amount
	credit.Credit = r.amount

	switch req.Type {
	case generic.EntryReceipt:
		debit.Account = req.CashBank
		credit.Account = generic.AccountReceivable
		credit.EntityID = generic.EntityID(req.Counterparty)
		credit.EntityType = r.entityType
	case generic.EntryPayment:
		debit.Account = generic.AccountPayable
		debit.EntityID = generic.EntityID(req.Counterparty)
		debit.EntityType = r.entityType
		credit.Account = req.CashBank
	case generic.EntryExpense:
		debit.Account = generic.AccountID(req.Counterparty)
		credit.Account = req.CashBank
	}
	return debit, credit, nil
}
