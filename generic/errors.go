/*
errors.go - Centralized error types for the bookkeeping engines

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engines return these; the API maps them to HTTP statuses.

ERROR CATEGORIES:
  1. Validation errors - missing fields, non-positive amounts, unknown accounts.
     Raised before any record is constructed.
  2. Stock errors - hard blocks (InsufficientStockError) versus confirmable
     warnings (StockWarning). A warning is retried with confirmation.
  3. Computation errors - division by zero in costing. Never NaN/Inf.
  4. Persistence errors - store failures. Always returned, never swallowed.

USAGE:
    if errors.Is(err, generic.ErrStockWarning) {
        // ask the operator, then resend with Confirm: true
    }

SEE ALSO:
  - api/handlers.go: writeDomainError maps these to statuses
  - store.go: stores wrap driver failures in PersistenceError
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrUnbalancedVoucher is returned when a voucher's debits and credits differ.
	ErrUnbalancedVoucher = errors.New("voucher debits and credits differ")

	// ErrInsufficientStock is a hard block: the quantity exceeds what is available.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStockWarning marks an over-draw the operator may confirm.
	ErrStockWarning = errors.New("stock over-draw requires confirmation")

	// ErrDivisionByZero is returned when a per-Kg figure has no weight to divide by.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrBackdatedPosting is returned when a non-admin posts before today.
	ErrBackdatedPosting = errors.New("back-dated posting not allowed")

	// ErrRecordNotFound is returned when a referenced record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when adding a record whose id already exists.
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrInvoiceAlreadyPosted is returned when posting an invoice twice.
	ErrInvoiceAlreadyPosted = errors.New("invoice already posted")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrUnknownCollection is returned for a collection name outside the registry.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrPersistence is the root of every store write/read failure.
	ErrPersistence = errors.New("persistence failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnbalancedVoucherError reports the totals of a rejected voucher.
type UnbalancedVoucherError struct {
	VoucherID VoucherID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *UnbalancedVoucherError) Error() string {
	return fmt.Sprintf("voucher %s unbalanced: debit %s, credit %s", e.VoucherID, e.Debit, e.Credit)
}

func (e *UnbalancedVoucherError) Unwrap() error { return ErrUnbalancedVoucher }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	Subject   string // batch key, purchase id or item id
	Available decimal.Decimal
	Requested decimal.Decimal
	Unit      Unit
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s %s, requested %s %s",
		e.Subject, e.Available, e.Unit, e.Requested, e.Unit)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StockWarning is the confirmable counterpart of InsufficientStockError.
type StockWarning struct {
	Subject   string
	Available decimal.Decimal
	Requested decimal.Decimal
	Unit      Unit
}

func (e *StockWarning) Error() string {
	return fmt.Sprintf("over-draw on %s: available %s %s, requested %s %s; confirm to proceed",
		e.Subject, e.Available, e.Unit, e.Requested, e.Unit)
}

func (e *StockWarning) Unwrap() error { return ErrStockWarning }

// ComputationError reports an arithmetic failure in a derived figure.
type ComputationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// BackdateError reports a posting dated before the earliest allowed day.
type BackdateError struct {
	UserID   string
	Date     Date
	Earliest Date
}

func (e *BackdateError) Error() string {
	return fmt.Sprintf("user %s may not post on %s (earliest %s)", e.UserID, e.Date, e.Earliest)
}

func (e *BackdateError) Unwrap() error { return ErrBackdatedPosting }

// NotFoundError names the missing record.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }

// DuplicateError names the record whose id is already taken.
type DuplicateError struct {
	Collection Collection
	ID         string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Collection, e.ID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateRecord }

// PersistenceError wraps a store failure. errors.Is matches both
// ErrPersistence and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persist wraps err as a PersistenceError unless it already is a domain error.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnbalancedVoucher) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrStockWarning) ||
		errors.Is(err, ErrBackdatedPosting) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrInvoiceAlreadyPosted) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDivisionByZero) ||
		errors.Is(err, ErrUnknownCollection)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsWarning returns true if the operation may be retried with confirmation.
func IsWarning(err error) bool {
	return errors.Is(err, ErrStockWarning)
}
