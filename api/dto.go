/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request types carry
  validator tags for shape checks (required ids, enums, lengths); amounts,
  dates and stock rules are checked by the domain services so that the
  same rules apply to every caller.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers that are not domain types

FREE TEXT:
  Descriptions are passed through a strict bluemonday policy before they
  reach a journal entry, so stored text never carries markup.

SEE ALSO:
  - handlers.go: decodes and validates these types
*/
package api

import (
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/production"
	"github.com/warp/ledger-engine/sales"
)

var strictText = bluemonday.StrictPolicy()

// sanitize strips every HTML tag from operator text.
func sanitize(s string) string { return strictText.Sanitize(s) }

// =============================================================================
// VOUCHERS
// =============================================================================

type VoucherRequest struct {
	Type            string          `json:"type" validate:"required,oneof=Receipt Payment Expense"`
	Date            generic.Date    `json:"date"`
	Counterparty    string          `json:"counterparty" validate:"required,max=64"`
	CashBankAccount string          `json:"cashBankAccount" validate:"required,max=64"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,oneof=USD AUD GBP AED SAR EUR"`
	ConversionRate  decimal.Decimal `json:"conversionRate"`
	Description     string          `json:"description" validate:"max=500"`
}

func (r VoucherRequest) toDomain() accounting.VoucherRequest {
	return accounting.VoucherRequest{
		Type:           generic.EntryType(r.Type),
		Date:           r.Date,
		Counterparty:   r.Counterparty,
		CashBank:       generic.AccountID(r.CashBankAccount),
		Amount:         r.Amount,
		Currency:       currencyOrBase(r.Currency),
		ConversionRate: r.ConversionRate,
		Description:    sanitize(r.Description),
	}
}

func currencyOrBase(c string) generic.Currency {
	if c == "" {
		return generic.BaseCurrency
	}
	return generic.Currency(c)
}

// OpeningBalanceRequest sets a party's or expense account's opening balance.
// An empty entityType addresses an expense account by id.
type OpeningBalanceRequest struct {
	EntityType string          `json:"entityType" validate:"omitempty,oneof=customer supplier employee freightForwarder clearingAgent commissionAgent"`
	EntityID   string          `json:"entityId" validate:"required,max=64"`
	Amount     decimal.Decimal `json:"amount"`
}

// =============================================================================
// PRODUCTION
// =============================================================================

type LineRequest struct {
	ItemID   string          `json:"itemId" validate:"required,max=64"`
	Quantity decimal.Decimal `json:"quantity"`
}

func toLines(in []LineRequest) []production.Line {
	out := make([]production.Line, len(in))
	for i, l := range in {
		out[i] = production.Line{ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return out
}

// ProductionPlanRequest is a staged plan for one date, finalized in one call.
type ProductionPlanRequest struct {
	Date    generic.Date  `json:"date"`
	Entries []LineRequest `json:"entries" validate:"required,min=1,max=500,dive"`
}

type OpeningRequest struct {
	Date           generic.Date    `json:"date"`
	SupplierID     string          `json:"supplierId" validate:"required,max=64"`
	OriginalTypeID string          `json:"originalTypeId" validate:"required,max=64"`
	BatchNumber    string          `json:"batchNumber" validate:"required,max=64"`
	Opened         decimal.Decimal `json:"opened"`
	Confirm        bool            `json:"confirm"`
}

func (r OpeningRequest) toDomain() production.OpeningRequest {
	return production.OpeningRequest{
		Date: r.Date,
		BatchKey: generic.BatchKey{
			SupplierID:     generic.EntityID(r.SupplierID),
			OriginalTypeID: r.OriginalTypeID,
			BatchNumber:    r.BatchNumber,
		},
		Opened:  r.Opened,
		Confirm: r.Confirm,
	}
}

type RebaleRequest struct {
	Date generic.Date  `json:"date"`
	From []LineRequest `json:"from" validate:"required,min=1,dive"`
	To   []LineRequest `json:"to" validate:"dive"`
}

// =============================================================================
// SALES
// =============================================================================

type DirectSaleRequest struct {
	Date           generic.Date    `json:"date"`
	CustomerID     string          `json:"customerId" validate:"required,max=64"`
	PurchaseID     string          `json:"purchaseId" validate:"required,max=64"`
	QuantityKg     decimal.Decimal `json:"quantityKg"`
	Rate           decimal.Decimal `json:"rate"`
	Currency       string          `json:"currency" validate:"omitempty,oneof=USD AUD GBP AED SAR EUR"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
}

func (r DirectSaleRequest) toDomain() sales.DirectSaleRequest {
	return sales.DirectSaleRequest{
		Date:           r.Date,
		CustomerID:     generic.EntityID(r.CustomerID),
		PurchaseID:     r.PurchaseID,
		QuantityKg:     r.QuantityKg,
		Rate:           r.Rate,
		Currency:       currencyOrBase(r.Currency),
		ConversionRate: r.ConversionRate,
	}
}

type InvoiceLineRequest struct {
	ItemID         string          `json:"itemId" validate:"required,max=64"`
	Quantity       decimal.Decimal `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Currency       string          `json:"currency" validate:"omitempty,oneof=USD AUD GBP AED SAR EUR"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
}

type InvoiceRequest struct {
	Date       generic.Date         `json:"date"`
	CustomerID string               `json:"customerId" validate:"required,max=64"`
	Items      []InvoiceLineRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

func (r InvoiceRequest) toDomain() sales.InvoiceRequest {
	lines := make([]generic.InvoiceLine, len(r.Items))
	for i, l := range r.Items {
		lines[i] = generic.InvoiceLine{
			ItemID:         l.ItemID,
			Quantity:       l.Quantity,
			Rate:           l.Rate,
			Currency:       currencyOrBase(l.Currency),
			ConversionRate: l.ConversionRate,
		}
	}
	return sales.InvoiceRequest{Date: r.Date, CustomerID: generic.EntityID(r.CustomerID), Items: lines}
}

// =============================================================================
// AUTH, SCENARIOS, ERRORS
// =============================================================================

type TokenRequest struct {
	UserID  string `json:"userId" validate:"required,max=64"`
	IsAdmin bool   `json:"isAdmin"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}
