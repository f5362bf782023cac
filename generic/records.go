package generic

import "github.com/shopspring/decimal"

// =============================================================================
// COUNTERPARTIES
// =============================================================================

// Party is a customer, supplier, employee or agent. Which one is decided by
// the collection it lives in, see EntityTypeInfo.Collection.
type Party struct {
	ID              EntityID        `json:"id"`
	Name            string          `json:"name"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

// =============================================================================
// ITEMS - Finished goods
// =============================================================================

type Item struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	CategoryID         string          `json:"categoryId,omitempty"`
	SectionID          string          `json:"sectionId,omitempty"`
	PackingType        Unit            `json:"packingType"`
	BaleSize           decimal.Decimal `json:"baleSize"`
	OpeningStock       decimal.Decimal `json:"openingStock"`
	NextBaleNumber     int64           `json:"nextBaleNumber"`
	AvgProductionPrice decimal.Decimal `json:"avgProductionPrice"`
	AvgSalesPrice      decimal.Decimal `json:"avgSalesPrice"`
	PricesPerKg        bool            `json:"pricesPerKg,omitempty"`
}

// =============================================================================
// RAW MATERIAL LOTS
// =============================================================================

// OriginalType is a raw material grade with its purchase packing.
type OriginalType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PackingType Unit            `json:"packingType"`
	PackingSize decimal.Decimal `json:"packingSize"`
}

// BatchKey identifies a raw-material lot across purchases and openings.
type BatchKey struct {
	SupplierID     EntityID `json:"supplierId"`
	OriginalTypeID string   `json:"originalTypeId"`
	BatchNumber    string   `json:"batchNumber"`
}

func (k BatchKey) String() string {
	return string(k.SupplierID) + "-" + k.OriginalTypeID + "-" + k.BatchNumber
}

// OriginalPurchase is one purchased batch with its landed-cost legs.
// Each optional leg carries its own conversion rate; a zero rate means 1.
type OriginalPurchase struct {
	ID string `json:"id"`
	BatchKey
	Date                   Date            `json:"date"`
	QuantityPurchased      decimal.Decimal `json:"quantityPurchased"`
	Rate                   decimal.Decimal `json:"rate"`
	Currency               Currency        `json:"currency"`
	ConversionRate         decimal.Decimal `json:"conversionRate"`
	FreightAmount          decimal.Decimal `json:"freightAmount"`
	FreightConversionRate  decimal.Decimal `json:"freightConversionRate"`
	ClearingAmount         decimal.Decimal `json:"clearingAmount"`
	ClearingConversionRate decimal.Decimal `json:"clearingConversionRate"`
	CommissionAmount       decimal.Decimal `json:"commissionAmount"`
	CommissionRate         decimal.Decimal `json:"commissionConversionRate"`
	DiscountSurcharge      decimal.Decimal `json:"discountSurcharge"`
}

// OriginalOpening records raw units of a batch opened into production.
type OriginalOpening struct {
	ID string `json:"id"`
	BatchKey
	Date    Date            `json:"date"`
	Opened  decimal.Decimal `json:"opened"`
	TotalKg decimal.Decimal `json:"totalKg"`
}

// =============================================================================
// PRODUCTION
// =============================================================================

// Production is a quantity of an item produced on a date, in the item's
// packing unit. Negative quantities record consumption by re-baling.
// Bales items carry a contiguous [StartBaleNumber, EndBaleNumber] range.
type Production struct {
	ID               string          `json:"id"`
	Date             Date            `json:"date"`
	ItemID           string          `json:"itemId"`
	QuantityProduced decimal.Decimal `json:"quantityProduced"`
	StartBaleNumber  int64           `json:"startBaleNumber,omitempty"`
	EndBaleNumber    int64           `json:"endBaleNumber,omitempty"`
}

// HasBaleRange reports whether a bale range was allocated.
func (p Production) HasBaleRange() bool { return p.StartBaleNumber > 0 && p.EndBaleNumber >= p.StartBaleNumber }

// =============================================================================
// SALES INVOICES
// =============================================================================

// InvoiceStatus is the invoice lifecycle. Only Unposted -> Posted is modeled.
type InvoiceStatus string

const (
	InvoiceUnposted InvoiceStatus = "Unposted"
	InvoicePosted   InvoiceStatus = "Posted"
)

// CountsTowardBalances reports whether the invoice participates in reports.
func (s InvoiceStatus) CountsTowardBalances() bool { return s != InvoiceUnposted && s != "" }

type InvoiceLine struct {
	ItemID         string          `json:"itemId"`
	Quantity       decimal.Decimal `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Currency       Currency        `json:"currency"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
}

// DirectSalesDetails links a raw-material sale to its purchase cost basis.
type DirectSalesDetails struct {
	OriginalPurchaseID   string          `json:"originalPurchaseId"`
	OriginalPurchaseCost decimal.Decimal `json:"originalPurchaseCost"`
}

type SalesInvoice struct {
	ID                 VoucherID           `json:"id"`
	Date               Date                `json:"date"`
	CustomerID         EntityID            `json:"customerId"`
	Items              []InvoiceLine       `json:"items"`
	Status             InvoiceStatus       `json:"status"`
	TotalBales         decimal.Decimal     `json:"totalBales"`
	TotalKg            decimal.Decimal     `json:"totalKg"`
	DirectSalesDetails *DirectSalesDetails `json:"directSalesDetails,omitempty"`
}

// IsDirectSale reports whether the invoice sells raw material straight from a batch.
func (inv SalesInvoice) IsDirectSale() bool { return inv.DirectSalesDetails != nil }

// =============================================================================
// OPENING POSTINGS - Fixed record ids shared by posting and admin tools
// =============================================================================

// OpeningStockProductionID is the production recording an item's opening stock.
func OpeningStockProductionID(itemID string) string { return "prod_open_stock_" + itemID }

// OpeningBalanceVoucher is the voucher of a party's or account's opening balance.
func OpeningBalanceVoucher(id string) VoucherID { return VoucherID("OB-" + id) }

// OpeningStockVoucher is the voucher of an item's opening stock valuation.
func OpeningStockVoucher(itemID string) VoucherID { return VoucherID("OS-" + itemID) }

// OpeningBalanceEntryIDs returns the debit and credit entry ids of an opening balance.
func OpeningBalanceEntryIDs(id string) (EntryID, EntryID) {
	return EntryID("je-d-ob-" + id), EntryID("je-c-ob-" + id)
}

// OpeningStockEntryIDs returns the debit and credit entry ids of an opening stock posting.
func OpeningStockEntryIDs(itemID string) (EntryID, EntryID) {
	return EntryID("je-d-os-" + itemID), EntryID("je-c-os-" + itemID)
}
