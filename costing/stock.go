package costing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// BATCH AVAILABILITY - The one place available Kg is computed
// =============================================================================

// BatchStock is the Kg position of one purchase.
//
//	AvailableKg = PurchasedKg - OpenedKg - DirectSoldKg
//
// AvailableKg may be negative after a confirmed over-open; it is never clamped.
type BatchStock struct {
	PurchaseID   string           `json:"purchaseId"`
	Key          generic.BatchKey `json:"batchKey"`
	PurchasedKg  decimal.Decimal  `json:"purchasedKg"`
	OpenedUnits  decimal.Decimal  `json:"openedUnits"`
	OpenedKg     decimal.Decimal  `json:"openedKg"`
	DirectSoldKg decimal.Decimal  `json:"directSoldKg"`
	AvailableKg  decimal.Decimal  `json:"availableKg"`
}

// BatchAvailability computes the Kg position of a purchase.
// Openings are charged as OpeningsOf does; direct sales are matched by
// purchase id and only when the invoice counts toward balances.
func BatchAvailability(snap *generic.Snapshot, purchaseID string) (BatchStock, error) {
	p, t, err := purchaseAndType(snap, purchaseID)
	if err != nil {
		return BatchStock{}, err
	}
	purchasedKg, err := PurchasedKg(p, t)
	if err != nil {
		return BatchStock{}, err
	}

	stock := BatchStock{
		PurchaseID:   p.ID,
		Key:          p.BatchKey,
		PurchasedKg:  purchasedKg,
		DirectSoldKg: directSoldKg(snap, p.ID),
	}
	for _, o := range OpeningsOf(snap, p.ID) {
		stock.OpenedUnits = stock.OpenedUnits.Add(o.Opened)
		stock.OpenedKg = stock.OpenedKg.Add(o.TotalKg)
	}
	stock.AvailableKg = stock.PurchasedKg.Sub(stock.OpenedKg).Sub(stock.DirectSoldKg)
	return stock, nil
}

// OpeningsOf returns the openings charged to a purchase. Openings only record
// a batch key, so each one is charged to the first purchase, in insertion
// order, that carries the key. Later purchases on the same key see none.
func OpeningsOf(snap *generic.Snapshot, purchaseID string) []generic.OriginalOpening {
	p, ok := snap.Purchase(purchaseID)
	if !ok || firstPurchaseOf(snap, p.BatchKey) != purchaseID {
		return nil
	}
	var out []generic.OriginalOpening
	for _, o := range snap.OriginalOpenings {
		if o.BatchKey == p.BatchKey {
			out = append(out, o)
		}
	}
	return out
}

func firstPurchaseOf(snap *generic.Snapshot, key generic.BatchKey) string {
	for _, p := range snap.OriginalPurchases {
		if p.BatchKey == key {
			return p.ID
		}
	}
	return ""
}

func directSoldKg(snap *generic.Snapshot, purchaseID string) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range snap.SalesInvoices {
		if !inv.IsDirectSale() || !inv.Status.CountsTowardBalances() {
			continue
		}
		if inv.DirectSalesDetails.OriginalPurchaseID == purchaseID {
			total = total.Add(inv.TotalKg)
		}
	}
	return total
}

// =============================================================================
// RAW STOCK - Units of a batch key not yet opened or sold
// =============================================================================

// RawStock is the unit position of every purchase sharing a batch key.
type RawStock struct {
	Key             generic.BatchKey `json:"batchKey"`
	Packing         Packing          `json:"-"`
	PurchasedUnits  decimal.Decimal  `json:"purchasedUnits"`
	OpenedUnits     decimal.Decimal  `json:"openedUnits"`
	DirectSoldUnits decimal.Decimal  `json:"directSoldUnits"`
	InHandUnits     decimal.Decimal  `json:"inHandUnits"`
	InHandKg        decimal.Decimal  `json:"inHandKg"`
}

// RawStockOf returns the unit position of a batch key. A key with no
// purchase is a NotFoundError.
func RawStockOf(snap *generic.Snapshot, key generic.BatchKey) (RawStock, error) {
	t, ok := snap.OriginalType(key.OriginalTypeID)
	if !ok {
		return RawStock{}, &generic.NotFoundError{Collection: generic.CollOriginalTypes, ID: key.OriginalTypeID}
	}
	rs := RawStock{Key: key, Packing: TypePacking(t)}

	found := false
	soldKg := decimal.Zero
	for _, p := range snap.OriginalPurchases {
		if p.BatchKey != key {
			continue
		}
		found = true
		rs.PurchasedUnits = rs.PurchasedUnits.Add(p.QuantityPurchased)
		soldKg = soldKg.Add(directSoldKg(snap, p.ID))
	}
	if !found {
		return RawStock{}, &generic.NotFoundError{Collection: generic.CollOriginalPurchases, ID: key.String()}
	}
	for _, o := range snap.OriginalOpenings {
		if o.BatchKey == key {
			rs.OpenedUnits = rs.OpenedUnits.Add(o.Opened)
		}
	}

	var err error
	if rs.DirectSoldUnits, err = rs.Packing.FromKg(soldKg); err != nil {
		return RawStock{}, err
	}
	rs.InHandUnits = rs.PurchasedUnits.Sub(rs.OpenedUnits).Sub(rs.DirectSoldUnits)
	if rs.InHandKg, err = rs.Packing.ToKg(rs.InHandUnits); err != nil {
		return RawStock{}, err
	}
	return rs, nil
}

// =============================================================================
// ITEM STOCK - Finished goods in the item's packing unit
// =============================================================================

// ItemStock returns opening stock + Σproduction - Σsold for an item, in its
// packing unit. Only invoices that count toward balances reduce stock.
// The opening-stock production mirrors OpeningStock and is not added twice.
func ItemStock(snap *generic.Snapshot, itemID string) (decimal.Decimal, error) {
	it, ok := snap.Item(itemID)
	if !ok {
		return decimal.Zero, &generic.NotFoundError{Collection: generic.CollItems, ID: itemID}
	}
	stock := it.OpeningStock
	openingID := generic.OpeningStockProductionID(itemID)
	for _, p := range snap.Productions {
		if p.ItemID == itemID && p.ID != openingID {
			stock = stock.Add(p.QuantityProduced)
		}
	}
	for _, inv := range snap.SalesInvoices {
		if inv.IsDirectSale() || !inv.Status.CountsTowardBalances() {
			continue
		}
		for _, line := range inv.Items {
			if line.ItemID == itemID {
				stock = stock.Sub(line.Quantity)
			}
		}
	}
	return stock, nil
}
