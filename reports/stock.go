package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// RAW STOCK IN HAND
// =============================================================================

// StockFilter narrows the raw stock report. Zero fields match everything.
type StockFilter struct {
	SupplierID     generic.EntityID
	OriginalTypeID string
}

type RawStockRow struct {
	PurchaseID       string           `json:"purchaseId"`
	Date             generic.Date     `json:"date"`
	Key              generic.BatchKey `json:"batchKey"`
	SupplierName     string           `json:"supplierName"`
	OriginalTypeName string           `json:"originalTypeName"`
	Rate             decimal.Decimal  `json:"rate"`
	Purchased        decimal.Decimal  `json:"purchased"`
	Opened           decimal.Decimal  `json:"opened"`
	DirectSold       decimal.Decimal  `json:"directSold"`
	InHand           decimal.Decimal  `json:"inHand"`
	InHandKg         decimal.Decimal  `json:"inHandKg"`
}

type RawStockReport struct {
	Rows           []RawStockRow   `json:"rows"`
	TotalPurchased decimal.Decimal `json:"totalPurchased"`
	TotalOpened    decimal.Decimal `json:"totalOpened"`
	TotalInHand    decimal.Decimal `json:"totalInHand"`
	TotalInHandKg  decimal.Decimal `json:"totalInHandKg"`
}

// BuildRawStockReport lists every purchase that still has units in hand,
// oldest first. Quantities are in the original type's packing unit.
func BuildRawStockReport(snap *generic.Snapshot, filter StockFilter) (RawStockReport, error) {
	report := RawStockReport{Rows: []RawStockRow{}}
	for _, p := range snap.OriginalPurchases {
		if filter.SupplierID != "" && p.SupplierID != filter.SupplierID {
			continue
		}
		if filter.OriginalTypeID != "" && p.OriginalTypeID != filter.OriginalTypeID {
			continue
		}
		t, ok := snap.OriginalType(p.OriginalTypeID)
		if !ok {
			return RawStockReport{}, &generic.NotFoundError{Collection: generic.CollOriginalTypes, ID: p.OriginalTypeID}
		}
		packing := costing.TypePacking(t)

		stock, err := costing.BatchAvailability(snap, p.ID)
		if err != nil {
			return RawStockReport{}, err
		}
		soldUnits, err := packing.FromKg(stock.DirectSoldKg)
		if err != nil {
			return RawStockReport{}, err
		}
		opened := stock.OpenedUnits
		inHand := p.QuantityPurchased.Sub(opened).Sub(soldUnits)
		if !inHand.IsPositive() {
			continue
		}
		inHandKg, err := packing.ToKg(inHand)
		if err != nil {
			return RawStockReport{}, err
		}

		supplier, _ := snap.Party(generic.EntitySupplier, p.SupplierID)
		report.Rows = append(report.Rows, RawStockRow{
			PurchaseID:       p.ID,
			Date:             p.Date,
			Key:              p.BatchKey,
			SupplierName:     nameOr(supplier.Name),
			OriginalTypeName: t.Name,
			Rate:             p.Rate,
			Purchased:        p.QuantityPurchased,
			Opened:           opened,
			DirectSold:       soldUnits,
			InHand:           inHand,
			InHandKg:         inHandKg,
		})
		report.TotalPurchased = report.TotalPurchased.Add(p.QuantityPurchased)
		report.TotalOpened = report.TotalOpened.Add(opened)
		report.TotalInHand = report.TotalInHand.Add(inHand)
		report.TotalInHandKg = report.TotalInHandKg.Add(inHandKg)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool { return report.Rows[i].Date.Before(report.Rows[j].Date) })
	return report, nil
}

func nameOr(name string) string {
	if name == "" {
		return "N/A"
	}
	return name
}

// =============================================================================
// DAILY PRODUCTION
// =============================================================================

type ProductionRow struct {
	ProductionID    string          `json:"productionId"`
	ItemID          string          `json:"itemId"`
	ItemName        string          `json:"itemName"`
	PackingType     generic.Unit    `json:"packingType"`
	Quantity        decimal.Decimal `json:"quantity"`
	Kg              decimal.Decimal `json:"kg"`
	StartBaleNumber int64           `json:"startBaleNumber,omitempty"`
	EndBaleNumber   int64           `json:"endBaleNumber,omitempty"`
}

type DailyProductionReport struct {
	Date       generic.Date    `json:"date"`
	Rows       []ProductionRow `json:"rows"`
	TotalBales decimal.Decimal `json:"totalBales"`
	TotalKg    decimal.Decimal `json:"totalKg"`
}

// DailyProduction lists the productions of one date sorted by item name.
// Re-baling consumption appears as negative rows.
func DailyProduction(snap *generic.Snapshot, date generic.Date) (DailyProductionReport, error) {
	report := DailyProductionReport{Date: date, Rows: []ProductionRow{}}
	for _, p := range snap.Productions {
		if !p.Date.Equal(date) {
			continue
		}
		row := ProductionRow{
			ProductionID:    p.ID,
			ItemID:          p.ItemID,
			ItemName:        "Unknown",
			PackingType:     generic.UnitKg,
			Quantity:        p.QuantityProduced,
			Kg:              p.QuantityProduced,
			StartBaleNumber: p.StartBaleNumber,
			EndBaleNumber:   p.EndBaleNumber,
		}
		if it, ok := snap.Item(p.ItemID); ok {
			kg, err := costing.ItemPacking(it).ToKg(p.QuantityProduced)
			if err != nil {
				return DailyProductionReport{}, err
			}
			row.ItemName, row.PackingType, row.Kg = it.Name, it.PackingType, kg
			if it.PackingType == generic.UnitBales {
				report.TotalBales = report.TotalBales.Add(p.QuantityProduced)
			}
		}
		report.TotalKg = report.TotalKg.Add(row.Kg)
		report.Rows = append(report.Rows, row)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool { return report.Rows[i].ItemName < report.Rows[j].ItemName })
	return report, nil
}
