package costing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// LANDED COST - Per-Kg acquisition cost of a purchased batch
// =============================================================================

// LandedCost breaks a batch's acquisition cost into its legs, all in base
// currency.
//
//	Total   = ItemValue + Freight + Clearing + Commission + DiscountSurcharge
//	TotalKg = QuantityPurchased × KgPerUnit(original type)
//	PerKg   = Total / TotalKg
type LandedCost struct {
	ItemValue         decimal.Decimal `json:"itemValue"`
	Freight           decimal.Decimal `json:"freight"`
	Clearing          decimal.Decimal `json:"clearing"`
	Commission        decimal.Decimal `json:"commission"`
	DiscountSurcharge decimal.Decimal `json:"discountSurcharge"`
	Total             decimal.Decimal `json:"total"`
	TotalKg           decimal.Decimal `json:"totalKg"`
	PerKg             decimal.Decimal `json:"perKg"`
}

// legRate returns rate, or 1 when the leg has no rate entered.
func legRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsPositive() {
		return rate
	}
	return decimal.NewFromInt(1)
}

// PurchasedKg returns the received weight of a purchase.
func PurchasedKg(p generic.OriginalPurchase, t generic.OriginalType) (decimal.Decimal, error) {
	return TypePacking(t).ToKg(p.QuantityPurchased)
}

// Landed computes every leg of a purchase's landed cost.
// A zero received weight is a ComputationError wrapping ErrDivisionByZero.
func Landed(p generic.OriginalPurchase, t generic.OriginalType) (LandedCost, error) {
	itemValue, err := generic.ConvertToBase(p.QuantityPurchased.Mul(p.Rate), p.Currency, p.ConversionRate)
	if err != nil {
		return LandedCost{}, err
	}

	lc := LandedCost{
		ItemValue:         itemValue,
		Freight:           p.FreightAmount.Mul(legRate(p.FreightConversionRate)),
		Clearing:          p.ClearingAmount.Mul(legRate(p.ClearingConversionRate)),
		Commission:        p.CommissionAmount.Mul(legRate(p.CommissionRate)),
		DiscountSurcharge: p.DiscountSurcharge,
	}
	lc.Total = lc.ItemValue.Add(lc.Freight).Add(lc.Clearing).Add(lc.Commission).Add(lc.DiscountSurcharge)

	lc.TotalKg, err = PurchasedKg(p, t)
	if err != nil {
		return LandedCost{}, err
	}
	if lc.TotalKg.IsZero() {
		return LandedCost{}, &generic.ComputationError{
			Op:     "landed cost of " + p.ID,
			Reason: "purchase has no received weight",
			Err:    generic.ErrDivisionByZero,
		}
	}
	lc.PerKg = lc.Total.Div(lc.TotalKg)
	return lc, nil
}

// LandedCostPerKg returns the per-Kg landed cost of a purchase.
func LandedCostPerKg(p generic.OriginalPurchase, t generic.OriginalType) (decimal.Decimal, error) {
	lc, err := Landed(p, t)
	if err != nil {
		return decimal.Zero, err
	}
	return lc.PerKg, nil
}

// LandedCostOf resolves a purchase and its type from the snapshot.
func LandedCostOf(snap *generic.Snapshot, purchaseID string) (LandedCost, error) {
	p, t, err := purchaseAndType(snap, purchaseID)
	if err != nil {
		return LandedCost{}, err
	}
	return Landed(p, t)
}

// =============================================================================
// COST OF GOODS SOLD - Direct raw-material sales
// =============================================================================

// CostOfGoodsSold returns landed cost per Kg × quantityKg for a draw on a
// batch. Drawing more than the batch's available Kg is a hard block.
func CostOfGoodsSold(snap *generic.Snapshot, purchaseID string, quantityKg decimal.Decimal) (decimal.Decimal, error) {
	if !quantityKg.IsPositive() {
		return decimal.Zero, &generic.ValidationError{Field: "quantityKg", Message: "must be positive"}
	}
	stock, err := BatchAvailability(snap, purchaseID)
	if err != nil {
		return decimal.Zero, err
	}
	if quantityKg.GreaterThan(stock.AvailableKg) {
		return decimal.Zero, &generic.InsufficientStockError{
			Subject:   purchaseID,
			Available: stock.AvailableKg,
			Requested: quantityKg,
			Unit:      generic.UnitKg,
		}
	}
	perKg, err := LandedCostOf(snap, purchaseID)
	if err != nil {
		return decimal.Zero, err
	}
	return perKg.PerKg.Mul(quantityKg), nil
}

func purchaseAndType(snap *generic.Snapshot, purchaseID string) (generic.OriginalPurchase, generic.OriginalType, error) {
	p, ok := snap.Purchase(purchaseID)
	if !ok {
		return generic.OriginalPurchase{}, generic.OriginalType{}, &generic.NotFoundError{Collection: generic.CollOriginalPurchases, ID: purchaseID}
	}
	t, ok := snap.OriginalType(p.OriginalTypeID)
	if !ok {
		return generic.OriginalPurchase{}, generic.OriginalType{}, &generic.NotFoundError{Collection: generic.CollOriginalTypes, ID: p.OriginalTypeID}
	}
	return p, t, nil
}
