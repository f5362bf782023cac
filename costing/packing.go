/*
Package costing computes landed cost, cost of goods sold and stock levels.

PURPOSE:
  The Inventory Costing Engine. Every function here takes a Snapshot and
  returns a derived figure; nothing is stored.

PACKING CONVERSION:
  Quantities in packing units (Bales, Sacks, Boxes) become Kg only through
  Packing.ToKg. No other code multiplies by a bale or packing size.

    Packing{Type: Bales, Size: 100}.ToKg(50)  = 5000
    Packing{Type: Kg}.ToKg(50)                = 50

SEE ALSO:
  - landed.go: landed cost per Kg and COGS
  - stock.go: batch availability, raw stock and finished-goods stock
*/
package costing

import (
	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
)

// Packing is a unit plus its Kg-per-unit size.
type Packing struct {
	Type generic.Unit
	Size decimal.Decimal
}

// ItemPacking returns the packing of a finished-goods item.
func ItemPacking(it generic.Item) Packing {
	return Packing{Type: it.PackingType, Size: it.BaleSize}
}

// TypePacking returns the purchase packing of a raw material type.
func TypePacking(t generic.OriginalType) Packing {
	return Packing{Type: t.PackingType, Size: t.PackingSize}
}

// Validate rejects unknown units and packed units without a positive size.
func (p Packing) Validate() error {
	if !p.Type.Valid() {
		return &generic.ValidationError{Field: "packingType", Message: "unknown packing type " + string(p.Type)}
	}
	if p.Type.IsPacked() && !p.Size.IsPositive() {
		return &generic.ValidationError{Field: "packingSize", Message: string(p.Type) + " need a positive size"}
	}
	return nil
}

// KgPerUnit returns 1 for Kg, Size otherwise.
func (p Packing) KgPerUnit() (decimal.Decimal, error) {
	if err := p.Validate(); err != nil {
		return decimal.Zero, err
	}
	if p.Type == generic.UnitKg {
		return decimal.NewFromInt(1), nil
	}
	return p.Size, nil
}

// ToKg converts n packing units to Kg.
func (p Packing) ToKg(n decimal.Decimal) (decimal.Decimal, error) {
	per, err := p.KgPerUnit()
	if err != nil {
		return decimal.Zero, err
	}
	return n.Mul(per), nil
}

// FromKg converts kg to packing units.
func (p Packing) FromKg(kg decimal.Decimal) (decimal.Decimal, error) {
	per, err := p.KgPerUnit()
	if err != nil {
		return decimal.Zero, err
	}
	return kg.Div(per), nil
}

// QuantityKg converts a Quantity expressed in this packing to Kg.
func (p Packing) QuantityKg(q generic.Quantity) (decimal.Decimal, error) {
	if q.Unit == generic.UnitKg {
		return q.Value, nil
	}
	if q.Unit != p.Type {
		return decimal.Zero, &generic.ValidationError{
			Field:   "unit",
			Message: "quantity in " + string(q.Unit) + " cannot use " + string(p.Type) + " packing",
		}
	}
	return p.ToKg(q.Value)
}
