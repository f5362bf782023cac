/*
Package production records finished goods, raw material openings and
re-baling.

PURPOSE:
  Production is staged for one date in a Plan, then finalized in a single
  batch. Bales items get contiguous bale number ranges; the numbers shown
  while staging are provisional and are fixed by one reservation per item
  at finalize time.

BALE NUMBERING:
  While staging, each item's next number comes from the plan's temporary
  counter, else item.NextBaleNumber, else 1:

    item.NextBaleNumber = 101
    Stage(item, 20)  -> 101-120
    Stage(item, 30)  -> 121-150
    Remove(0)        -> remaining entry renumbered to 101-130

  Finalize reserves "bale:<item>" for the item's total once, renumbers the
  staged entries from the reserved start and sets NextBaleNumber past the
  block.

STOCK POLICY:
  - Opening raw material beyond the batch's stock is a confirmable warning.
  - Re-baling more than the finished-goods stock is a hard block.

SEE ALSO:
  - service.go: Finalize, OpenOriginal, Rebale
  - costing/: packing conversion and stock levels
*/
package production

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// PLAN - Staged production for one date
// =============================================================================

// Staged is one pending production line.
type Staged struct {
	ItemID          string          `json:"itemId"`
	Quantity        decimal.Decimal `json:"quantity"`
	StartBaleNumber int64           `json:"startBaleNumber,omitempty"`
	EndBaleNumber   int64           `json:"endBaleNumber,omitempty"`
}

// Plan collects staged lines. It is not safe for concurrent use.
type Plan struct {
	Date    generic.Date `json:"date"`
	Entries []Staged     `json:"entries"`

	next map[string]int64
}

func NewPlan(date generic.Date) *Plan {
	return &Plan{Date: date, next: make(map[string]int64)}
}

// Stage appends a line. Bales items must be staged in whole bales and get a
// provisional bale range.
func (p *Plan) Stage(snap *generic.Snapshot, itemID string, qty decimal.Decimal) (Staged, error) {
	it, err := lookupItem(snap, itemID)
	if err != nil {
		return Staged{}, err
	}
	if err := checkQuantity(it, qty); err != nil {
		return Staged{}, err
	}
	if p.next == nil {
		p.next = make(map[string]int64)
	}

	s := Staged{ItemID: itemID, Quantity: qty}
	if it.PackingType == generic.UnitBales {
		start := p.next[itemID]
		if start == 0 {
			start = firstBale(it)
		}
		s.StartBaleNumber = start
		s.EndBaleNumber = start + qty.IntPart() - 1
		p.next[itemID] = s.EndBaleNumber + 1
	}
	p.Entries = append(p.Entries, s)
	return s, nil
}

// Remove drops the line at index and renumbers the item's remaining lines
// from item.NextBaleNumber.
func (p *Plan) Remove(snap *generic.Snapshot, index int) error {
	if index < 0 || index >= len(p.Entries) {
		return &generic.ValidationError{Field: "index", Message: "no staged line at that position"}
	}
	removed := p.Entries[index]
	p.Entries = append(p.Entries[:index], p.Entries[index+1:]...)

	it, ok := snap.Item(removed.ItemID)
	if !ok || it.PackingType != generic.UnitBales {
		return nil
	}
	if p.next == nil {
		p.next = make(map[string]int64)
	}
	p.next[removed.ItemID] = p.renumber(removed.ItemID, firstBale(it))
	return nil
}

// renumber assigns consecutive ranges from start to the item's lines in
// their current bale order and returns the number after the last range.
func (p *Plan) renumber(itemID string, start int64) int64 {
	var idx []int
	for i, s := range p.Entries {
		if s.ItemID == itemID {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p.Entries[idx[a]].StartBaleNumber < p.Entries[idx[b]].StartBaleNumber
	})
	next := start
	for _, i := range idx {
		n := p.Entries[i].Quantity.IntPart()
		p.Entries[i].StartBaleNumber = next
		p.Entries[i].EndBaleNumber = next + n - 1
		next += n
	}
	return next
}

// TotalKg returns the staged weight.
func (p *Plan) TotalKg(snap *generic.Snapshot) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range p.Entries {
		it, err := lookupItem(snap, s.ItemID)
		if err != nil {
			return decimal.Zero, err
		}
		kg, err := costing.ItemPacking(it).ToKg(s.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(kg)
	}
	return total, nil
}

// baleTotals returns the staged bale count per Bales item, in first-staged order.
func (p *Plan) baleTotals() ([]string, map[string]int64) {
	var order []string
	totals := make(map[string]int64)
	for _, s := range p.Entries {
		if s.StartBaleNumber == 0 {
			continue
		}
		if _, seen := totals[s.ItemID]; !seen {
			order = append(order, s.ItemID)
		}
		totals[s.ItemID] += s.Quantity.IntPart()
	}
	return order, totals
}

func firstBale(it generic.Item) int64 {
	if it.NextBaleNumber > 0 {
		return it.NextBaleNumber
	}
	return 1
}

func lookupItem(snap *generic.Snapshot, itemID string) (generic.Item, error) {
	it, ok := snap.Item(itemID)
	if !ok {
		return generic.Item{}, &generic.NotFoundError{Collection: generic.CollItems, ID: itemID}
	}
	return it, nil
}

func checkQuantity(it generic.Item, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return &generic.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if it.PackingType == generic.UnitBales && !qty.IsInteger() {
		return &generic.ValidationError{Field: "quantity", Message: it.Name + " is produced in whole bales"}
	}
	return nil
}
