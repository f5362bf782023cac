package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// FEASIBILITY - Per item production vs sales over a period
// =============================================================================

type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingAverage   Rating = "Average"
	RatingReview    Rating = "Review"
	RatingPoor      Rating = "Poor"
)

// ItemFilter narrows the feasibility report by item classification.
type ItemFilter struct {
	CategoryID string
	SectionID  string
}

func (f ItemFilter) matches(it generic.Item) bool {
	return (f.CategoryID == "" || it.CategoryID == f.CategoryID) &&
		(f.SectionID == "" || it.SectionID == f.SectionID)
}

type FeasibilityRow struct {
	ItemID             string          `json:"itemId"`
	ItemName           string          `json:"itemName"`
	ProductionDays     int             `json:"productionFrequency"`
	SalesInvoices      int             `json:"salesFrequency"`
	ProducedKg         decimal.Decimal `json:"producedKg"`
	SoldKg             decimal.Decimal `json:"soldKg"`
	AvgProductionPrice decimal.Decimal `json:"avgProductionPrice"`
	AvgSalesPrice      decimal.Decimal `json:"avgSalesPrice"`
	MarginPerKg        decimal.Decimal `json:"marginPerKg"`
	ProfitLoss         decimal.Decimal `json:"profitLoss"`
	Score              float64         `json:"score"`
	Rating             Rating          `json:"rating"`
}

type FeasibilityReport struct {
	Period          generic.Period   `json:"period"`
	Rows            []FeasibilityRow `json:"rows"`
	TotalProfitLoss decimal.Decimal  `json:"totalProfitLoss"`
}

type itemActivity struct {
	days     map[string]struct{}
	invoices map[generic.VoucherID]struct{}
	prodKg   decimal.Decimal
	soldKg   decimal.Decimal
	value    decimal.Decimal
}

// Feasibility scores every item produced or sold in period, most
// profitable first. Sales are valued in base currency; only invoices that
// count toward balances are read.
func Feasibility(snap *generic.Snapshot, period generic.Period, filter ItemFilter) (FeasibilityReport, error) {
	if err := period.Validate(); err != nil {
		return FeasibilityReport{}, err
	}
	activity := make(map[string]*itemActivity)
	get := func(id string) *itemActivity {
		a, ok := activity[id]
		if !ok {
			a = &itemActivity{days: map[string]struct{}{}, invoices: map[generic.VoucherID]struct{}{}}
			activity[id] = a
		}
		return a
	}

	for _, p := range snap.Productions {
		it, ok := snap.Item(p.ItemID)
		if !ok || !period.Contains(p.Date) || p.ID == generic.OpeningStockProductionID(p.ItemID) {
			continue
		}
		kg, err := costing.ItemPacking(it).ToKg(p.QuantityProduced)
		if err != nil {
			return FeasibilityReport{}, err
		}
		a := get(it.ID)
		a.days[p.Date.String()] = struct{}{}
		a.prodKg = a.prodKg.Add(kg)
	}

	for _, inv := range snap.SalesInvoices {
		if !inv.Status.CountsTowardBalances() || !period.Contains(inv.Date) {
			continue
		}
		for _, line := range inv.Items {
			it, ok := snap.Item(line.ItemID)
			if !ok {
				continue
			}
			kg, err := costing.ItemPacking(it).ToKg(line.Quantity)
			if err != nil {
				return FeasibilityReport{}, err
			}
			value, err := generic.ConvertToBase(kg.Mul(line.Rate), line.Currency, line.ConversionRate)
			if err != nil {
				return FeasibilityReport{}, err
			}
			a := get(it.ID)
			a.invoices[inv.ID] = struct{}{}
			a.soldKg = a.soldKg.Add(kg)
			a.value = a.value.Add(value)
		}
	}

	report := FeasibilityReport{Period: period, Rows: []FeasibilityRow{}}
	for _, it := range snap.Items {
		a, ok := activity[it.ID]
		if !ok || !filter.matches(it) {
			continue
		}
		if a.prodKg.IsZero() && a.soldKg.IsZero() {
			continue
		}
		row := FeasibilityRow{
			ItemID:             it.ID,
			ItemName:           it.Name,
			ProductionDays:     len(a.days),
			SalesInvoices:      len(a.invoices),
			ProducedKg:         a.prodKg,
			SoldKg:             a.soldKg,
			AvgProductionPrice: it.AvgProductionPrice,
		}
		if a.soldKg.IsPositive() {
			row.AvgSalesPrice = a.value.Div(a.soldKg)
		}
		row.MarginPerKg = row.AvgSalesPrice.Sub(it.AvgProductionPrice)
		row.ProfitLoss = a.soldKg.Mul(row.MarginPerKg)
		row.Score = score(row)
		row.Rating = rate(row.Score)

		report.Rows = append(report.Rows, row)
		report.TotalProfitLoss = report.TotalProfitLoss.Add(row.ProfitLoss)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].ProfitLoss.GreaterThan(report.Rows[j].ProfitLoss)
	})
	return report, nil
}

// score adds three components:
//
//	margin:    margin/cost × 50 when positive, × 100 when negative
//	frequency: 25 above 5 invoices, else 5 per invoice above 1
//	balance:   +25 for produced/sold in [0.8, 1.5], +10 in [0.5, 2.0],
//	           -10 when produced but never sold
func score(r FeasibilityRow) float64 {
	var s float64
	if r.AvgProductionPrice.IsPositive() {
		ratio := r.MarginPerKg.Div(r.AvgProductionPrice).InexactFloat64()
		if r.MarginPerKg.IsPositive() {
			s += ratio * 50
		} else {
			s += ratio * 100
		}
	}

	switch {
	case r.SalesInvoices > 5:
		s += 25
	case r.SalesInvoices > 1:
		s += float64(r.SalesInvoices * 5)
	}

	switch {
	case r.SoldKg.IsPositive():
		ratio := r.ProducedKg.Div(r.SoldKg).InexactFloat64()
		if ratio >= 0.8 && ratio <= 1.5 {
			s += 25
		} else if ratio >= 0.5 && ratio <= 2.0 {
			s += 10
		}
	case r.ProducedKg.IsPositive():
		s -= 10
	}
	return s
}

func rate(score float64) Rating {
	switch {
	case score > 75:
		return RatingExcellent
	case score > 50:
		return RatingGood
	case score > 25:
		return RatingAverage
	case score > 0:
		return RatingReview
	}
	return RatingPoor
}
