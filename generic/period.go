package generic

// =============================================================================
// PERIOD - Inclusive date range for statements and filters
// =============================================================================

// Period is the inclusive range [Start, End]. A zero Start reaches back to
// the first entry; a zero End has no upper bound.
//
// Examples:
//   - Income for 2025:       Period{Start: 2025-01-01, End: 2025-12-31}
//   - Retained earnings:     Period{End: asOf}
type Period struct {
	Start Date
	End   Date
}

// UpTo returns the open-start period ending at asOf.
func UpTo(asOf Date) Period { return Period{End: asOf} }

// YearToDate returns Jan 1 of d's year through d.
func YearToDate(d Date) Period { return Period{Start: StartOfYear(d.Year()), End: d} }

// Contains returns true if d is within the period.
func (p Period) Contains(d Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && d.After(p.End) {
		return false
	}
	return true
}

// Validate rejects a closed period whose end precedes its start.
func (p Period) Validate() error {
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
