package production

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
)

// Service writes production, openings and re-baling through a Store.
type Service struct {
	store generic.Store
	log   *logger.Logger
	today func() generic.Date
}

type Option func(*Service)

// WithClock overrides the date used for the back-dating check.
func WithClock(today func() generic.Date) Option {
	return func(s *Service) { s.today = today }
}

func NewService(store generic.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log.WithComponent("production"), today: generic.Today}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// FINALIZE - Commit a staged plan
// =============================================================================

// Finalized is the outcome of committing a plan.
type Finalized struct {
	Date        generic.Date         `json:"date"`
	Productions []generic.Production `json:"productions"`
	TotalKg     decimal.Decimal      `json:"totalKg"`
}

// Finalize fixes bale numbers and writes every staged line. On success the
// plan's entries carry the final ranges.
func (s *Service) Finalize(ctx context.Context, user identity.User, plan *Plan) (Finalized, error) {
	if plan == nil || len(plan.Entries) == 0 {
		return Finalized{}, &generic.ValidationError{Field: "entries", Message: "nothing staged"}
	}
	if err := identity.CheckPostingDate(user, plan.Date, s.today()); err != nil {
		return Finalized{}, err
	}

	staged := &Plan{Date: plan.Date, Entries: append([]Staged(nil), plan.Entries...)}
	var out Finalized
	err := generic.RunInTx(ctx, s.store, func(st generic.Store) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		for _, e := range staged.Entries {
			it, err := lookupItem(snap, e.ItemID)
			if err != nil {
				return err
			}
			if err := checkQuantity(it, e.Quantity); err != nil {
				return err
			}
		}

		var ops []generic.Op
		order, totals := staged.baleTotals()
		for _, itemID := range order {
			it, _ := snap.Item(itemID)
			n := totals[itemID]
			start, err := st.Reserve(ctx, generic.BaleCounter(itemID), n, firstBale(it))
			if err != nil {
				return err
			}
			staged.renumber(itemID, start)
			ops = append(ops, generic.UpdateOp(generic.CollItems, itemID, map[string]any{"nextBaleNumber": start + n}))
		}

		out = Finalized{Date: plan.Date}
		for _, e := range staged.Entries {
			prod := generic.Production{
				ID:               generic.NewID("prod_"),
				Date:             plan.Date,
				ItemID:           e.ItemID,
				QuantityProduced: e.Quantity,
				StartBaleNumber:  e.StartBaleNumber,
				EndBaleNumber:    e.EndBaleNumber,
			}
			ops = append(ops, generic.AddOp(generic.CollProductions, prod.ID, prod))
			out.Productions = append(out.Productions, prod)
		}
		if out.TotalKg, err = staged.TotalKg(snap); err != nil {
			return err
		}
		return st.Batch(ctx, ops)
	})
	if err != nil {
		return Finalized{}, err
	}

	plan.Entries = staged.Entries
	plan.next = nil

	s.log.WithContext(ctx).Infow("production finalized",
		"date", plan.Date.String(),
		"lines", len(out.Productions),
		"total_kg", out.TotalKg.String(),
	)
	return out, nil
}

// =============================================================================
// OPEN ORIGINAL - Raw material into production
// =============================================================================

// OpeningRequest opens units of a raw material batch.
type OpeningRequest struct {
	Date generic.Date
	generic.BatchKey
	Opened decimal.Decimal

	// Confirm acknowledges a StockWarning and records the opening anyway.
	Confirm bool
}

// OpenOriginal records an opening. Opening more units than the batch has in
// hand returns a StockWarning unless req.Confirm is set.
func (s *Service) OpenOriginal(ctx context.Context, user identity.User, req OpeningRequest) (generic.OriginalOpening, error) {
	if !req.Opened.IsPositive() {
		return generic.OriginalOpening{}, &generic.ValidationError{Field: "opened", Message: "must be positive"}
	}
	if err := identity.CheckPostingDate(user, req.Date, s.today()); err != nil {
		return generic.OriginalOpening{}, err
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return generic.OriginalOpening{}, err
	}
	rs, err := costing.RawStockOf(snap, req.BatchKey)
	if err != nil {
		return generic.OriginalOpening{}, err
	}
	if req.Opened.GreaterThan(rs.InHandUnits) && !req.Confirm {
		return generic.OriginalOpening{}, &generic.StockWarning{
			Subject:   req.BatchKey.String(),
			Available: rs.InHandUnits,
			Requested: req.Opened,
			Unit:      rs.Packing.Type,
		}
	}
	totalKg, err := rs.Packing.ToKg(req.Opened)
	if err != nil {
		return generic.OriginalOpening{}, err
	}

	opening := generic.OriginalOpening{
		ID:       generic.NewID("oo_"),
		BatchKey: req.BatchKey,
		Date:     req.Date,
		Opened:   req.Opened,
		TotalKg:  totalKg,
	}
	if err := s.store.Add(ctx, generic.CollOriginalOpenings, opening.ID, opening); err != nil {
		return generic.OriginalOpening{}, err
	}

	log := s.log.WithContext(ctx)
	if req.Opened.GreaterThan(rs.InHandUnits) {
		log.Warnw("raw material over-opened",
			"batch", req.BatchKey.String(),
			"available", rs.InHandUnits.String(),
			"opened", req.Opened.String(),
		)
	}
	log.Infow("raw material opened", "batch", req.BatchKey.String(), "total_kg", totalKg.String())
	return opening, nil
}

// =============================================================================
// REBALE - Consume finished goods into other finished goods
// =============================================================================

// Line is an item quantity in the item's packing unit.
type Line struct {
	ItemID   string
	Quantity decimal.Decimal
}

type RebaleRequest struct {
	Date generic.Date
	From []Line
	To   []Line
}

// RebaleResult reports the written productions and the Kg balance.
// DifferenceKg = FromKg - ToKg; positive means weight was lost.
type RebaleResult struct {
	Productions  []generic.Production `json:"productions"`
	FromKg       decimal.Decimal      `json:"fromKg"`
	ToKg         decimal.Decimal      `json:"toKg"`
	DifferenceKg decimal.Decimal      `json:"differenceKg"`
}

// Rebale writes a negative production per consumed line and a positive one
// per produced line. Consuming more than an item's stock is a hard block.
func (s *Service) Rebale(ctx context.Context, user identity.User, req RebaleRequest) (RebaleResult, error) {
	if len(req.From) == 0 || len(req.To) == 0 {
		return RebaleResult{}, &generic.ValidationError{Field: "lines", Message: "re-baling needs items to consume and to produce"}
	}
	if err := identity.CheckPostingDate(user, req.Date, s.today()); err != nil {
		return RebaleResult{}, err
	}

	txID := generic.NewID("")
	var out RebaleResult
	err := generic.RunInTx(ctx, s.store, func(st generic.Store) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		out = RebaleResult{FromKg: decimal.Zero, ToKg: decimal.Zero}

		consumed := make(map[string]decimal.Decimal)
		var ops []generic.Op
		for i, l := range req.From {
			it, err := lookupItem(snap, l.ItemID)
			if err != nil {
				return err
			}
			if err := checkQuantity(it, l.Quantity); err != nil {
				return err
			}
			consumed[l.ItemID] = consumed[l.ItemID].Add(l.Quantity)
			stock, err := costing.ItemStock(snap, l.ItemID)
			if err != nil {
				return err
			}
			if consumed[l.ItemID].GreaterThan(stock) {
				return &generic.InsufficientStockError{
					Subject:   l.ItemID,
					Available: stock,
					Requested: consumed[l.ItemID],
					Unit:      it.PackingType,
				}
			}
			kg, err := costing.ItemPacking(it).ToKg(l.Quantity)
			if err != nil {
				return err
			}
			out.FromKg = out.FromKg.Add(kg)

			prod := generic.Production{
				ID:               fmt.Sprintf("rebaling_from_%s_%s_%d", l.ItemID, txID, i),
				Date:             req.Date,
				ItemID:           l.ItemID,
				QuantityProduced: l.Quantity.Neg(),
			}
			ops = append(ops, generic.AddOp(generic.CollProductions, prod.ID, prod))
			out.Productions = append(out.Productions, prod)
		}

		for i, l := range req.To {
			it, err := lookupItem(snap, l.ItemID)
			if err != nil {
				return err
			}
			if err := checkQuantity(it, l.Quantity); err != nil {
				return err
			}
			kg, err := costing.ItemPacking(it).ToKg(l.Quantity)
			if err != nil {
				return err
			}
			out.ToKg = out.ToKg.Add(kg)

			prod := generic.Production{
				ID:               fmt.Sprintf("rebaling_to_%s_%s_%d", l.ItemID, txID, i),
				Date:             req.Date,
				ItemID:           l.ItemID,
				QuantityProduced: l.Quantity,
			}
			if it.PackingType == generic.UnitBales {
				n := l.Quantity.IntPart()
				start, err := st.Reserve(ctx, generic.BaleCounter(l.ItemID), n, firstBale(it))
				if err != nil {
					return err
				}
				prod.StartBaleNumber, prod.EndBaleNumber = start, start+n-1
				ops = append(ops, generic.UpdateOp(generic.CollItems, l.ItemID, map[string]any{"nextBaleNumber": start + n}))
			}
			ops = append(ops, generic.AddOp(generic.CollProductions, prod.ID, prod))
			out.Productions = append(out.Productions, prod)
		}
		out.DifferenceKg = out.FromKg.Sub(out.ToKg)
		return st.Batch(ctx, ops)
	})
	if err != nil {
		return RebaleResult{}, err
	}

	s.log.WithContext(ctx).Infow("re-baling saved",
		"from_kg", out.FromKg.String(),
		"to_kg", out.ToKg.String(),
		"difference_kg", out.DifferenceKg.String(),
	)
	return out, nil
}
