/*
Package admin implements the bulk maintenance commands.

PURPOSE:
  Operators correct or clear data in bulk: opening balances, opening stock,
  all transactions, and historical per-bale prices. Each command is one
  atomic batch and reports exactly which records it touched.

IDEMPOTENCY:
  Every command only emits ops for records that still need changing, so a
  second run returns an empty Result and writes nothing.

  ResetOpeningBalances  startingBalance -> 0, delete je-d-ob-/je-c-ob-
  ClearOpeningStock     openingStock -> 0, delete prod_open_stock_ and je-*-os-
  HardReset             delete every transactional record; setup and counters survive
  CorrectPrices         per-bale prices -> per-Kg, marked pricesPerKg

SEE ALSO:
  - backup.go: Export and Restore
  - accounting/poster.go: the opening postings these commands undo
*/
package admin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/logger"
)

// Result lists the records a command changed, as "collection/id".
type Result struct {
	Command string   `json:"command"`
	Updated []string `json:"updated"`
	Deleted []string `json:"deleted"`
}

// Changed reports whether the command wrote anything.
func (r Result) Changed() bool { return len(r.Updated) > 0 || len(r.Deleted) > 0 }

type Service struct {
	store generic.Store
	log   *logger.Logger
}

func NewService(store generic.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log.WithComponent("admin")}
}

// plan accumulates the ops of one command.
type plan struct {
	result Result
	ops    []generic.Op
}

func newPlan(command string) *plan {
	return &plan{result: Result{Command: command, Updated: []string{}, Deleted: []string{}}}
}

func (p *plan) update(c generic.Collection, id string, patch map[string]any) {
	p.ops = append(p.ops, generic.UpdateOp(c, id, patch))
	p.result.Updated = append(p.result.Updated, string(c)+"/"+id)
}

func (p *plan) delete(c generic.Collection, id string) {
	p.ops = append(p.ops, generic.DeleteOp(c, id))
	p.result.Deleted = append(p.result.Deleted, string(c)+"/"+id)
}

// deleteEntries deletes the given journal entries that exist in snap.
func (p *plan) deleteEntries(snap *generic.Snapshot, ids ...generic.EntryID) {
	for _, id := range ids {
		if entryExists(snap, id) {
			p.delete(generic.CollJournalEntries, string(id))
		}
	}
}

func entryExists(snap *generic.Snapshot, id generic.EntryID) bool {
	for _, e := range snap.JournalEntries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// run applies the plan's ops as one batch and logs the outcome.
func (s *Service) run(ctx context.Context, p *plan) (Result, error) {
	if len(p.ops) > 0 {
		if err := s.store.Batch(ctx, p.ops); err != nil {
			return Result{}, err
		}
	}
	s.log.WithContext(ctx).Infow("admin command finished",
		"command", p.result.Command,
		"updated", len(p.result.Updated),
		"deleted", len(p.result.Deleted),
	)
	return p.result, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// ResetOpeningBalances zeroes the starting balance of every customer,
// supplier, agent and expense account and deletes its opening entries.
// Employees keep their balances.
func (s *Service) ResetOpeningBalances(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	p := newPlan("reset-opening-balances")

	reset := func(c generic.Collection, id string, balance decimal.Decimal) {
		if !balance.IsZero() {
			p.update(c, id, map[string]any{"startingBalance": decimal.Zero})
		}
		debitID, creditID := generic.OpeningBalanceEntryIDs(id)
		p.deleteEntries(snap, debitID, creditID)
	}

	for _, t := range []generic.EntityType{
		generic.EntityCustomer, generic.EntitySupplier, generic.EntityCommissionAgent,
		generic.EntityFreightForwarder, generic.EntityClearingAgent,
	} {
		info, _ := t.Info()
		for _, party := range snap.Parties(t) {
			reset(info.Collection, string(party.ID), party.StartingBalance)
		}
	}
	for _, a := range snap.AccountsOfKind(generic.KindExpense) {
		reset(generic.CollAccounts, string(a.ID), a.StartingBalance)
	}
	return s.run(ctx, p)
}

// ClearOpeningStock zeroes every item's opening stock and deletes the
// production and valuation entries recorded for it.
func (s *Service) ClearOpeningStock(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	p := newPlan("clear-opening-stock")

	for _, it := range snap.Items {
		if !it.OpeningStock.IsZero() {
			p.update(generic.CollItems, it.ID, map[string]any{"openingStock": decimal.Zero})
		}
		prodID := generic.OpeningStockProductionID(it.ID)
		for _, prod := range snap.Productions {
			if prod.ID == prodID {
				p.delete(generic.CollProductions, prodID)
				break
			}
		}
		debitID, creditID := generic.OpeningStockEntryIDs(it.ID)
		p.deleteEntries(snap, debitID, creditID)
	}
	return s.run(ctx, p)
}

// HardReset deletes every record of the transactional collections.
func (s *Service) HardReset(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	p := newPlan("hard-reset")

	for _, c := range generic.TransactionalCollections {
		for _, rec := range snap.Records(c) {
			p.delete(rec.Collection, rec.ID)
		}
	}
	return s.run(ctx, p)
}

// CorrectPrices converts per-bale average prices of packed items to per-Kg
// by dividing by the packing size. Corrected items are marked and skipped
// on later runs.
func (s *Service) CorrectPrices(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	p := newPlan("correct-prices")

	for _, it := range snap.Items {
		if it.PricesPerKg || !it.PackingType.IsPacked() || !it.BaleSize.IsPositive() {
			continue
		}
		p.update(generic.CollItems, it.ID, map[string]any{
			"avgProductionPrice": it.AvgProductionPrice.Div(it.BaleSize),
			"avgSalesPrice":      it.AvgSalesPrice.Div(it.BaleSize),
			"pricesPerKg":        true,
		})
	}
	return s.run(ctx, p)
}
