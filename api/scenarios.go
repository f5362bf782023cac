/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Every scenario starts from the demo chart
	of accounts; the richer ones post through the same services the API
	uses, so vouchers, bale numbers and invoices are numbered normally.

AVAILABLE SCENARIOS:

	empty:        No records at all
	setup:        Chart of accounts, parties, items, raw material types
	sample:       Setup plus one open raw cotton purchase
	trading-day:  Sample plus a day of vouchers, production and sales

HOW SCENARIOS WORK:
 1. Delete every record in one batch (counters keep counting)
 2. Seed the demo setup records
 3. Optionally add sample records
 4. Optionally post activity as the system user, dated today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "trading-day"}

NOTE:

	Scenarios replace all data. Loading requires an admin token.

SEE ALSO:
  - handlers.go: Handler dependencies
  - demo/demo.go: the records every scenario is built from
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/demo"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/production"
	"github.com/warp/ledger-engine/sales"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioEmpty      = "empty"
	ScenarioSetup      = "setup"
	ScenarioSample     = "sample"
	ScenarioTradingDay = "trading-day"
)

var scenarios = []ScenarioDTO{
	{ID: ScenarioEmpty, Name: "Empty", Description: "No accounts, parties or transactions"},
	{ID: ScenarioSetup, Name: "Company Setup", Description: "Chart of accounts, parties, items and raw material types"},
	{ID: ScenarioSample, Name: "Sample Purchase", Description: "Setup plus 1000 Kg of raw cotton ready to open or sell"},
	{ID: ScenarioTradingDay, Name: "Trading Day", Description: "Vouchers, an opening, production, a direct sale and a posted invoice"},
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID, "status": "loaded"})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch id {
	case ScenarioEmpty:
		err = h.replaceAll(ctx, nil)
	case ScenarioSetup:
		err = h.replaceAll(ctx, demo.SetupOps())
	case ScenarioSample:
		err = h.replaceAll(ctx, append(demo.SetupOps(), demo.SampleOps()...))
	case ScenarioTradingDay:
		if err = h.replaceAll(ctx, append(demo.SetupOps(), demo.SampleOps()...)); err == nil {
			err = h.postTradingDay(ctx)
		}
	default:
		return &generic.ValidationError{Field: "scenario_id", Message: "unknown scenario " + id}
	}
	if err != nil {
		return err
	}

	h.currentScenario = id
	h.log.WithContext(ctx).Infow("scenario loaded", "scenario", id)
	return nil
}

// replaceAll deletes every record and adds seed in one batch.
func (h *Handler) replaceAll(ctx context.Context, seed []generic.Op) error {
	snap, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	var ops []generic.Op
	for _, c := range generic.Collections() {
		for _, rec := range snap.Records(c) {
			ops = append(ops, generic.DeleteOp(rec.Collection, rec.ID))
		}
	}
	ops = append(ops, seed...)
	if len(ops) == 0 {
		return nil
	}
	return h.store.Batch(ctx, ops)
}

// postTradingDay runs one day of activity for the demo company.
func (h *Handler) postTradingDay(ctx context.Context) error {
	user := identity.System
	today := h.today()
	amt := decimal.RequireFromString

	if _, err := h.poster.PostOpeningBalance(ctx, user, generic.EntityCustomer, string(demo.Customer), amt("250")); err != nil {
		return err
	}
	vouchers := []accounting.VoucherRequest{
		{Type: generic.EntryReceipt, Counterparty: string(demo.Customer), CashBank: demo.Bank, Amount: amt("500"), Description: "Advance against order"},
		{Type: generic.EntryPayment, Counterparty: string(demo.Supplier), CashBank: demo.Cash, Amount: amt("200"), Description: "Part payment for cotton"},
		{Type: generic.EntryExpense, Counterparty: string(demo.Rent), CashBank: demo.Bank, Amount: amt("150"), Description: "Warehouse rent"},
	}
	for _, v := range vouchers {
		v.Date = today
		v.Currency = generic.BaseCurrency
		if _, err := h.poster.PostVoucher(ctx, user, v); err != nil {
			return err
		}
	}

	opening := production.OpeningRequest{Date: today, BatchKey: demo.CottonPurchaseRecord().BatchKey, Opened: amt("400")}
	if _, err := h.production.OpenOriginal(ctx, user, opening); err != nil {
		return err
	}

	snap, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	plan := production.NewPlan(today)
	if _, err := plan.Stage(snap, demo.BaleItem, amt("3")); err != nil {
		return err
	}
	if _, err := plan.Stage(snap, demo.KgItem, amt("40")); err != nil {
		return err
	}
	if _, err := h.production.Finalize(ctx, user, plan); err != nil {
		return err
	}

	if _, err := h.sales.DirectSale(ctx, user, sales.DirectSaleRequest{
		Date:       today,
		CustomerID: demo.OtherCustomer,
		PurchaseID: demo.CottonPurchase,
		QuantityKg: amt("100"),
		Rate:       amt("0.80"),
		Currency:   generic.BaseCurrency,
	}); err != nil {
		return err
	}

	inv, err := h.sales.CreateInvoice(ctx, user, sales.InvoiceRequest{
		Date:       today,
		CustomerID: demo.Customer,
		Items: []generic.InvoiceLine{
			{ItemID: demo.BaleItem, Quantity: amt("2"), Rate: amt("1.20"), Currency: generic.BaseCurrency},
		},
	})
	if err != nil {
		return err
	}
	_, err = h.sales.PostInvoice(ctx, user, inv.ID)
	return err
}
