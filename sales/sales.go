/*
Package sales records direct raw-material sales and finished-goods invoices.

PURPOSE:
  Every invoice is numbered SI-### from the "invoice" counter and, once
  posted, carries a balanced revenue voucher under the same id.

DIRECT SALE:
  Sells Kg straight from a purchase batch. One batch writes:

    invoice SI-007        Posted, TotalKg = qty, DirectSalesDetails
    voucher SI-007        Dr AR-001 (customer)  Cr REV-001   qty × rate × conv
    voucher COGS-SI-007   Dr EXP-010            Cr EXP-004   landed cost × qty

  Selling more than the batch's available Kg is a hard block.

FINISHED-GOODS INVOICE:
  CreateInvoice stores an Unposted invoice. PostInvoice moves it to Posted
  and writes Dr AR-001 / Cr REV-001 for Σ line Kg × rate × conv. Unposted
  invoices never count toward stock or balances.

SEE ALSO:
  - costing/landed.go: CostOfGoodsSold
  - costing/stock.go: BatchAvailability, ItemStock
*/
package sales

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
)

// DirectSaleItemID is the line item id of raw-material sales.
const DirectSaleItemID = "DS-001"

const invoicePrefix = "SI"

// InvoiceID formats the n-th invoice number.
func InvoiceID(n int64) generic.VoucherID {
	return accounting.FormatVoucherNumber(invoicePrefix, n)
}

// InvoiceNumber parses an id produced by InvoiceID.
func InvoiceNumber(id generic.VoucherID) (int64, bool) {
	return accounting.ParseVoucherNumber(invoicePrefix, id)
}

// COGSVoucher is the cost voucher paired with a direct sale invoice.
func COGSVoucher(invoiceID generic.VoucherID) generic.VoucherID {
	return generic.VoucherID("COGS-" + string(invoiceID))
}

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
	s := &Service{store: store, log: log.WithComponent("sales"), today: generic.Today}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reserveInvoice takes the next invoice number.
func reserveInvoice(ctx context.Context, st generic.Store) (generic.VoucherID, error) {
	n, err := st.Reserve(ctx, generic.CounterInvoice, 1, 1)
	if err != nil {
		return "", err
	}
	return InvoiceID(n), nil
}

func requireCustomer(snap *generic.Snapshot, id generic.EntityID) (generic.Party, error) {
	c, ok := snap.Party(generic.EntityCustomer, id)
	if !ok {
		return generic.Party{}, &generic.ValidationError{Field: "customerId", Message: "unknown customer " + string(id)}
	}
	return c, nil
}

// revenuePair returns Dr AR-001 (customer) / Cr REV-001 for amount.
func revenuePair(inv generic.SalesInvoice, debitID, creditID generic.EntryID, amount decimal.Decimal, desc, userID string) []generic.JournalEntry {
	base := generic.JournalEntry{
		VoucherID:   inv.ID,
		Date:        inv.Date,
		EntryType:   generic.EntryJournal,
		Description: desc,
		CreatedBy:   userID,
	}
	debit, credit := base, base
	debit.ID, debit.Account, debit.Debit = debitID, generic.AccountReceivable, amount
	debit.EntityID, debit.EntityType = inv.CustomerID, generic.EntityCustomer
	credit.ID, credit.Account, credit.Credit = creditID, generic.AccountRevenue, amount
	return []generic.JournalEntry{debit, credit}
}

// =============================================================================
// DIRECT SALE
// =============================================================================

type DirectSaleRequest struct {
	Date           generic.Date
	CustomerID     generic.EntityID
	PurchaseID     string
	QuantityKg     decimal.Decimal
	Rate           decimal.Decimal // per Kg, in Currency
	Currency       generic.Currency
	ConversionRate decimal.Decimal
}

// DirectSale records a raw-material sale with its revenue and cost vouchers.
func (s *Service) DirectSale(ctx context.Context, user identity.User, req DirectSaleRequest) (generic.SalesInvoice, error) {
	if !req.QuantityKg.IsPositive() {
		return generic.SalesInvoice{}, &generic.ValidationError{Field: "quantityKg", Message: "must be positive"}
	}
	if !req.Rate.IsPositive() {
		return generic.SalesInvoice{}, &generic.ValidationError{Field: "rate", Message: "must be positive"}
	}
	if err := identity.CheckPostingDate(user, req.Date, s.today()); err != nil {
		return generic.SalesInvoice{}, err
	}
	saleValue, err := generic.ConvertToBase(req.QuantityKg.Mul(req.Rate), req.Currency, req.ConversionRate)
	if err != nil {
		return generic.SalesInvoice{}, err
	}

	var inv generic.SalesInvoice
	err = generic.RunInTx(ctx, s.store, func(st generic.Store) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		customer, err := requireCustomer(snap, req.CustomerID)
		if err != nil {
			return err
		}
		// Availability is checked here, before the invoice number moves.
		cost, err := costing.CostOfGoodsSold(snap, req.PurchaseID, req.QuantityKg)
		if err != nil {
			return err
		}
		purchase, _ := snap.Purchase(req.PurchaseID)

		id, err := reserveInvoice(ctx, st)
		if err != nil {
			return err
		}
		inv = generic.SalesInvoice{
			ID:         id,
			Date:       req.Date,
			CustomerID: req.CustomerID,
			Items: []generic.InvoiceLine{{
				ItemID:         DirectSaleItemID,
				Quantity:       req.QuantityKg,
				Rate:           req.Rate,
				Currency:       req.Currency,
				ConversionRate: generic.EffectiveRate(req.Currency, req.ConversionRate),
			}},
			Status:     generic.InvoicePosted,
			TotalBales: decimal.Zero,
			TotalKg:    req.QuantityKg,
			DirectSalesDetails: &generic.DirectSalesDetails{
				OriginalPurchaseID:   req.PurchaseID,
				OriginalPurchaseCost: cost,
			},
		}

		salesDesc := "Direct Sale of Raw Goods (Batch: " + purchase.BatchNumber + ") to " + customer.Name
		entries := revenuePair(inv, "je-d-ds-"+generic.EntryID(id), "je-c-ds-"+generic.EntryID(id), saleValue, salesDesc, user.ID)
		if cost.IsPositive() {
			cogs := generic.JournalEntry{
				VoucherID:   COGSVoucher(id),
				Date:        req.Date,
				EntryType:   generic.EntryJournal,
				Description: "Cost for Direct Sale INV " + string(id),
				CreatedBy:   user.ID,
			}
			debit, credit := cogs, cogs
			debit.ID, debit.Account, debit.Debit = "je-d-cogs-ds-"+generic.EntryID(id), generic.AccountCOGS, cost
			credit.ID, credit.Account, credit.Credit = "je-c-cogs-ds-"+generic.EntryID(id), generic.AccountPurchases, cost
			entries = append(entries, debit, credit)
		}

		return generic.NewLedger(st).Post(ctx, entries, generic.AddOp(generic.CollSalesInvoices, string(id), inv))
	})
	if err != nil {
		return generic.SalesInvoice{}, err
	}

	s.log.WithContext(ctx).Infow("direct sale posted",
		"invoice_id", inv.ID,
		"purchase_id", req.PurchaseID,
		"kg", req.QuantityKg.String(),
		"value", saleValue.String(),
		"cogs", inv.DirectSalesDetails.OriginalPurchaseCost.String(),
	)
	return inv, nil
}

// =============================================================================
// FINISHED-GOODS INVOICES
// =============================================================================

type InvoiceRequest struct {
	Date       generic.Date
	CustomerID generic.EntityID
	Items      []generic.InvoiceLine
}

// CreateInvoice stores an Unposted invoice. Lines are in the item's packing
// unit; totals are derived through the item packing.
func (s *Service) CreateInvoice(ctx context.Context, user identity.User, req InvoiceRequest) (generic.SalesInvoice, error) {
	if len(req.Items) == 0 {
		return generic.SalesInvoice{}, &generic.ValidationError{Field: "items", Message: "invoice has no lines"}
	}
	if err := identity.CheckPostingDate(user, req.Date, s.today()); err != nil {
		return generic.SalesInvoice{}, err
	}

	var inv generic.SalesInvoice
	err := generic.RunInTx(ctx, s.store, func(st generic.Store) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		if _, err := requireCustomer(snap, req.CustomerID); err != nil {
			return err
		}
		lines := make([]generic.InvoiceLine, 0, len(req.Items))
		bales, kg := decimal.Zero, decimal.Zero
		for _, l := range req.Items {
			it, ok := snap.Item(l.ItemID)
			if !ok {
				return &generic.ValidationError{Field: "itemId", Message: "unknown item " + l.ItemID}
			}
			if !l.Quantity.IsPositive() || !l.Rate.IsPositive() {
				return &generic.ValidationError{Field: "items", Message: "quantity and rate must be positive for " + l.ItemID}
			}
			if _, err := generic.ConvertToBase(l.Rate, l.Currency, l.ConversionRate); err != nil {
				return err
			}
			lineKg, err := costing.ItemPacking(it).ToKg(l.Quantity)
			if err != nil {
				return err
			}
			if it.PackingType == generic.UnitBales {
				bales = bales.Add(l.Quantity)
			}
			kg = kg.Add(lineKg)
			l.ConversionRate = generic.EffectiveRate(l.Currency, l.ConversionRate)
			lines = append(lines, l)
		}

		id, err := reserveInvoice(ctx, st)
		if err != nil {
			return err
		}
		inv = generic.SalesInvoice{
			ID:         id,
			Date:       req.Date,
			CustomerID: req.CustomerID,
			Items:      lines,
			Status:     generic.InvoiceUnposted,
			TotalBales: bales,
			TotalKg:    kg,
		}
		return st.Add(ctx, generic.CollSalesInvoices, string(id), inv)
	})
	if err != nil {
		return generic.SalesInvoice{}, err
	}

	s.log.WithContext(ctx).Infow("invoice created", "invoice_id", inv.ID, "total_kg", inv.TotalKg.String())
	return inv, nil
}

// InvoiceValue returns Σ line Kg × rate × conversion rate in base currency.
// Rates on finished goods are per Kg.
func InvoiceValue(snap *generic.Snapshot, inv generic.SalesInvoice) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range inv.Items {
		kg := l.Quantity
		if it, ok := snap.Item(l.ItemID); ok {
			var err error
			if kg, err = costing.ItemPacking(it).ToKg(l.Quantity); err != nil {
				return decimal.Zero, err
			}
		}
		v, err := generic.ConvertToBase(kg.Mul(l.Rate), l.Currency, l.ConversionRate)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// PostInvoice moves an Unposted invoice to Posted and writes its revenue
// voucher. Posting a Posted invoice returns ErrInvoiceAlreadyPosted.
func (s *Service) PostInvoice(ctx context.Context, user identity.User, id generic.VoucherID) (generic.SalesInvoice, error) {
	var inv generic.SalesInvoice
	var value decimal.Decimal
	err := generic.RunInTx(ctx, s.store, func(st generic.Store) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		var ok bool
		if inv, ok = snap.Invoice(id); !ok {
			return &generic.NotFoundError{Collection: generic.CollSalesInvoices, ID: string(id)}
		}
		if inv.Status != generic.InvoiceUnposted {
			return generic.ErrInvoiceAlreadyPosted
		}
		if err := identity.CheckPostingDate(user, inv.Date, s.today()); err != nil {
			return err
		}
		if value, err = InvoiceValue(snap, inv); err != nil {
			return err
		}
		customer, _ := snap.Party(generic.EntityCustomer, inv.CustomerID)

		inv.Status = generic.InvoicePosted
		debitID, creditID := accounting.EntryIDs(id)
		entries := revenuePair(inv, debitID, creditID, value, "Sales Invoice "+string(id)+" to "+customer.Name, user.ID)
		return generic.NewLedger(st).Post(ctx, entries,
			generic.UpdateOp(generic.CollSalesInvoices, string(id), map[string]any{"status": generic.InvoicePosted}))
	})
	if err != nil {
		return generic.SalesInvoice{}, err
	}

	s.log.WithContext(ctx).Infow("invoice posted", "invoice_id", id, "value", value.String())
	return inv, nil
}
