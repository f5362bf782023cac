package accounting

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
)

// =============================================================================
// POSTER - Validated voucher writes
// =============================================================================

// Poster writes vouchers and opening postings through a Store.
type Poster struct {
	store generic.Store
	log   *logger.Logger
	today func() generic.Date
}

type Option func(*Poster)

// WithClock overrides the date used for the back-dating check and for
// opening postings.
func WithClock(today func() generic.Date) Option {
	return func(p *Poster) { p.today = today }
}

func NewPoster(store generic.Store, log *logger.Logger, opts ...Option) *Poster {
	p := &Poster{store: store, log: log.WithComponent("accounting"), today: generic.Today}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostVoucher validates req, reserves the next voucher number and writes
// both legs. Validation and the back-dating check run before the counter
// moves. On stores supporting transactions the reservation and the write
// commit together.
func (p *Poster) PostVoucher(ctx context.Context, user identity.User, req VoucherRequest) (Voucher, error) {
	if err := identity.CheckPostingDate(user, req.Date, p.today()); err != nil {
		return Voucher{}, err
	}
	counter, err := CounterFor(req.Type)
	if err != nil {
		return Voucher{}, err
	}

	var posted Voucher
	err = generic.RunInTx(ctx, p.store, func(s generic.Store) error {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := req.Validate(snap); err != nil {
			return err
		}

		n, err := s.Reserve(ctx, counter, 1, 1)
		if err != nil {
			return err
		}
		id, err := VoucherID(req.Type, n)
		if err != nil {
			return err
		}
		debit, credit, err := BuildVoucher(snap, id, req, user)
		if err != nil {
			return err
		}
		entries := []generic.JournalEntry{debit, credit}
		if err := generic.NewLedger(s).Post(ctx, entries); err != nil {
			return err
		}
		posted = summarize(id, entries)
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}

	p.log.WithContext(ctx).Infow("voucher posted",
		"voucher_id", posted.ID,
		"type", posted.Type,
		"amount", posted.Amount.String(),
		"date", posted.Date.String(),
	)
	return posted, nil
}

// =============================================================================
// OPENING POSTINGS - Balances carried in from before the ledger existed
// =============================================================================

// PostOpeningBalance records a starting balance against opening balance
// equity (CAP-002) under voucher OB-<id>.
//
//	customer:        Dr AR-001 (customer)  Cr CAP-002
//	payable parties: Dr CAP-002            Cr AP-001 (party)
//	expense account: Dr the account        Cr CAP-002
//
// entityType EntityNone names an expense account. A negative amount swaps
// the sides. Posting again replaces the previous opening balance.
func (p *Poster) PostOpeningBalance(ctx context.Context, user identity.User, entityType generic.EntityType, entityID string, amount decimal.Decimal) (Voucher, error) {
	if amount.IsZero() {
		return Voucher{}, &generic.ValidationError{Field: "amount", Message: "must not be zero"}
	}
	date := p.today()
	if err := identity.CheckPostingDate(user, date, date); err != nil {
		return Voucher{}, err
	}

	var posted Voucher
	err := generic.RunInTx(ctx, p.store, func(s generic.Store) error {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		collection, target, err := openingBalanceTarget(snap, entityType, entityID)
		if err != nil {
			return err
		}

		id := generic.OpeningBalanceVoucher(entityID)
		base := generic.JournalEntry{
			VoucherID:   id,
			Date:        date,
			EntryType:   generic.EntryJournal,
			Description: "Opening balance",
			CreatedBy:   user.ID,
		}
		party, equity := base, base
		party.Account, party.EntityID, party.EntityType = target.Account, target.EntityID, target.EntityType
		equity.Account = generic.AccountOpeningEquity

		// Receivables and expenses open on the debit side, payables on the credit side.
		partyCredited := isPayable(entityType) != amount.IsNegative()
		debit, credit := party, equity
		if partyCredited {
			debit, credit = equity, party
		}
		debitID, creditID := generic.OpeningBalanceEntryIDs(entityID)
		debit.ID, debit.Debit = debitID, amount.Abs()
		credit.ID, credit.Credit = creditID, amount.Abs()

		entries := []generic.JournalEntry{debit, credit}
		ops := []generic.Op{
			generic.DeleteOp(generic.CollJournalEntries, string(debitID)),
			generic.DeleteOp(generic.CollJournalEntries, string(creditID)),
			generic.UpdateOp(collection, entityID, map[string]any{"startingBalance": amount}),
		}
		if err := generic.NewLedger(s).Post(ctx, entries, ops...); err != nil {
			return err
		}
		posted = summarize(id, entries)
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}

	p.log.WithContext(ctx).Infow("opening balance posted",
		"voucher_id", posted.ID,
		"entity_type", string(entityType),
		"entity_id", entityID,
		"amount", amount.String(),
	)
	return posted, nil
}

func isPayable(t generic.EntityType) bool {
	info, ok := t.Info()
	return ok && info.Role == generic.RolePayable
}

// openingBalanceTarget returns the collection holding the record and the
// account and tag of its leg.
func openingBalanceTarget(snap *generic.Snapshot, t generic.EntityType, id string) (generic.Collection, generic.JournalEntry, error) {
	if t == generic.EntityNone {
		acc, ok := snap.Account(generic.AccountID(id))
		if !ok || acc.Kind != generic.KindExpense {
			return "", generic.JournalEntry{}, &generic.ValidationError{Field: "entityId", Message: "unknown expense account " + id}
		}
		return generic.CollAccounts, generic.JournalEntry{Account: acc.ID}, nil
	}
	info, ok := t.Info()
	if !ok {
		return "", generic.JournalEntry{}, &generic.ValidationError{Field: "entityType", Message: "unknown entity type " + string(t)}
	}
	if _, ok := snap.Party(t, generic.EntityID(id)); !ok {
		return "", generic.JournalEntry{}, &generic.NotFoundError{Collection: info.Collection, ID: id}
	}
	return info.Collection, generic.JournalEntry{
		Account:    info.ControlAccount,
		EntityID:   generic.EntityID(id),
		EntityType: t,
	}, nil
}

// PostOpeningStock records an item's opening stock as the production
// prod_open_stock_<id> and values it under voucher OS-<id>:
//
//	Dr INV-001  Cr CAP-002   for OpeningStock in Kg × AvgProductionPrice
//
// An item without a production price gets the production record only.
// Posting again replaces the previous opening stock.
func (p *Poster) PostOpeningStock(ctx context.Context, user identity.User, itemID string) (Voucher, error) {
	date := p.today()
	if err := identity.CheckPostingDate(user, date, date); err != nil {
		return Voucher{}, err
	}

	var posted Voucher
	err := generic.RunInTx(ctx, p.store, func(s generic.Store) error {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		it, ok := snap.Item(itemID)
		if !ok {
			return &generic.NotFoundError{Collection: generic.CollItems, ID: itemID}
		}
		if !it.OpeningStock.IsPositive() {
			return &generic.ValidationError{Field: "openingStock", Message: "item " + itemID + " has no opening stock"}
		}
		kg, err := costing.ItemPacking(it).ToKg(it.OpeningStock)
		if err != nil {
			return err
		}

		prodID := generic.OpeningStockProductionID(itemID)
		debitID, creditID := generic.OpeningStockEntryIDs(itemID)
		ops := []generic.Op{
			generic.DeleteOp(generic.CollProductions, prodID),
			generic.DeleteOp(generic.CollJournalEntries, string(debitID)),
			generic.DeleteOp(generic.CollJournalEntries, string(creditID)),
			generic.AddOp(generic.CollProductions, prodID, generic.Production{
				ID:               prodID,
				Date:             date,
				ItemID:           itemID,
				QuantityProduced: it.OpeningStock,
			}),
		}

		id := generic.OpeningStockVoucher(itemID)
		value := kg.Mul(it.AvgProductionPrice)
		if !value.IsPositive() {
			posted = Voucher{ID: id, Type: generic.EntryJournal, Date: date}
			return s.Batch(ctx, ops)
		}

		base := generic.JournalEntry{
			VoucherID:   id,
			Date:        date,
			EntryType:   generic.EntryJournal,
			Description: "Opening stock " + it.Name,
			CreatedBy:   user.ID,
		}
		debit, credit := base, base
		debit.ID, debit.Account, debit.Debit = debitID, generic.AccountInventory, value
		credit.ID, credit.Account, credit.Credit = creditID, generic.AccountOpeningEquity, value

		entries := []generic.JournalEntry{debit, credit}
		if err := generic.NewLedger(s).Post(ctx, entries, ops...); err != nil {
			return err
		}
		posted = summarize(id, entries)
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}

	p.log.WithContext(ctx).Infow("opening stock posted",
		"item_id", itemID,
		"voucher_id", posted.ID,
		"value", posted.Amount.String(),
	)
	return posted, nil
}
