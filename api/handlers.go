/*
handlers.go - HTTP API handlers for the bookkeeping engines

PURPOSE:
  Exposes the posting services and reports via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Vouchers:
    POST   /api/vouchers                       Post receipt, payment or expense
    GET    /api/vouchers?type=&from=&to=       List vouchers
    GET    /api/vouchers/{id}                  Voucher with resolved names
    POST   /api/opening-balances               Party/expense opening balance
    POST   /api/opening-stock/{itemId}         Value an item's opening stock

  Production:
    POST   /api/productions                    Finalize a day's production plan
    POST   /api/openings                       Open raw material (confirm to over-draw)
    POST   /api/rebales                        Convert finished goods

  Sales:
    POST   /api/sales/direct                   Sell raw material with COGS
    POST   /api/invoices                       Create unposted invoice
    GET    /api/invoices/{id}                  Invoice with its value
    POST   /api/invoices/{id}/post             Post invoice to the ledger

  Reports:
    GET    /api/reports/accounts/{id}/balance?asOf=
    GET    /api/reports/accounts/{id}/entries?from=&to=&entityType=&entityId=
    GET    /api/reports/parties/{type}?asOf=
    GET    /api/reports/balance-sheet?asOf=&format=text
    GET    /api/reports/income?from=&to=&format=text
    GET    /api/reports/raw-stock?supplierId=&originalTypeId=
    GET    /api/reports/daily-production?date=
    GET    /api/reports/feasibility?from=&to=&categoryId=&sectionId=
    GET    /api/reports/items/{id}/stock
    GET    /api/reports/batches/{id}/availability
    GET    /api/snapshot

  Admin:
    POST   /api/admin/reset-opening-balances
    POST   /api/admin/clear-opening-stock
    POST   /api/admin/hard-reset
    POST   /api/admin/correct-prices
    GET    /api/admin/backup                   Download gzip JSON backup
    POST   /api/admin/backup/run               Write a backup file now
    POST   /api/admin/restore                  Replace data from a backup

REQUEST FLOW:
  1. Decode JSON (unknown fields rejected) and run validator tags
  2. Read the acting user from the context
  3. Call the service; it takes its own snapshot and writes atomically
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unbalanced voucher
  - 403: Back-dated posting by a non-admin
  - 404: Record not found
  - 409: Stock warning (resend with confirm), already posted, duplicate
  - 422: Insufficient stock, nothing to divide by
  - 500: Persistence failures (details logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/admin"
	"github.com/warp/ledger-engine/costing"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/production"
	"github.com/warp/ledger-engine/reports"
	"github.com/warp/ledger-engine/sales"
)

const (
	maxBodyBytes    = 1 << 20
	maxRestoreBytes = 64 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	store      generic.Store
	log        *logger.Logger
	tokens     *identity.TokenService
	poster     *accounting.Poster
	production *production.Service
	sales      *sales.Service
	admin      *admin.Service
	backups    *admin.BackupScheduler
	today      func() generic.Date

	validate *validator.Validate
	replays  *cache.Cache
	sheets   singleflight.Group

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the day used for back-dating checks and report defaults.
func WithClock(today func() generic.Date) Option {
	return func(h *Handler) { h.today = today }
}

// WithBackups enables POST /api/admin/backup/run.
func WithBackups(bs *admin.BackupScheduler) Option {
	return func(h *Handler) { h.backups = bs }
}

// NewHandler creates a new handler with the given store.
func NewHandler(store generic.Store, tokens *identity.TokenService, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		log:      log.WithComponent("api"),
		tokens:   tokens,
		today:    generic.Today,
		validate: validator.New(),
		replays:  NewReplayCache(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.poster = accounting.NewPoster(store, log, accounting.WithClock(h.today))
	h.production = production.NewService(store, log, production.WithClock(h.today))
	h.sales = sales.NewService(store, log, sales.WithClock(h.today))
	h.admin = admin.NewService(store, log)
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IssueToken hands out a token for any user. Registered outside production only.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, expires, err := h.tokens.Issue(identity.User{ID: req.UserID, IsAdmin: req.IsAdmin})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}

// =============================================================================
// VOUCHER HANDLERS
// =============================================================================

func (h *Handler) PostVoucher(w http.ResponseWriter, r *http.Request) {
	var req VoucherRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.poster.PostVoucher(r.Context(), currentUser(r), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r, false)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	filter := accounting.VoucherFilter{Type: generic.EntryType(r.URL.Query().Get("type")), Period: period}
	vouchers, err := accounting.ListVouchers(snap, filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if vouchers == nil {
		vouchers = []accounting.Voucher{}
	}
	writeJSON(w, http.StatusOK, vouchers)
}

func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	detail, err := accounting.DescribeVoucher(snap, generic.VoucherID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) PostOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req OpeningBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.poster.PostOpeningBalance(r.Context(), currentUser(r),
		generic.EntityType(req.EntityType), req.EntityID, req.Amount)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) PostOpeningStock(w http.ResponseWriter, r *http.Request) {
	v, err := h.poster.PostOpeningStock(r.Context(), currentUser(r), chi.URLParam(r, "itemId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// =============================================================================
// PRODUCTION HANDLERS
// =============================================================================

// FinalizeProduction stages every entry of the request on a fresh plan and
// finalizes it. A bad entry rejects the whole plan.
func (h *Handler) FinalizeProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionPlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	plan := production.NewPlan(req.Date)
	for i, e := range req.Entries {
		if _, err := plan.Stage(snap, e.ItemID, e.Quantity); err != nil {
			h.writeDomainError(w, r, fmt.Errorf("entry %d: %w", i+1, err))
			return
		}
	}
	done, err := h.production.Finalize(r.Context(), currentUser(r), plan)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, done)
}

func (h *Handler) OpenOriginal(w http.ResponseWriter, r *http.Request) {
	var req OpeningRequest
	if !h.decode(w, r, &req) {
		return
	}
	opening, err := h.production.OpenOriginal(r.Context(), currentUser(r), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, opening)
}

func (h *Handler) Rebale(w http.ResponseWriter, r *http.Request) {
	var req RebaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.production.Rebale(r.Context(), currentUser(r), production.RebaleRequest{
		Date: req.Date,
		From: toLines(req.From),
		To:   toLines(req.To),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

func (h *Handler) DirectSale(w http.ResponseWriter, r *http.Request) {
	var req DirectSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.sales.DirectSale(r.Context(), currentUser(r), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.sales.CreateInvoice(r.Context(), currentUser(r), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type invoiceView struct {
	generic.SalesInvoice
	Value string `json:"value"`
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	id := generic.VoucherID(chi.URLParam(r, "id"))
	inv, found := snap.Invoice(id)
	if !found {
		h.writeDomainError(w, r, &generic.NotFoundError{Collection: generic.CollSalesInvoices, ID: string(id)})
		return
	}
	value, err := sales.InvoiceValue(snap, inv)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceView{SalesInvoice: inv, Value: value.StringFixed(2)})
}

func (h *Handler) PostInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.sales.PostInvoice(r.Context(), currentUser(r), generic.VoucherID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

type accountBalanceView struct {
	AccountID generic.AccountID `json:"accountId"`
	Name      string            `json:"name"`
	AsOf      generic.Date      `json:"asOf"`
	Balance   string            `json:"balance"`
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "asOf")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	id := generic.AccountID(chi.URLParam(r, "id"))
	acc, found := snap.Account(id)
	if !found {
		h.writeDomainError(w, r, &generic.NotFoundError{Collection: generic.CollAccounts, ID: string(id)})
		return
	}
	writeJSON(w, http.StatusOK, accountBalanceView{
		AccountID: id,
		Name:      acc.Name,
		AsOf:      asOf,
		Balance:   reports.AccountBalance(snap, id, asOf).StringFixed(2),
	})
}

// entryQuerier is implemented by stores that filter entries in the database.
type entryQuerier interface {
	QueryEntries(ctx context.Context, f generic.EntryFilter) ([]generic.JournalEntry, error)
}

// AccountEntries lists an account's journal entries, oldest first.
func (h *Handler) AccountEntries(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r, false)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := generic.EntryFilter{
		Account:    generic.AccountID(chi.URLParam(r, "id")),
		EntityType: generic.EntityType(q.Get("entityType")),
		EntityID:   generic.EntityID(q.Get("entityId")),
		Period:     period,
	}

	var entries []generic.JournalEntry
	if eq, ok := h.store.(entryQuerier); ok {
		entries, err = eq.QueryEntries(r.Context(), filter)
	} else {
		var snap *generic.Snapshot
		if snap, err = h.store.Snapshot(r.Context()); err == nil {
			entries = snap.EntriesWhere(filter)
		}
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []generic.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) PartyBalances(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "asOf")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	rows, err := reports.PartyBalances(snap, generic.EntityType(chi.URLParam(r, "type")), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.PartyBalance{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// BalanceSheet coalesces concurrent requests for the same date into one
// snapshot and one computation.
func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "asOf")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ctx := r.Context()
	ch := h.sheets.DoChan(asOf.String(), func() (any, error) {
		// Detached so one caller's disconnect does not fail the others.
		snap, err := h.store.Snapshot(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return reports.BuildBalanceSheet(snap, asOf), nil
	})

	select {
	case <-ctx.Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			h.writeDomainError(w, r, res.Err)
			return
		}
		sheet := res.Val.(reports.BalanceSheet)
		if wantsText(r) {
			h.writeText(w, r, sheet.Print)
			return
		}
		writeJSON(w, http.StatusOK, sheet)
	}
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r, true)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	stmt, err := reports.Income(snap, period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if wantsText(r) {
		h.writeText(w, r, stmt.Print)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

func (h *Handler) RawStock(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	report, err := reports.BuildRawStockReport(snap, reports.StockFilter{
		SupplierID:     generic.EntityID(q.Get("supplierId")),
		OriginalTypeID: q.Get("originalTypeId"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) DailyProduction(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r, "date")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	report, err := reports.DailyProduction(snap, date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Feasibility(w http.ResponseWriter, r *http.Request) {
	period, err := h.periodParam(r, true)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	report, err := reports.Feasibility(snap, period, reports.ItemFilter{
		CategoryID: q.Get("categoryId"),
		SectionID:  q.Get("sectionId"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type itemStockView struct {
	ItemID string       `json:"itemId"`
	Unit   generic.Unit `json:"unit"`
	Stock  string       `json:"stock"`
}

func (h *Handler) ItemStock(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	stock, err := costing.ItemStock(snap, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	it, _ := snap.Item(id)
	writeJSON(w, http.StatusOK, itemStockView{ItemID: id, Unit: it.PackingType, Stock: stock.String()})
}

func (h *Handler) BatchAvailability(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	stock, err := costing.BatchAvailability(snap, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) runAdmin(w http.ResponseWriter, r *http.Request, cmd func(context.Context) (admin.Result, error)) {
	res, err := cmd(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.log.WithContext(r.Context()).Infow("admin command", "command", res.Command, "changed", res.Changed())
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ResetOpeningBalances(w http.ResponseWriter, r *http.Request) {
	h.runAdmin(w, r, h.admin.ResetOpeningBalances)
}

func (h *Handler) ClearOpeningStock(w http.ResponseWriter, r *http.Request) {
	h.runAdmin(w, r, h.admin.ClearOpeningStock)
}

func (h *Handler) HardReset(w http.ResponseWriter, r *http.Request) {
	h.runAdmin(w, r, h.admin.HardReset)
}

func (h *Handler) CorrectPrices(w http.ResponseWriter, r *http.Request) {
	h.runAdmin(w, r, h.admin.CorrectPrices)
}

// DownloadBackup buffers the export so a failure still yields a JSON error.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.admin.Export(r.Context(), &buf); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	name := "backup_" + time.Now().UTC().Format("20060102T150405") + ".json.gz"
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured", nil)
		return
	}
	path, err := h.backups.RunOnce(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRestoreBytes)
	h.runAdmin(w, r, func(ctx context.Context) (admin.Result, error) {
		return h.admin.Restore(ctx, body)
	})
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func currentUser(r *http.Request) identity.User {
	u, _ := identity.FromContext(r.Context())
	return u
}

// decode reads a JSON body into dst and runs its validator tags. On failure
// it writes the 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp := ErrorResponse{Error: "Invalid request", Code: "validation"}
			for _, fe := range verrs {
				resp.Fields = append(resp.Fields, fe.Namespace()+": "+fe.Tag())
			}
			writeJSON(w, http.StatusBadRequest, resp)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*generic.Snapshot, bool) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	return snap, true
}

// dateParam parses a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dateParam(r *http.Request, name string) (generic.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.today(), nil
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return generic.Date{}, &generic.ValidationError{Field: name, Message: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// periodParam reads from/to. With ytd set, a missing period defaults to the
// current year to date; otherwise it is unbounded.
func (h *Handler) periodParam(r *http.Request, ytd bool) (generic.Period, error) {
	q := r.URL.Query()
	var p generic.Period
	if ytd && q.Get("from") == "" && q.Get("to") == "" {
		return generic.YearToDate(h.today()), nil
	}
	for name, dst := range map[string]*generic.Date{"from": &p.Start, "to": &p.End} {
		if raw := q.Get(name); raw != "" {
			d, err := generic.ParseDate(raw)
			if err != nil {
				return p, &generic.ValidationError{Field: name, Message: "expected YYYY-MM-DD"}
			}
			*dst = d
		}
	}
	return p, p.Validate()
}

func wantsText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text" ||
		strings.HasPrefix(r.Header.Get("Accept"), "text/plain")
}

func (h *Handler) writeText(w http.ResponseWriter, r *http.Request, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to statuses. Server-side failures are
// logged with the request context and answered without details.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).Errorw("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, ErrorResponse{Error: "Internal error", Code: code})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Code: code, Details: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case generic.IsWarning(err):
		return http.StatusConflict, "stock_warning"
	case errors.Is(err, generic.ErrInvoiceAlreadyPosted):
		return http.StatusConflict, "already_posted"
	case errors.Is(err, generic.ErrDuplicateRecord):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, generic.ErrBackdatedPosting):
		return http.StatusForbidden, "backdated"
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "insufficient_stock"
	case errors.Is(err, generic.ErrDivisionByZero):
		return http.StatusUnprocessableEntity, "computation"
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "validation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
