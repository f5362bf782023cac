/*
api_test.go - HTTP tests for the router, middleware and handlers

Tests for:
- Authentication, admin gating and the admin rate limit
- Error status mapping (validation, back-dating, warnings, stock blocks)
- Idempotency-Key replay
- Vouchers, production, sales and reports end to end
- Scenarios, backup download and restore
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/demo"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/generic/store"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/production"
	"github.com/warp/ledger-engine/reports"
)

var today = generic.MustParseDate("2025-06-15")

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	store  *store.TxMemory
	tokens *identity.TokenService
}

func newServer(t *testing.T, cfg api.RouterConfig) *testServer {
	t.Helper()
	s := store.NewTxMemory()
	require.NoError(t, demo.Seed(context.Background(), s, true))

	tokens := identity.NewTokenService(identity.DefaultTokenConfig("test-secret"))
	h := api.NewHandler(s, tokens, logger.Nop(), api.WithClock(func() generic.Date { return today }))
	srv := httptest.NewServer(api.NewRouter(h, cfg))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, store: s, tokens: tokens}
}

func (ts *testServer) token(u identity.User) string {
	tok, _, err := ts.tokens.Issue(u)
	require.NoError(ts.t, err)
	return tok
}

// do sends body as JSON with u's token. An empty user ID sends no token.
func (ts *testServer) do(u identity.User, method, path string, body any, headers ...string) *http.Response {
	ts.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if u.ID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(u))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeAs[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var (
	clerk = identity.User{ID: "clerk-1"}
	boss  = identity.User{ID: "admin-1", IsAdmin: true}
)

func receipt(date generic.Date, amount string) api.VoucherRequest {
	return api.VoucherRequest{
		Type:            "Receipt",
		Date:            date,
		Counterparty:    string(demo.Customer),
		CashBankAccount: string(demo.Bank),
		Amount:          decimal.RequireFromString(amount),
		Description:     "<b>Advance</b> payment",
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestHealth_IsPublicAndCarriesSecurityHeaders(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(identity.User{}, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestAuth_MissingAndForgedTokensAreRejected(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	// GIVEN: no token
	resp := ts.do(identity.User{}, http.MethodGet, "/api/vouchers", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// GIVEN: a token signed with another secret
	other := identity.NewTokenService(identity.DefaultTokenConfig("someone-else"))
	forged, _, err := other.Issue(boss)
	require.NoError(t, err)
	resp = ts.do(identity.User{}, http.MethodGet, "/api/vouchers", nil, "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDevToken_OnlyOutsideProduction(t *testing.T) {
	dev := newServer(t, api.RouterConfig{})
	resp := dev.do(identity.User{}, http.MethodPost, "/api/auth/token", api.TokenRequest{UserID: "u1", IsAdmin: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decodeAs[api.TokenResponse](t, resp)

	u, err := dev.tokens.Validate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.User{ID: "u1", IsAdmin: true}, u)

	prod := newServer(t, api.RouterConfig{Production: true})
	resp = prod.do(identity.User{}, http.MethodPost, "/api/auth/token", api.TokenRequest{UserID: "u1"},
		"X-Forwarded-Proto", "https")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_RequiresAdminAndIsRateLimited(t *testing.T) {
	ts := newServer(t, api.RouterConfig{AdminRateLimit: 2})

	resp := ts.do(clerk, http.MethodPost, "/api/admin/correct-prices", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp = ts.do(boss, http.MethodPost, "/api/admin/correct-prices", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = ts.do(boss, http.MethodPost, "/api/admin/correct-prices", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

// =============================================================================
// VOUCHERS
// =============================================================================

func TestPostVoucher_CreatesAndDescribes(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	// WHEN: a clerk posts a receipt dated today
	resp := ts.do(clerk, http.MethodPost, "/api/vouchers", receipt(today, "500"))

	// THEN: RV-001 is created with sanitized text
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v := decodeAs[accounting.Voucher](t, resp)
	assert.Equal(t, generic.VoucherID("RV-001"), v.ID)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(500)))
	assert.NotContains(t, v.Description, "<b>")

	resp = ts.do(clerk, http.MethodGet, "/api/vouchers/RV-001", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeAs[accounting.VoucherDetail](t, resp)
	require.Len(t, detail.Lines, 2)
	assert.True(t, detail.TotalDebit.Equal(detail.TotalCredit))

	resp = ts.do(clerk, http.MethodGet, "/api/vouchers?type=Payment", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeAs[[]accounting.Voucher](t, resp))
}

func TestPostVoucher_StatusMapping(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})
	yesterday := today.AddDays(-1)

	tests := []struct {
		name   string
		user   identity.User
		body   any
		status int
		code   string
	}{
		{"clerk back-dates", clerk, receipt(yesterday, "10"), http.StatusForbidden, "backdated"},
		{"admin back-dates", boss, receipt(yesterday, "10"), http.StatusCreated, ""},
		{"unknown type", clerk, func() api.VoucherRequest { r := receipt(today, "10"); r.Type = "Refund"; return r }(), http.StatusBadRequest, "validation"},
		{"zero amount", clerk, receipt(today, "0"), http.StatusBadRequest, "validation"},
		{"unknown field", clerk, map[string]any{"type": "Receipt", "bogus": 1}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(tt.user, http.MethodPost, "/api/vouchers", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeAs[api.ErrorResponse](t, resp).Code)
			}
		})
	}
}

func TestIdempotencyKey_ReplaysFirstResponse(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	first := ts.do(clerk, http.MethodPost, "/api/vouchers", receipt(today, "75"), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.StatusCode)
	a := decodeAs[accounting.Voucher](t, first)

	// WHEN: the same request is retried
	second := ts.do(clerk, http.MethodPost, "/api/vouchers", receipt(today, "75"), "Idempotency-Key", "k-1")

	// THEN: the first voucher comes back and no second voucher is posted
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, a.ID, decodeAs[accounting.Voucher](t, second).ID)

	next, err := ts.store.Peek(context.Background(), generic.CounterReceipt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)

	// A different user with the same key posts normally.
	other := ts.do(identity.User{ID: "clerk-2"}, http.MethodPost, "/api/vouchers", receipt(today, "75"), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, other.StatusCode)
	assert.Equal(t, generic.VoucherID("RV-002"), decodeAs[accounting.Voucher](t, other).ID)
}

// =============================================================================
// PRODUCTION AND SALES
// =============================================================================

func TestOpening_WarningThenConfirm(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})
	req := api.OpeningRequest{
		Date:           today,
		SupplierID:     string(demo.Supplier),
		OriginalTypeID: demo.RawCotton,
		BatchNumber:    demo.CottonBatch,
		Opened:         decimal.NewFromInt(1200),
	}

	// GIVEN: 1000 Kg in the batch
	// WHEN: 1200 Kg is opened without confirmation
	resp := ts.do(clerk, http.MethodPost, "/api/openings", req)

	// THEN: a 409 warning; confirming records it
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "stock_warning", decodeAs[api.ErrorResponse](t, resp).Code)

	req.Confirm = true
	resp = ts.do(clerk, http.MethodPost, "/api/openings", req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestProduction_FinalizeNumbersBales(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodPost, "/api/productions", api.ProductionPlanRequest{
		Date: today,
		Entries: []api.LineRequest{
			{ItemID: demo.BaleItem, Quantity: decimal.NewFromInt(3)},
			{ItemID: demo.KgItem, Quantity: decimal.NewFromInt(25)},
		},
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	done := decodeAs[production.Finalized](t, resp)
	require.Len(t, done.Productions, 2)
	assert.Equal(t, int64(1), done.Productions[0].StartBaleNumber)
	assert.Equal(t, int64(3), done.Productions[0].EndBaleNumber)
	assert.True(t, done.TotalKg.Equal(decimal.NewFromInt(325)))

	resp = ts.do(clerk, http.MethodGet, "/api/reports/items/"+demo.BaleItem+"/stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), `"stock":"3"`)
}

func TestProduction_EmptyPlanIsRejected(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodPost, "/api/productions", api.ProductionPlanRequest{Date: today})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, decodeAs[api.ErrorResponse](t, resp).Fields)
}

func TestDirectSale_OversellIsUnprocessable(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodPost, "/api/sales/direct", api.DirectSaleRequest{
		Date:       today,
		CustomerID: string(demo.Customer),
		PurchaseID: demo.CottonPurchase,
		QuantityKg: decimal.NewFromInt(1200),
		Rate:       decimal.RequireFromString("0.8"),
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_stock", decodeAs[api.ErrorResponse](t, resp).Code)
}

func TestInvoice_CreatePostAndRepost(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodPost, "/api/invoices", api.InvoiceRequest{
		Date:       today,
		CustomerID: string(demo.Customer),
		Items: []api.InvoiceLineRequest{
			{ItemID: demo.BaleItem, Quantity: decimal.NewFromInt(2), Rate: decimal.RequireFromString("1.20")},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inv := decodeAs[generic.SalesInvoice](t, resp)
	assert.Equal(t, generic.InvoiceUnposted, inv.Status)

	resp = ts.do(clerk, http.MethodGet, "/api/invoices/"+string(inv.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), `"value":"240.00"`)

	resp = ts.do(clerk, http.MethodPost, "/api/invoices/"+string(inv.ID)+"/post", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, generic.InvoicePosted, decodeAs[generic.SalesInvoice](t, resp).Status)

	resp = ts.do(clerk, http.MethodPost, "/api/invoices/"+string(inv.ID)+"/post", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(clerk, http.MethodPost, "/api/invoices/SI-999/post", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestBalanceSheet_JSONAndText(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})
	require.Equal(t, http.StatusCreated, ts.do(clerk, http.MethodPost, "/api/vouchers", receipt(today, "1234.5")).StatusCode)

	resp := ts.do(clerk, http.MethodGet, "/api/reports/balance-sheet", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sheet := decodeAs[reports.BalanceSheet](t, resp)
	assert.True(t, sheet.Balanced)
	assert.True(t, sheet.Assets.Bank.Equal(decimal.RequireFromString("1234.5")))

	resp = ts.do(clerk, http.MethodGet, "/api/reports/balance-sheet?format=text", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := readAll(t, resp)
	assert.Contains(t, text, "Balance Sheet as of 2025-06-15")
	assert.Contains(t, text, "1,234.50")
}

func TestReports_BadQueryParameters(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	for _, path := range []string{
		"/api/reports/balance-sheet?asOf=15/06/2025",
		"/api/reports/income?from=2025-06-01&to=2025-05-01",
		"/api/reports/parties/wizards",
	} {
		resp := ts.do(clerk, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	resp := ts.do(clerk, http.MethodGet, "/api/reports/accounts/NOPE-1/balance", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRawStock_ReportsSamplePurchase(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodGet, "/api/reports/raw-stock?supplierId="+string(demo.Supplier), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeAs[reports.RawStockReport](t, resp)
	require.Len(t, report.Rows, 1)
	assert.True(t, report.TotalInHandKg.Equal(decimal.NewFromInt(1000)))
}

// =============================================================================
// SCENARIOS AND BACKUPS
// =============================================================================

func TestScenario_TradingDayStaysBalanced(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	resp := ts.do(clerk, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: api.ScenarioTradingDay})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(boss, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: api.ScenarioTradingDay})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(clerk, http.MethodGet, "/api/scenarios/current", nil)
	assert.Contains(t, readAll(t, resp), api.ScenarioTradingDay)

	resp = ts.do(clerk, http.MethodGet, "/api/reports/balance-sheet", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeAs[reports.BalanceSheet](t, resp).Balanced)

	resp = ts.do(clerk, http.MethodGet, "/api/vouchers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decodeAs[[]accounting.Voucher](t, resp))

	// Loading empty removes every record, chart included.
	resp = ts.do(boss, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: api.ScenarioEmpty})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap, err := ts.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	assert.Empty(t, snap.JournalEntries)

	resp = ts.do(boss, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBackup_DownloadAndRestore(t *testing.T) {
	ts := newServer(t, api.RouterConfig{})

	// GIVEN: a backup taken before a receipt is posted
	resp := ts.do(boss, http.MethodGet, "/api/admin/backup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/gzip", resp.Header.Get("Content-Type"))
	backup, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, ts.do(clerk, http.MethodPost, "/api/vouchers", receipt(today, "10")).StatusCode)

	// WHEN: the backup is restored
	resp = ts.do(boss, http.MethodPost, "/api/admin/restore", backup)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: the receipt is gone
	resp = ts.do(clerk, http.MethodGet, "/api/vouchers/RV-001", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(boss, http.MethodPost, "/api/admin/restore", []byte("not a backup"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(boss, http.MethodPost, "/api/admin/backup/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(b))
}
