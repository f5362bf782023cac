/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:   Unique ID per request for tracing
  2. RealIP:      Client address from proxy headers
  3. requestLog:  One structured zap line per request
  4. Recoverer:   Panic recovery (500 instead of crash)
  5. secure:      Security headers; HTTPS redirect in production
  6. CORS:        Cross-origin requests for a browser client

  Authenticated groups add:
  7. authenticate: Bearer token -> identity.User on the context
  8. idempotent:   Replays POSTs carrying an Idempotency-Key header

ROUTE GROUPS:
  /api/health             Liveness (public)
  /api/auth/token         Development tokens (public, dev only)
  /api/vouchers/*         Receipts, payments, expenses
  /api/opening-*          Opening balances and opening stock
  /api/productions etc.   Production, openings, rebaling
  /api/sales, /invoices   Direct sales and finished-goods invoices
  /api/reports/*          Read-only reports
  /api/scenarios/*        Demo data (loading requires admin)
  /api/admin/*            Admin commands, backups (admin, rate limited)

SEE ALSO:
  - handlers.go: Handler implementations
  - idempotency.go: Idempotency-Key replay
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
)

// RouterConfig holds the deployment-dependent router settings.
type RouterConfig struct {
	CORSOrigins []string

	// AdminRateLimit is the number of admin requests allowed per client IP
	// per minute. Zero disables the limit.
	AdminRateLimit int

	// Production turns on the HTTPS redirect and turns off dev tokens.
	Production bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(h.log))
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		if !cfg.Production {
			r.Post("/auth/token", h.IssueToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(authenticate(h.tokens))
			r.Use(idempotent(h.replays))

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/", h.ListVouchers)
				r.Post("/", h.PostVoucher)
				r.Get("/{id}", h.GetVoucher)
			})
			r.Post("/opening-balances", h.PostOpeningBalance)
			r.Post("/opening-stock/{itemId}", h.PostOpeningStock)

			r.Post("/productions", h.FinalizeProduction)
			r.Post("/openings", h.OpenOriginal)
			r.Post("/rebales", h.Rebale)

			r.Post("/sales/direct", h.DirectSale)
			r.Route("/invoices", func(r chi.Router) {
				r.Post("/", h.CreateInvoice)
				r.Get("/{id}", h.GetInvoice)
				r.Post("/{id}/post", h.PostInvoice)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/accounts/{id}/balance", h.AccountBalance)
				r.Get("/accounts/{id}/entries", h.AccountEntries)
				r.Get("/parties/{type}", h.PartyBalances)
				r.Get("/balance-sheet", h.BalanceSheet)
				r.Get("/income", h.IncomeStatement)
				r.Get("/raw-stock", h.RawStock)
				r.Get("/daily-production", h.DailyProduction)
				r.Get("/feasibility", h.Feasibility)
				r.Get("/items/{id}/stock", h.ItemStock)
				r.Get("/batches/{id}/availability", h.BatchAvailability)
			})
			r.Get("/snapshot", h.GetSnapshot)

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.With(requireAdmin).Post("/load", h.LoadScenario)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				if cfg.AdminRateLimit > 0 {
					r.Use(httprate.Limit(cfg.AdminRateLimit, time.Minute,
						httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
				}
				r.Post("/reset-opening-balances", h.ResetOpeningBalances)
				r.Post("/clear-opening-stock", h.ClearOpeningStock)
				r.Post("/hard-reset", h.HardReset)
				r.Post("/correct-prices", h.CorrectPrices)
				r.Get("/backup", h.DownloadBackup)
				r.Post("/backup/run", h.RunBackup)
				r.Post("/restore", h.Restore)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint", nil)
	})

	return r
}

func origins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	return configured
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// requestLog writes one line per request with the chi request id.
func requestLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithContext(r.Context()).Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"latency", time.Since(start),
			)
		})
	}
}

// authenticate validates the bearer token and puts the user on the context.
func authenticate(tokens *identity.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}
			user, err := tokens.Validate(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := identity.FromContext(r.Context()); !ok || !u.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
