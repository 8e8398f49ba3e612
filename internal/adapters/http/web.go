package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	catalogStore "gymdesk/internal/adapters/storage/catalog"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/event"
)

// Stores holds all storage dependencies.
type Stores struct {
	MemberStore  memberStore.Store
	ReceiptStore receiptStore.Store
	CatalogStore catalogStore.Store
	OutboxStore  outboxStore.Store
	Ledger       orchestrators.ReceiptLedger
}

// Options configures the HTTP surface.
type Options struct {
	// StaticDir is served at / when non-empty.
	StaticDir string

	// CSRFKey is 32 bytes; a random key is generated when nil and Production is false.
	CSRFKey        []byte
	Production     bool
	TrustedOrigins []string

	RateLimitPerSecond int
	SlowRequestMs      int

	// Notifier receives change events; failures are queued to the outbox.
	Notifier event.Notifier
	// Outbox backs the admin retry endpoints.
	Outbox *orchestrators.OutboxProcessor

	// Ping reports database health for /healthz.
	Ping          func(ctx context.Context) error
	SchemaVersion int

	Now func() time.Time
}

// Server is the gym desk HTTP API.
type Server struct {
	stores    *Stores
	opts      Options
	collector *perf.Collector
	locks     *orchestrators.MemberLocks
	limiter   *middleware.RateLimiter
	handler   http.Handler
}

// NewServer wires handlers and middleware.
// PRE: s has every store set; opts.CSRFKey is nil or 32 bytes
// POST: Middleware order is Timing -> SecurityHeaders -> CSRF -> RateLimit -> routes
func NewServer(s *Stores, opts Options, collector *perf.Collector) (*Server, error) {
	key, err := csrfKey(opts)
	if err != nil {
		return nil, err
	}
	rate := opts.RateLimitPerSecond
	if rate <= 0 {
		rate = 10
	}

	srv := &Server{
		stores:    s,
		opts:      opts,
		collector: collector,
		locks:     &orchestrators.MemberLocks{},
		limiter:   middleware.NewRateLimiter(rate, time.Second),
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	srv.handler = middleware.Chain(mux,
		middleware.RateLimit(srv.limiter),
		middleware.CSRF(key, middleware.CSRFOptions{Secure: opts.Production, TrustedOrigins: opts.TrustedOrigins}),
		middleware.SecurityHeaders,
		middleware.Timing(collector, opts.SlowRequestMs),
	)
	return srv, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// csrfKey returns the configured key. Outside production a random key is generated
// per startup, so form tokens do not survive a restart.
func csrfKey(opts Options) ([]byte, error) {
	if len(opts.CSRFKey) == 32 {
		return opts.CSRFKey, nil
	}
	if len(opts.CSRFKey) != 0 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(opts.CSRFKey))
	}
	if opts.Production {
		return nil, fmt.Errorf("csrf key is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	slog.Warn("csrf_key_random", "reason", "no key configured; set GYMDESK_CSRF_KEY for production")
	return key, nil
}

func (s *Server) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now().UTC()
}

func (s *Server) notifyDeps() orchestrators.NotifyDeps {
	return orchestrators.NotifyDeps{Notifier: s.opts.Notifier, Outbox: s.stores.OutboxStore}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	if s.opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/plans", s.handleListPlans)
	mux.HandleFunc("POST /api/plans", s.handleSavePlan)
	mux.HandleFunc("DELETE /api/plans/{id}", s.handleDeletePlan)
	mux.HandleFunc("GET /api/taxes", s.handleListTaxes)
	mux.HandleFunc("POST /api/taxes", s.handleSaveTax)
	mux.HandleFunc("DELETE /api/taxes/{id}", s.handleDeleteTax)

	mux.HandleFunc("GET /api/members", s.handleListMembers)
	mux.HandleFunc("POST /api/members", s.handleRegisterMember)
	mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	mux.HandleFunc("GET /api/members/{id}/receipt-form", s.handleReceiptForm)
	mux.HandleFunc("GET /api/members/{id}/receipts", s.handleMemberReceipts)
	mux.HandleFunc("GET /api/members/{id}/due", s.handleMemberDue)
	mux.HandleFunc("POST /api/members/{id}/archive", s.handleArchiveMember)
	mux.HandleFunc("POST /api/members/{id}/restore", s.handleRestoreMember)

	mux.HandleFunc("POST /api/receipts", s.handleSubmitReceipt)
	mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	mux.HandleFunc("PUT /api/receipts/{id}", s.handleEditReceipt)
	mux.HandleFunc("DELETE /api/receipts/{id}", s.handleDeleteReceipt)
	mux.HandleFunc("GET /api/receipts/{id}/history", s.handleReceiptHistory)

	mux.HandleFunc("GET /api/dashboard/dues", s.handleDuesDashboard)

	mux.HandleFunc("GET /admin/outbox", s.handleAdminOutboxList)
	mux.HandleFunc("POST /admin/outbox/{id}/retry", s.handleAdminOutboxRetry)
	mux.HandleFunc("POST /admin/outbox/{id}/abandon", s.handleAdminOutboxAbandon)
	mux.HandleFunc("GET /admin/perf", s.handleAdminPerf)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			slog.Error("health_check_failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": s.opts.SchemaVersion})
}
