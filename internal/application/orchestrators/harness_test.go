package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	emailAdapter "gymdesk/internal/adapters/email"
	"gymdesk/internal/adapters/storage"
	catalogStore "gymdesk/internal/adapters/storage/catalog"
	"gymdesk/internal/adapters/storage/ledger"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"

	_ "modernc.org/sqlite"
)

// testNow is a fixed clock: 2024-03-01 10:00 UTC.
var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	db       *sql.DB
	members  *memberStore.SQLiteStore
	receipts *receiptStore.SQLiteStore
	catalog  *catalogStore.SQLiteStore
	outbox   *outboxStore.SQLiteStore
	ledger   *ledger.Ledger
	locks    *MemberLocks
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	h := &harness{
		db:       db,
		members:  memberStore.NewSQLiteStore(db),
		receipts: receiptStore.NewSQLiteStore(db),
		catalog:  catalogStore.NewSQLiteStore(db),
		outbox:   outboxStore.NewSQLiteStore(db),
		ledger:   ledger.New(db),
		locks:    &MemberLocks{},
		notifier: &recordingNotifier{},
	}
	ctx := context.Background()
	for _, e := range []plan.CatalogEntry{
		{ID: "pkg-monthly", Name: "Monthly", DurationType: plan.Monthly, DurationMonths: 1, Price: 2000, RegistrationFee: 500},
		{ID: "pkg-quarterly", Name: "Quarterly", DurationType: plan.Quarterly, DurationMonths: 3, Price: 5400},
	} {
		if err := h.catalog.SavePackage(ctx, e); err != nil {
			t.Fatalf("seed package: %v", err)
		}
	}
	for _, r := range []tax.Rule{
		{ID: "gst", Name: "GST", Rate: 18, Active: true},
		{ID: "vat-in", Name: "VAT", Rate: 10, Inclusive: true, Active: true},
	} {
		if err := h.catalog.SaveTax(ctx, r); err != nil {
			t.Fatalf("seed tax: %v", err)
		}
	}
	return h
}

func (h *harness) clock() time.Time { return testNow }

func (h *harness) notify() NotifyDeps {
	return NotifyDeps{Notifier: h.notifier, Outbox: h.outbox}
}

func (h *harness) submitDeps() SubmitReceiptDeps {
	return SubmitReceiptDeps{
		MemberStore:  h.members,
		ReceiptStore: h.receipts,
		Catalog:      h.catalog,
		Ledger:       h.ledger,
		Locks:        h.locks,
		Notify:       h.notify(),
		Now:          h.clock,
	}
}

func (h *harness) editDeps() EditReceiptDeps {
	return EditReceiptDeps{
		MemberStore:  h.members,
		ReceiptStore: h.receipts,
		Catalog:      h.catalog,
		Ledger:       h.ledger,
		Locks:        h.locks,
		Notify:       h.notify(),
		Now:          h.clock,
	}
}

func (h *harness) deleteDeps() DeleteReceiptDeps {
	return DeleteReceiptDeps{
		ReceiptStore: h.receipts,
		Ledger:       h.ledger,
		Locks:        h.locks,
		Notify:       h.notify(),
		Now:          h.clock,
	}
}

func (h *harness) registerDeps() RegisterMemberDeps {
	return RegisterMemberDeps{Catalog: h.catalog, Ledger: h.ledger, Notify: h.notify(), Now: h.clock}
}

// seedMember stores a member whose subscription ends on endDate ("" for none).
func (h *harness) seedMember(t *testing.T, id, endDate string, paid int64) member.Member {
	t.Helper()
	m := member.Member{
		ID:                    id,
		Name:                  "Member " + id,
		Email:                 id + "@example.com",
		PlanType:              "Monthly",
		SubscriptionStartDate: "2024-02-20",
		SubscriptionEndDate:   endDate,
		SubscriptionStatus:    member.SubscriptionActive,
		PackageFee:            2000,
		PaidAmount:            paid,
		Status:                member.StatusActive,
		CreatedAt:             testNow,
		UpdatedAt:             testNow,
	}
	if err := h.members.Save(context.Background(), m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return m
}

func (h *harness) member(t *testing.T, id string) member.Member {
	t.Helper()
	m, err := h.members.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get member %s: %v", id, err)
	}
	return m
}

// recordingNotifier records delivered events and fails while failing is set.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []event.Event
	failing bool
}

// Notify records e or fails.
func (n *recordingNotifier) Notify(_ context.Context, e event.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing {
		return errors.New("broker unavailable")
	}
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) kinds() []event.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]event.Kind, len(n.events))
	for i, e := range n.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (n *recordingNotifier) setFailing(v bool) {
	n.mu.Lock()
	n.failing = v
	n.mu.Unlock()
}

// fakeSender records sent mail and numbers message IDs.
type fakeSender struct {
	mu   sync.Mutex
	sent []emailAdapter.SendRequest
}

func (s *fakeSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return emailAdapter.SendResult{MessageID: fmt.Sprintf("msg-%d", len(s.sent)), SentAt: testNow}, nil
}
