package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage/ledger"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/receipt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SubmitReceiptInput carries a new receipt for an existing member.
type SubmitReceiptInput struct {
	MemberID string `validate:"required"`
	ReceiptFields

	// SendEmail queues a receipt email to the member's address.
	SendEmail bool
}

// SubmitReceiptDeps holds dependencies for SubmitReceipt.
type SubmitReceiptDeps struct {
	MemberStore  MemberStore
	ReceiptStore ReceiptReader
	Catalog      CatalogReader
	Ledger       ReceiptLedger
	Locks        *MemberLocks
	Notify       NotifyDeps
	Now          func() time.Time
}

// ReceiptResult is the outcome of a receipt write.
type ReceiptResult struct {
	Receipt        receipt.Receipt
	Reconciliation payment.Reconciliation
	Patch          member.Patch
	Changes        event.ChangeSet
	Warnings       []string
}

// ExecuteSubmitReceipt records a payment for a member.
// A member with no end date or an expired one is renewed from today whatever type was requested.
// PRE: Member exists and is not archived
// POST: Receipt is version 1 of a new chain; member plan, period, fees are patched and
// PaidAmount grows by AmountPaid for renewal and payment receipts, in one transaction
// INVARIANT: Writes for one member are serialized by deps.Locks
func ExecuteSubmitReceipt(ctx context.Context, input SubmitReceiptInput, deps SubmitReceiptDeps) (result ReceiptResult, err error) {
	ctx, span := tracer.Start(ctx, "receipt.submit",
		trace.WithAttributes(attribute.String("member.id", input.MemberID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateInput(input); err != nil {
		return ReceiptResult{}, err
	}

	unlock := lockMember(deps.Locks, input.MemberID)
	defer unlock()

	now := nowFunc(deps.Now)
	m, err := loadMember(ctx, deps.MemberStore, input.MemberID)
	if err != nil {
		return ReceiptResult{}, err
	}
	if m.IsArchived() {
		return ReceiptResult{}, payment.Invalid("member_id", "member is archived")
	}

	count, err := deps.ReceiptStore.CountByMemberID(ctx, m.ID)
	if err != nil {
		return ReceiptResult{}, persistence("count receipts", err)
	}

	fields := input.ReceiptFields
	requested, forced := requestedType(input.TransactionType, m, now)
	if forced {
		fields.SubscriptionStartDate = plan.FormatDate(now)
	}
	computed, err := computeReceipt(ctx, fields, m, requested, count == 0, deps.Catalog, now)
	if err != nil {
		return ReceiptResult{}, err
	}
	computed.Receipt.ID = uuid.New().String()
	r := receipt.CreateOrVersion(nil, computed.Receipt, now)
	patch := patchFor(m, computed)

	var queued []outbox.Entry
	if input.SendEmail && m.Email != "" {
		entry, err := receiptEmailEntry(r, m, now)
		if err != nil {
			return ReceiptResult{}, err
		}
		queued = append(queued, entry)
	}

	saved, err := deps.Ledger.Record(ctx, ledger.Entry{Receipt: r, Patch: &patch, Outbox: queued, Now: now})
	if err != nil {
		return ReceiptResult{}, recordFailure("record receipt", err)
	}
	span.SetAttributes(
		attribute.String("receipt.id", saved.ID),
		attribute.String("receipt.type", string(saved.TransactionType)),
		attribute.Int64("receipt.due", saved.DueAmount),
	)

	slog.Info("receipt_event", "event", "receipt_created", "receipt_id", saved.ID, "receipt_number", saved.ReceiptNumber,
		"member_id", m.ID, "transaction_type", string(saved.TransactionType), "amount", saved.Amount,
		"amount_paid", saved.AmountPaid, "due_amount", saved.DueAmount)

	changes := receiptChanges(event.ReceiptCreated, m.ID, saved.ID, now)
	return ReceiptResult{
		Receipt:        saved,
		Reconciliation: computed.Reconciliation,
		Patch:          patch,
		Changes:        changes,
		Warnings:       publishChanges(ctx, changes, deps.Notify, now),
	}, nil
}

func receiptEmailEntry(r receipt.Receipt, m member.Member, now time.Time) (outbox.Entry, error) {
	return outbox.New(uuid.New().String(), outbox.ActionTypeReceiptEmail, outbox.ReceiptEmailPayload{
		ReceiptID: r.ID,
		MemberID:  m.ID,
		To:        m.Email,
	}, now)
}
