package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage/ledger"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/receipt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EditReceiptInput carries replacement values for a receipt.
type EditReceiptInput struct {
	ReceiptID string `validate:"required"`
	ReceiptFields
}

// EditReceiptDeps holds dependencies for EditReceipt.
type EditReceiptDeps struct {
	MemberStore  MemberStore
	ReceiptStore ReceiptChainReader
	Catalog      CatalogReader
	Ledger       ReceiptLedger
	Locks        *MemberLocks
	Notify       NotifyDeps
	Now          func() time.Time
}

// ExecuteEditReceipt appends a new version of a receipt.
// The member's plan, period and fees are re-patched only when the edited receipt is the
// member's latest one; the paid amount always moves by the change in counted payment.
// PRE: ReceiptID is the current version
// POST: Previous version is superseded and unchanged otherwise; new version is current
// INVARIANT: Receipt number, member and chain are carried over
func ExecuteEditReceipt(ctx context.Context, input EditReceiptInput, deps EditReceiptDeps) (result ReceiptResult, err error) {
	ctx, span := tracer.Start(ctx, "receipt.edit",
		trace.WithAttributes(attribute.String("receipt.id", input.ReceiptID)))
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

	existing, err := loadReceipt(ctx, deps.ReceiptStore, input.ReceiptID)
	if err != nil {
		return ReceiptResult{}, err
	}
	unlock := lockMember(deps.Locks, existing.MemberID)
	defer unlock()

	// Reload under the lock so the version check sees the last committed write.
	existing, err = loadReceipt(ctx, deps.ReceiptStore, input.ReceiptID)
	if err != nil {
		return ReceiptResult{}, err
	}
	if !existing.IsCurrentVersion {
		return ReceiptResult{}, receipt.ErrNotCurrentVersion
	}

	now := nowFunc(deps.Now)
	m, err := loadMember(ctx, deps.MemberStore, existing.MemberID)
	if err != nil {
		return ReceiptResult{}, err
	}

	requested := input.TransactionType
	if requested == "" {
		requested = storedRequestedType(existing)
	}
	fields := input.ReceiptFields
	if strings.TrimSpace(fields.SubscriptionStartDate) == "" {
		fields.SubscriptionStartDate = existing.SubscriptionStartDate
	}
	isFirst, err := isFirstChain(ctx, deps.ReceiptStore, existing)
	if err != nil {
		return ReceiptResult{}, err
	}
	computed, err := computeReceipt(ctx, fields, m, requested, isFirst, deps.Catalog, now)
	if err != nil {
		return ReceiptResult{}, err
	}
	computed.Receipt.ID = uuid.New().String()
	if computed.Receipt.CreatedBy == "" {
		computed.Receipt.CreatedBy = existing.CreatedBy
	}
	next := receipt.CreateOrVersion(&existing, computed.Receipt, now)

	paidDelta := member.PaidContribution(next.TransactionType, next.AmountPaid) -
		member.PaidContribution(existing.TransactionType, existing.AmountPaid)

	entry := ledger.Entry{Receipt: next, Supersedes: existing.ID, Now: now}
	latest, err := deps.ReceiptStore.LatestCurrent(ctx, m.ID)
	if err != nil {
		return ReceiptResult{}, persistence("latest receipt", err)
	}
	var patch member.Patch
	if latest.ID == existing.ID {
		patch = patchFor(m, computed)
		patch.PaidDelta = paidDelta
		entry.Patch = &patch
	} else {
		patch = member.Patch{PaidDelta: paidDelta}
		entry.PaidDelta = paidDelta
	}

	saved, err := deps.Ledger.Record(ctx, entry)
	if errors.Is(err, receiptStore.ErrSuperseded) {
		return ReceiptResult{}, receipt.ErrNotCurrentVersion
	}
	if err != nil {
		return ReceiptResult{}, recordFailure("record receipt version", err)
	}
	span.SetAttributes(attribute.Int("receipt.version", saved.VersionNumber))

	slog.Info("receipt_event", "event", "receipt_updated", "receipt_id", saved.ID, "original_receipt_id", saved.OriginalReceiptID,
		"version", saved.VersionNumber, "member_id", m.ID, "transaction_type", string(saved.TransactionType),
		"paid_delta", paidDelta)

	changes := receiptChanges(event.ReceiptUpdated, m.ID, saved.ID, now)
	return ReceiptResult{
		Receipt:        saved,
		Reconciliation: computed.Reconciliation,
		Patch:          patch,
		Changes:        changes,
		Warnings:       publishChanges(ctx, changes, deps.Notify, now),
	}, nil
}

// isFirstChain reports whether r belongs to the member's earliest remaining receipt chain.
// Versions share their chain's sequence, so only current receipts need comparing.
func isFirstChain(ctx context.Context, store ReceiptChainReader, r receipt.Receipt) (bool, error) {
	current, err := store.ListByMemberID(ctx, r.MemberID, receiptStore.ListFilter{})
	if err != nil {
		return false, persistence("list member receipts", err)
	}
	for _, c := range current {
		if c.Sequence < r.Sequence {
			return false, nil
		}
	}
	return true, nil
}
