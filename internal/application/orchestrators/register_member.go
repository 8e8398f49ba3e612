package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage/ledger"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/receipt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RegisterMemberInput carries a new member and the first receipt.
type RegisterMemberInput struct {
	Name  string `validate:"required,max=100"`
	Email string `validate:"omitempty,email"`
	Phone string `validate:"max=30"`
	ReceiptFields

	SendEmail bool
}

// RegisterMemberDeps holds dependencies for RegisterMember.
type RegisterMemberDeps struct {
	Catalog CatalogReader
	Ledger  ReceiptLedger
	Notify  NotifyDeps
	Now     func() time.Time
}

// RegisterMemberResult carries the created member and its first receipt.
type RegisterMemberResult struct {
	Member  member.Member
	Receipt ReceiptResult
}

// ExecuteRegisterMember creates a member together with the first receipt.
// PRE: Name is non-empty
// POST: Member and receipt commit in one transaction; the receipt is tagged New Membership
// INVARIANT: Requested type defaults to payment; an explicit renewal keeps its Renewal tag
func ExecuteRegisterMember(ctx context.Context, input RegisterMemberInput, deps RegisterMemberDeps) (result RegisterMemberResult, err error) {
	ctx, span := tracer.Start(ctx, "member.register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateInput(input); err != nil {
		return RegisterMemberResult{}, err
	}

	now := nowFunc(deps.Now)
	m := member.Member{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Status:    member.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		return RegisterMemberResult{}, payment.Invalid("member", err.Error())
	}
	span.SetAttributes(attribute.String("member.id", m.ID))

	requested := input.TransactionType
	if requested == "" {
		requested = payment.TypePayment
	}
	computed, err := computeReceipt(ctx, input.ReceiptFields, m, requested, true, deps.Catalog, now)
	if err != nil {
		return RegisterMemberResult{}, err
	}
	computed.Receipt.ID = uuid.New().String()
	r := receipt.CreateOrVersion(nil, computed.Receipt, now)
	patch := patchFor(m, computed)

	var queued []outbox.Entry
	if input.SendEmail && m.Email != "" {
		entry, err := receiptEmailEntry(r, m, now)
		if err != nil {
			return RegisterMemberResult{}, err
		}
		queued = append(queued, entry)
	}

	saved, err := deps.Ledger.Record(ctx, ledger.Entry{NewMember: &m, Receipt: r, Patch: &patch, Outbox: queued, Now: now})
	if err != nil {
		return RegisterMemberResult{}, recordFailure("register member", err)
	}
	m.Apply(patch, now)

	slog.Info("member_event", "event", "member_registered", "member_id", m.ID, "plan_type", m.PlanType,
		"receipt_id", saved.ID, "receipt_number", saved.ReceiptNumber)

	changes := receiptChanges(event.ReceiptCreated, m.ID, saved.ID, now)
	return RegisterMemberResult{
		Member: m,
		Receipt: ReceiptResult{
			Receipt:        saved,
			Reconciliation: computed.Reconciliation,
			Patch:          patch,
			Changes:        changes,
			Warnings:       publishChanges(ctx, changes, deps.Notify, now),
		},
	}, nil
}
