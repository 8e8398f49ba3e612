package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
)

// ErrOutstandingDue is returned when archiving a member who still owes money.
var ErrOutstandingDue = errors.New("member has an outstanding due amount")

// MemberStoreForArchive defines the store interface needed by Archive/Restore.
type MemberStoreForArchive interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	Save(ctx context.Context, m member.Member) error
}

// ArchiveMemberInput carries input for the archive orchestrator.
type ArchiveMemberInput struct {
	MemberID string `validate:"required"`

	// Force archives even when the latest receipt has a due amount.
	Force bool
}

// ArchiveMemberDeps holds dependencies for ArchiveMember.
type ArchiveMemberDeps struct {
	MemberStore  MemberStoreForArchive
	ReceiptStore ReceiptReader
	Locks        *MemberLocks
	Notify       NotifyDeps
	Now          func() time.Time
}

// ExecuteArchiveMember archives a member.
// PRE: Member exists and is not archived
// POST: Status is archived; refused with ErrOutstandingDue unless forced when the latest receipt is unpaid
func ExecuteArchiveMember(ctx context.Context, input ArchiveMemberInput, deps ArchiveMemberDeps) ([]string, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	unlock := lockMember(deps.Locks, input.MemberID)
	defer unlock()

	m, err := loadMember(ctx, deps.MemberStore, input.MemberID)
	if err != nil {
		return nil, err
	}

	if !input.Force {
		latest, err := deps.ReceiptStore.LatestCurrent(ctx, m.ID)
		switch {
		case errors.Is(err, receiptStore.ErrNotFound):
		case err != nil:
			return nil, persistence("latest receipt", err)
		case latest.DueAmount > 0:
			return nil, fmt.Errorf("%w: %s", ErrOutstandingDue, FormatMoney(latest.DueAmount))
		}
	}

	if err := m.Archive(); err != nil {
		return nil, err
	}
	now := nowFunc(deps.Now)
	m.UpdatedAt = now
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return nil, persistence("save member", err)
	}

	slog.Info("member_event", "event", "member_archived", "member_id", m.ID, "forced", input.Force)
	return publishChanges(ctx, memberChanges(m.ID, now), deps.Notify, now), nil
}

// RestoreMemberInput carries input for the restore orchestrator.
type RestoreMemberInput struct {
	MemberID string `validate:"required"`
}

// RestoreMemberDeps holds dependencies for RestoreMember.
type RestoreMemberDeps struct {
	MemberStore MemberStoreForArchive
	Locks       *MemberLocks
	Notify      NotifyDeps
	Now         func() time.Time
}

// ExecuteRestoreMember restores an archived member to active status.
// PRE: Member exists and is archived
// POST: Member status set to active
func ExecuteRestoreMember(ctx context.Context, input RestoreMemberInput, deps RestoreMemberDeps) ([]string, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	unlock := lockMember(deps.Locks, input.MemberID)
	defer unlock()

	m, err := loadMember(ctx, deps.MemberStore, input.MemberID)
	if err != nil {
		return nil, err
	}
	if err := m.Restore(); err != nil {
		return nil, err
	}
	now := nowFunc(deps.Now)
	m.UpdatedAt = now
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return nil, persistence("save member", err)
	}

	slog.Info("member_event", "event", "member_restored", "member_id", m.ID)
	return publishChanges(ctx, memberChanges(m.ID, now), deps.Notify, now), nil
}

func memberChanges(memberID string, now time.Time) event.ChangeSet {
	return event.ChangeSet{{Kind: event.MemberDataUpdated, MemberID: memberID, OccurredAt: now}}
}
