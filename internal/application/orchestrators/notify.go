package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/outbox"

	"github.com/google/uuid"
)

// OutboxWriter queues deferred work.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// NotifyDeps delivers the change-set of a committed write.
type NotifyDeps struct {
	Notifier event.Notifier
	Outbox   OutboxWriter
}

// publishChanges notifies every event in changes after the write committed.
// A failed notification is queued for retry and reported as a warning; it never fails the write.
// POST: Returned warnings are empty when every notification succeeded
func publishChanges(ctx context.Context, changes event.ChangeSet, deps NotifyDeps, now time.Time) []string {
	if deps.Notifier == nil {
		return nil
	}
	var warnings []string
	for _, e := range changes {
		err := deps.Notifier.Notify(ctx, e)
		if err == nil {
			continue
		}
		slog.Warn("event_notify_failed", "kind", string(e.Kind), "member_id", e.MemberID, "receipt_id", e.ReceiptID, "error", err)
		warnings = append(warnings, fmt.Sprintf("%s notification failed: %v", e.Kind, err))

		if deps.Outbox == nil {
			continue
		}
		entry, err := outbox.New(uuid.New().String(), outbox.ActionTypeEventNotify, e, now)
		if err == nil {
			err = deps.Outbox.Save(ctx, entry)
		}
		if err != nil {
			slog.Error("event_notify_queue_failed", "kind", string(e.Kind), "member_id", e.MemberID, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s notification could not be queued for retry", e.Kind))
		}
	}
	return warnings
}

func receiptChanges(kind event.Kind, memberID, receiptID string, now time.Time) event.ChangeSet {
	return event.ChangeSet{
		{Kind: kind, MemberID: memberID, ReceiptID: receiptID, OccurredAt: now},
		{Kind: event.MemberDataUpdated, MemberID: memberID, OccurredAt: now},
	}
}
