package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage/ledger"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/receipt"
)

// DeleteReceiptInput identifies the receipt version to delete.
type DeleteReceiptInput struct {
	ReceiptID string `validate:"required"`
}

// DeleteReceiptDeps holds dependencies for DeleteReceipt.
type DeleteReceiptDeps struct {
	ReceiptStore ReceiptReader
	Ledger       ReceiptLedger
	Locks        *MemberLocks
	Notify       NotifyDeps
	Now          func() time.Time
}

// DeleteReceiptResult is the outcome of a receipt deletion.
type DeleteReceiptResult struct {
	Deleted    receipt.Receipt
	Reinstated *receipt.Receipt
	PaidDelta  int64
	Changes    event.ChangeSet
	Warnings   []string
}

// ExecuteDeleteReceipt removes one receipt version.
// Deleting the current version makes the latest remaining version of its chain current
// again and moves the member's paid amount back to that version's contribution.
// Deleting a superseded version leaves the member untouched.
// PRE: ReceiptID exists
// POST: Exactly one receipt row is removed
func ExecuteDeleteReceipt(ctx context.Context, input DeleteReceiptInput, deps DeleteReceiptDeps) (DeleteReceiptResult, error) {
	if err := validateInput(input); err != nil {
		return DeleteReceiptResult{}, err
	}

	target, err := loadReceipt(ctx, deps.ReceiptStore, input.ReceiptID)
	if err != nil {
		return DeleteReceiptResult{}, err
	}
	unlock := lockMember(deps.Locks, target.MemberID)
	defer unlock()

	target, err = loadReceipt(ctx, deps.ReceiptStore, input.ReceiptID)
	if err != nil {
		return DeleteReceiptResult{}, err
	}

	var paidDelta int64
	if target.IsCurrentVersion {
		paidDelta = -member.PaidContribution(target.TransactionType, target.AmountPaid)
		history, err := deps.ReceiptStore.ListHistory(ctx, target.ChainID())
		if err != nil {
			return DeleteReceiptResult{}, persistence("list receipt history", err)
		}
		if prev, ok := previousVersion(history, target.ID); ok {
			paidDelta += member.PaidContribution(prev.TransactionType, prev.AmountPaid)
		}
	}

	now := nowFunc(deps.Now)
	res, err := deps.Ledger.Delete(ctx, ledger.Deletion{ReceiptID: target.ID, PaidDelta: paidDelta, Now: now})
	if err != nil {
		if IsNotFound(err) {
			return DeleteReceiptResult{}, err
		}
		return DeleteReceiptResult{}, persistence("delete receipt", err)
	}

	reinstated := ""
	if res.Reinstated != nil {
		reinstated = res.Reinstated.ID
	}
	slog.Info("receipt_event", "event", "receipt_deleted", "receipt_id", target.ID, "member_id", target.MemberID,
		"was_current", target.IsCurrentVersion, "reinstated_id", reinstated, "paid_delta", paidDelta)

	changes := receiptChanges(event.ReceiptDeleted, target.MemberID, target.ID, now)
	return DeleteReceiptResult{
		Deleted:    res.Deleted,
		Reinstated: res.Reinstated,
		PaidDelta:  paidDelta,
		Changes:    changes,
		Warnings:   publishChanges(ctx, changes, deps.Notify, now),
	}, nil
}

// previousVersion returns the highest version in history other than id.
func previousVersion(history []receipt.Receipt, id string) (receipt.Receipt, bool) {
	var prev receipt.Receipt
	found := false
	for _, r := range history {
		if r.ID == id {
			continue
		}
		if !found || r.VersionNumber > prev.VersionNumber {
			prev = r
			found = true
		}
	}
	return prev, found
}
