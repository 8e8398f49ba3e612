// Package ledger commits receipt writes and their member side effects in one
// SQLite transaction, so a receipt never exists without its member update.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	memberStore "gymdesk/internal/adapters/storage/member"
	outboxStore "gymdesk/internal/adapters/storage/outbox"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	domainMember "gymdesk/internal/domain/member"
	domainOutbox "gymdesk/internal/domain/outbox"
	domainReceipt "gymdesk/internal/domain/receipt"
)

// ErrInvalidReceipt marks a receipt rejected before any write was attempted.
var ErrInvalidReceipt = errors.New("invalid receipt")

// Entry is everything one receipt write commits together.
type Entry struct {
	// NewMember is inserted before the receipt when registering a member.
	NewMember *domainMember.Member

	// Receipt is the record to insert. A zero Sequence reserves the next receipt number.
	Receipt domainReceipt.Receipt

	// Supersedes is the ID of the current version being replaced, empty for a new receipt.
	Supersedes string

	// Patch, when set, is written onto the receipt's member.
	Patch *domainMember.Patch

	// PaidDelta adjusts the member's paid amount when Patch is nil.
	PaidDelta int64

	// Outbox entries are queued atomically with the write.
	Outbox []domainOutbox.Entry

	Now time.Time
}

// Deletion removes one receipt version.
type Deletion struct {
	ReceiptID string

	// PaidDelta is added to the member's cumulative paid amount.
	PaidDelta int64

	Outbox []domainOutbox.Entry
	Now    time.Time
}

// DeleteResult describes what a deletion changed.
type DeleteResult struct {
	Deleted    domainReceipt.Receipt
	Reinstated *domainReceipt.Receipt
}

// Ledger is the transactional writer for receipts.
type Ledger struct {
	db storage.SQLDB
}

// New creates a ledger over db.
func New(db storage.SQLDB) *Ledger {
	return &Ledger{db: db}
}

// Record commits a new receipt or a new version of one.
// An unnumbered receipt (zero Sequence) gets its number inside the transaction.
// PRE: e.Receipt has its money fields reconciled
// POST: Receipt, member patch and outbox entries are all committed, or none are;
// an invalid receipt fails with ErrInvalidReceipt before the transaction opens
func (l *Ledger) Record(ctx context.Context, e Entry) (domainReceipt.Receipt, error) {
	r := e.Receipt
	if err := r.Validate(); err != nil {
		return domainReceipt.Receipt{}, fmt.Errorf("%w: %w", ErrInvalidReceipt, err)
	}
	err := storage.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		if e.NewMember != nil {
			if err := memberStore.Upsert(ctx, tx, *e.NewMember); err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		}
		if r.Sequence == 0 {
			seq, err := receiptStore.NextSequence(ctx, tx)
			if err != nil {
				return fmt.Errorf("reserve receipt number: %w", err)
			}
			r.Sequence = seq
			r.ReceiptNumber = domainReceipt.FormatNumber(seq)
		}
		if e.Supersedes != "" {
			if err := receiptStore.MarkSuperseded(ctx, tx, e.Supersedes, e.Now); err != nil {
				return err
			}
		}
		if err := receiptStore.Insert(ctx, tx, r); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		if e.Patch != nil {
			if err := memberStore.ApplyPatch(ctx, tx, r.MemberID, *e.Patch, e.Now); err != nil {
				return fmt.Errorf("patch member: %w", err)
			}
		} else if e.PaidDelta != 0 {
			if err := memberStore.AdjustPaid(ctx, tx, r.MemberID, e.PaidDelta, e.Now); err != nil {
				return fmt.Errorf("adjust member paid: %w", err)
			}
		}
		for _, o := range e.Outbox {
			if err := outboxStore.Upsert(ctx, tx, o); err != nil {
				return fmt.Errorf("queue outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domainReceipt.Receipt{}, err
	}
	return r, nil
}

// Delete removes one receipt version. When the deleted version was current, the
// latest remaining version of its chain becomes current again. When it was the first
// version, the remaining versions are relinked to the next one.
// PRE: d.ReceiptID exists
// POST: Deletion, reinstatement, paid adjustment and outbox entries commit together
func (l *Ledger) Delete(ctx context.Context, d Deletion) (DeleteResult, error) {
	var res DeleteResult
	err := storage.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		target, err := receiptStore.Get(ctx, tx, d.ReceiptID)
		if err != nil {
			return err
		}
		res.Deleted = target
		chainID := target.ChainID()

		if err := receiptStore.DeleteRow(ctx, tx, target.ID); err != nil {
			return err
		}

		if target.ID == chainID {
			first, err := receiptStore.EarliestInChain(ctx, tx, chainID)
			switch {
			case errors.Is(err, receiptStore.ErrNotFound):
			case err != nil:
				return err
			default:
				if err := receiptStore.RelinkChain(ctx, tx, chainID, first.ID); err != nil {
					return fmt.Errorf("relink chain: %w", err)
				}
				chainID = first.ID
			}
		}

		if target.IsCurrentVersion {
			prev, err := receiptStore.LatestInChain(ctx, tx, chainID)
			switch {
			case errors.Is(err, receiptStore.ErrNotFound):
			case err != nil:
				return err
			default:
				if err := receiptStore.Reinstate(ctx, tx, prev.ID); err != nil {
					return fmt.Errorf("reinstate receipt: %w", err)
				}
				prev.IsCurrentVersion = true
				prev.SupersededAt = nil
				res.Reinstated = &prev
			}
		}

		if d.PaidDelta != 0 {
			if err := memberStore.AdjustPaid(ctx, tx, target.MemberID, d.PaidDelta, d.Now); err != nil {
				return fmt.Errorf("adjust member paid: %w", err)
			}
		}
		for _, o := range d.Outbox {
			if err := outboxStore.Upsert(ctx, tx, o); err != nil {
				return fmt.Errorf("queue outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}
