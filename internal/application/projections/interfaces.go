package projections

import (
	"context"
	"errors"
	"time"

	"gymdesk/internal/adapters/storage/member"
	"gymdesk/internal/adapters/storage/receipt"
	domainMember "gymdesk/internal/domain/member"
	domainReceipt "gymdesk/internal/domain/receipt"
)

// MemberStore interface for member queries.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (domainMember.Member, error)
	List(ctx context.Context, filter member.ListFilter) ([]domainMember.Member, error)
	Count(ctx context.Context, filter member.ListFilter) (int, error)
}

// ReceiptStore interface for receipt queries.
type ReceiptStore interface {
	GetByID(ctx context.Context, id string) (domainReceipt.Receipt, error)
	ListByMemberID(ctx context.Context, memberID string, filter receipt.ListFilter) ([]domainReceipt.Receipt, error)
	ListHistory(ctx context.Context, chainID string) ([]domainReceipt.Receipt, error)
	LatestCurrent(ctx context.Context, memberID string) (domainReceipt.Receipt, error)
	ListLatestCurrent(ctx context.Context) ([]domainReceipt.Receipt, error)
}

// latestCurrent returns the member's latest current receipt; ok is false when there is none.
func latestCurrent(ctx context.Context, store ReceiptStore, memberID string) (domainReceipt.Receipt, bool, error) {
	r, err := store.LatestCurrent(ctx, memberID)
	if errors.Is(err, receipt.ErrNotFound) {
		return domainReceipt.Receipt{}, false, nil
	}
	if err != nil {
		return domainReceipt.Receipt{}, false, err
	}
	return r, true, nil
}

func today(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}
