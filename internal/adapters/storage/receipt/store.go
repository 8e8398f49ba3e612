package receipt

import (
	"context"

	domain "gymdesk/internal/domain/receipt"
)

// Store reads receipt state. Writes go through the ledger so that receipts and
// member patches commit together.
type Store interface {
	// GetByID retrieves any version of a receipt by its ID.
	// PRE: id is non-empty
	// POST: Returns the receipt or an error wrapping ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Receipt, error)

	// ListByMemberID returns a member's receipts, newest first.
	// PRE: memberID is non-empty
	// POST: Superseded versions are included only when filter.IncludeSuperseded is set
	ListByMemberID(ctx context.Context, memberID string, filter ListFilter) ([]domain.Receipt, error)

	// ListHistory returns every version in a chain, oldest first.
	// PRE: chainID is the ID of the first version
	// POST: Returns versions ordered by version_number
	ListHistory(ctx context.Context, chainID string) ([]domain.Receipt, error)

	// LatestCurrent returns the member's most recent current receipt.
	// PRE: memberID is non-empty
	// POST: Returns an error wrapping ErrNotFound when the member has none
	LatestCurrent(ctx context.Context, memberID string) (domain.Receipt, error)

	// ListLatestCurrent returns each member's most recent current receipt.
	// POST: At most one receipt per member
	ListLatestCurrent(ctx context.Context) ([]domain.Receipt, error)

	// CountByMemberID counts current receipts for the member.
	CountByMemberID(ctx context.Context, memberID string) (int, error)
}

// ListFilter carries filtering parameters for receipt lists.
type ListFilter struct {
	Limit             int
	Offset            int
	IncludeSuperseded bool
}
