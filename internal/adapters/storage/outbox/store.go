package outbox

import (
	"context"

	domain "gymdesk/internal/domain/outbox"
)

// Store persists deferred side effects of committed receipt writes.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns pending and retrying entries, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns entries whose attempts are exhausted, most recent first.
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListByActionType filters by action type; an empty status matches all.
	ListByActionType(ctx context.Context, actionType string, status string, limit int) ([]domain.Entry, error)

	// Delete removes a terminal entry.
	Delete(ctx context.Context, id string) error
}
