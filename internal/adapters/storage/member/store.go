package member

import (
	"context"

	domain "gymdesk/internal/domain/member"
)

// Store persists Member state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Member, error)
	Save(ctx context.Context, value domain.Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Member, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	SearchByName(ctx context.Context, query string, limit int) ([]domain.Member, error)
}

// ListFilter carries filtering parameters for List operations.
// EndBefore keeps members whose subscription ends on or before the given YYYY-MM-DD date.
type ListFilter struct {
	Limit     int
	Offset    int
	Status    string
	PlanType  string
	Search    string
	EndBefore string
	Sort      string
	Dir       string
}
