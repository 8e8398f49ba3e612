package catalog

import (
	"context"

	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"
)

// Store persists master packages and tax settings.
type Store interface {
	ListPackages(ctx context.Context) (plan.Catalog, error)
	SavePackage(ctx context.Context, e plan.CatalogEntry) error
	DeletePackage(ctx context.Context, id string) error
	ListTaxes(ctx context.Context, activeOnly bool) ([]tax.Rule, error)
	SaveTax(ctx context.Context, r tax.Rule) error
	DeleteTax(ctx context.Context, id string) error
}
