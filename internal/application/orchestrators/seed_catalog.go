package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"

	"github.com/google/uuid"
)

// CatalogStoreForSeed defines the store interface needed by SeedCatalog.
type CatalogStoreForSeed interface {
	ListPackages(ctx context.Context) (plan.Catalog, error)
	SavePackage(ctx context.Context, e plan.CatalogEntry) error
	ListTaxes(ctx context.Context, activeOnly bool) ([]tax.Rule, error)
	SaveTax(ctx context.Context, r tax.Rule) error
}

// SeedCatalogInput carries the configured master packages and tax settings.
type SeedCatalogInput struct {
	Packages []plan.CatalogEntry
	Taxes    []tax.Rule

	// Force writes the entries even when the catalog already has data.
	Force bool
}

// SeedCatalogDeps holds dependencies for SeedCatalog.
type SeedCatalogDeps struct {
	CatalogStore CatalogStoreForSeed
}

// SeedCatalogResult reports how many rows were written.
type SeedCatalogResult struct {
	Packages int
	Taxes    int
}

// DefaultPackages is seeded when configuration supplies none.
func DefaultPackages() []plan.CatalogEntry {
	return []plan.CatalogEntry{
		{ID: "monthly", Name: "Monthly", DurationType: plan.Monthly, DurationMonths: 1, Price: 150000},
		{ID: "quarterly", Name: "Quarterly", DurationType: plan.Quarterly, DurationMonths: 3, Price: 400000},
		{ID: "half-yearly", Name: "Half Yearly", DurationType: plan.HalfYearly, DurationMonths: 6, Price: 750000},
		{ID: "yearly", Name: "Yearly", DurationType: plan.Yearly, DurationMonths: 12, Price: 1400000, RegistrationFee: 50000},
	}
}

// ExecuteSeedCatalog loads master packages and tax settings into an empty catalog.
// Packages keep their configured order. Entries without an ID get a generated one.
// PRE: Every rule passes tax.Rule.Validate
// POST: Nothing is written when the catalog is non-empty and Force is unset
func ExecuteSeedCatalog(ctx context.Context, input SeedCatalogInput, deps SeedCatalogDeps) (SeedCatalogResult, error) {
	var res SeedCatalogResult
	packages := input.Packages
	if len(packages) == 0 {
		packages = DefaultPackages()
	}

	existing, err := deps.CatalogStore.ListPackages(ctx)
	if err != nil {
		return res, persistence("list packages", err)
	}
	if len(existing) == 0 || input.Force {
		for _, e := range packages {
			if strings.TrimSpace(e.Name) == "" {
				continue
			}
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			if err := deps.CatalogStore.SavePackage(ctx, e); err != nil {
				return res, persistence("save package", err)
			}
			res.Packages++
		}
	}

	taxes, err := deps.CatalogStore.ListTaxes(ctx, false)
	if err != nil {
		return res, persistence("list taxes", err)
	}
	if len(taxes) == 0 || input.Force {
		for _, r := range input.Taxes {
			if err := r.Validate(); err != nil {
				return res, err
			}
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			if err := deps.CatalogStore.SaveTax(ctx, r); err != nil {
				return res, persistence("save tax", err)
			}
			res.Taxes++
		}
	}

	slog.Info("seed_event", "event", "catalog_seeded", "packages", res.Packages, "taxes", res.Taxes)
	return res, nil
}
