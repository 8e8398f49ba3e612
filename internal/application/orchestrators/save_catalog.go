package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"

	"github.com/google/uuid"
)

// CatalogStoreForSave defines the store interface needed by catalog management.
type CatalogStoreForSave interface {
	SavePackage(ctx context.Context, e plan.CatalogEntry) error
	DeletePackage(ctx context.Context, id string) error
	SaveTax(ctx context.Context, r tax.Rule) error
	DeleteTax(ctx context.Context, id string) error
}

// SaveCatalogDeps holds dependencies for catalog management.
type SaveCatalogDeps struct {
	CatalogStore CatalogStoreForSave
}

// SavePackageInput carries a master package.
type SavePackageInput struct {
	ID              string `validate:"max=64"`
	Name            string `validate:"required,max=100"`
	DurationType    string `validate:"omitempty,oneof=monthly quarterly half_yearly yearly"`
	DurationMonths  int    `validate:"gte=0,lte=120"`
	Price           int64  `validate:"gte=0"`
	RegistrationFee int64  `validate:"gte=0"`
	Discount        int64  `validate:"gte=0"`
	PaymentMethod   string `validate:"max=50"`
}

// ExecuteSavePackage creates or replaces a master package.
// PRE: Name is non-empty
// POST: Entry is stored under its ID, a new one is generated when empty
func ExecuteSavePackage(ctx context.Context, input SavePackageInput, deps SaveCatalogDeps) (plan.CatalogEntry, error) {
	if err := validateInput(input); err != nil {
		return plan.CatalogEntry{}, err
	}
	e := plan.CatalogEntry{
		ID:              strings.TrimSpace(input.ID),
		Name:            strings.TrimSpace(input.Name),
		DurationType:    input.DurationType,
		DurationMonths:  input.DurationMonths,
		Price:           input.Price,
		RegistrationFee: input.RegistrationFee,
		Discount:        input.Discount,
		PaymentMethod:   input.PaymentMethod,
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := deps.CatalogStore.SavePackage(ctx, e); err != nil {
		return plan.CatalogEntry{}, persistence("save package", err)
	}
	slog.Info("catalog_event", "event", "package_saved", "package_id", e.ID, "name", e.Name)
	return e, nil
}

// SaveTaxInput carries a tax setting.
type SaveTaxInput struct {
	ID        string  `validate:"max=64"`
	Name      string  `validate:"required,max=100"`
	Rate      float64 `validate:"gte=0,lte=100"`
	Inclusive bool
	Active    bool
}

// ExecuteSaveTax creates or replaces a tax setting.
// PRE: 0 <= Rate <= 100
// POST: Rule is stored under its ID, a new one is generated when empty
func ExecuteSaveTax(ctx context.Context, input SaveTaxInput, deps SaveCatalogDeps) (tax.Rule, error) {
	if err := validateInput(input); err != nil {
		return tax.Rule{}, err
	}
	r := tax.Rule{
		ID:        strings.TrimSpace(input.ID),
		Name:      strings.TrimSpace(input.Name),
		Rate:      input.Rate,
		Inclusive: input.Inclusive,
		Active:    input.Active,
	}
	if err := r.Validate(); err != nil {
		if errors.Is(err, tax.ErrInvalidRate) {
			return tax.Rule{}, payment.Invalid("rate", "must be between 0 and 100")
		}
		return tax.Rule{}, payment.Invalid("name", "is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if err := deps.CatalogStore.SaveTax(ctx, r); err != nil {
		return tax.Rule{}, persistence("save tax", err)
	}
	slog.Info("catalog_event", "event", "tax_saved", "tax_id", r.ID, "rate", r.Rate, "inclusive", r.Inclusive)
	return r, nil
}

// DeleteCatalogInput names a package or tax to remove.
type DeleteCatalogInput struct {
	ID string `validate:"required"`
}

// ExecuteDeletePackage removes a master package. Stored receipts keep their plan text.
func ExecuteDeletePackage(ctx context.Context, input DeleteCatalogInput, deps SaveCatalogDeps) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if err := deps.CatalogStore.DeletePackage(ctx, input.ID); err != nil {
		return persistence("delete package", err)
	}
	slog.Info("catalog_event", "event", "package_deleted", "package_id", input.ID)
	return nil
}

// ExecuteDeleteTax removes a tax setting. Stored receipts keep their computed tax lines.
func ExecuteDeleteTax(ctx context.Context, input DeleteCatalogInput, deps SaveCatalogDeps) error {
	if err := validateInput(input); err != nil {
		return err
	}
	if err := deps.CatalogStore.DeleteTax(ctx, input.ID); err != nil {
		return persistence("delete tax", err)
	}
	slog.Info("catalog_event", "event", "tax_deleted", "tax_id", input.ID)
	return nil
}
