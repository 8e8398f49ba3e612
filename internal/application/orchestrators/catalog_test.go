package orchestrators

import (
	"context"
	"errors"
	"testing"

	"gymdesk/internal/domain/payment"
)

func TestExecuteSavePackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deps := SaveCatalogDeps{CatalogStore: h.catalog}

	e, err := ExecuteSavePackage(ctx, SavePackageInput{
		Name: "  Student Yearly ", DurationType: "yearly", DurationMonths: 12, Price: 9000,
	}, deps)
	if err != nil {
		t.Fatalf("ExecuteSavePackage: %v", err)
	}
	if e.ID == "" || e.Name != "Student Yearly" {
		t.Errorf("entry = %+v", e)
	}

	packages, err := h.catalog.ListPackages(ctx)
	if err != nil {
		t.Fatalf("ListPackages: %v", err)
	}
	if len(packages) != 3 || packages[2].ID != e.ID {
		t.Fatalf("packages = %+v", packages)
	}

	if err := ExecuteDeletePackage(ctx, DeleteCatalogInput{ID: e.ID}, deps); err != nil {
		t.Fatalf("ExecuteDeletePackage: %v", err)
	}
	packages, _ = h.catalog.ListPackages(ctx)
	if len(packages) != 2 {
		t.Errorf("after delete %d packages, want 2", len(packages))
	}
}

func TestExecuteSavePackage_Validation(t *testing.T) {
	h := newHarness(t)
	deps := SaveCatalogDeps{CatalogStore: h.catalog}

	tests := []struct {
		name  string
		input SavePackageInput
		field string
	}{
		{"missing name", SavePackageInput{Price: 100}, "name"},
		{"bad duration", SavePackageInput{Name: "X", DurationType: "weekly"}, "duration_type"},
		{"negative price", SavePackageInput{Name: "X", Price: -1}, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExecuteSavePackage(context.Background(), tt.input, deps)
			var vErr *payment.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestExecuteSaveTax(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deps := SaveCatalogDeps{CatalogStore: h.catalog}

	r, err := ExecuteSaveTax(ctx, SaveTaxInput{ID: "cess", Name: "Cess", Rate: 2.5, Active: false}, deps)
	if err != nil {
		t.Fatalf("ExecuteSaveTax: %v", err)
	}
	if r.ID != "cess" {
		t.Errorf("ID = %q", r.ID)
	}

	active, _ := h.catalog.ListTaxes(ctx, true)
	all, _ := h.catalog.ListTaxes(ctx, false)
	if len(all) != len(active)+1 {
		t.Errorf("inactive tax should be listed only in full list: active=%d all=%d", len(active), len(all))
	}

	_, err = ExecuteSaveTax(ctx, SaveTaxInput{Name: "Bad", Rate: 120}, deps)
	var vErr *payment.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "rate" {
		t.Fatalf("expected rate validation error, got %v", err)
	}

	if err := ExecuteDeleteTax(ctx, DeleteCatalogInput{ID: "cess"}, deps); err != nil {
		t.Fatalf("ExecuteDeleteTax: %v", err)
	}
	if err := ExecuteDeleteTax(ctx, DeleteCatalogInput{}, deps); err == nil {
		t.Error("expected error for empty id")
	}
}
