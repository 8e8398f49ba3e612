package tax_test

import (
	"testing"

	"gymdesk/internal/domain/tax"
)

var (
	gstIncl  = tax.Rule{ID: "gst-in", Name: "GST 18% incl", Rate: 18, Inclusive: true, Active: true}
	vatIncl  = tax.Rule{ID: "vat-in", Name: "VAT 5% incl", Rate: 5, Inclusive: true, Active: true}
	gstExcl  = tax.Rule{ID: "gst-ex", Name: "GST 18%", Rate: 18, Active: true}
	cessExcl = tax.Rule{ID: "cess", Name: "Cess 2%", Rate: 2, Active: true}
)

// TestApply covers inclusive, exclusive and combined application.
func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		base      int64
		rules     []tax.Rule
		wantTax   int64
		wantTotal int64
	}{
		{"no taxes", 100000, nil, 0, 100000},
		{"exclusive adds on top", 100000, []tax.Rule{gstExcl}, 18000, 118000},
		{"inclusive carved out", 118000, []tax.Rule{gstIncl}, 18000, 118000},
		{"both", 118000, []tax.Rule{gstIncl, cessExcl}, 18000 + 2360, 118000 + 2360},
		{"rounding", 999, []tax.Rule{gstExcl}, 180, 1179},
		{"exact half rounds away from zero", 375, []tax.Rule{{ID: "t", Name: "T", Rate: 9.2, Active: true}}, 35, 410},
		{"inclusive half rounds net up", 5, []tax.Rule{{ID: "d", Name: "Double", Rate: 100, Inclusive: true, Active: true}}, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tax.Apply(tt.base, tt.rules)
			if got.TaxAmount != tt.wantTax {
				t.Errorf("TaxAmount = %d, want %d", got.TaxAmount, tt.wantTax)
			}
			if got.TotalAmount != tt.wantTotal {
				t.Errorf("TotalAmount = %d, want %d", got.TotalAmount, tt.wantTotal)
			}
			if got.BaseAmount != tt.base {
				t.Errorf("BaseAmount = %d, want %d", got.BaseAmount, tt.base)
			}
			if len(got.Breakdown) != len(tt.rules) {
				t.Errorf("Breakdown has %d lines, want %d", len(got.Breakdown), len(tt.rules))
			}
		})
	}
}

// TestSelection_ReplacesSameClass verifies the one-per-class slots.
func TestSelection_ReplacesSameClass(t *testing.T) {
	var s tax.Selection
	if !s.IsEmpty() {
		t.Fatal("new selection should be empty")
	}
	s.Select(gstIncl)
	s.Select(gstExcl)
	s.Select(vatIncl)

	rules := s.Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "vat-in" {
		t.Errorf("inclusive slot = %s, want vat-in", rules[0].ID)
	}
	if rules[1].ID != "gst-ex" {
		t.Errorf("exclusive slot = %s, want gst-ex", rules[1].ID)
	}

}

// TestSelection_RejectsInactive verifies inactive rules are not selectable.
func TestSelection_RejectsInactive(t *testing.T) {
	var s tax.Selection
	off := gstExcl
	off.Active = false
	if err := s.Select(off); err != tax.ErrRuleInactive {
		t.Errorf("Select(inactive) = %v, want ErrRuleInactive", err)
	}
	if !s.IsEmpty() {
		t.Error("inactive rule should not be selected")
	}
}

// TestSelectByID verifies that later IDs of the same class win.
func TestSelectByID(t *testing.T) {
	s := tax.SelectByID([]tax.Rule{gstIncl, vatIncl, gstExcl, cessExcl}, []string{"gst-ex", "gst-in", "cess", "missing"})
	rules := s.Rules()
	if len(rules) != 2 || rules[0].ID != "gst-in" || rules[1].ID != "cess" {
		t.Errorf("rules = %+v", rules)
	}
}

// TestRuleValidate covers rule validation.
func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    tax.Rule
		wantErr bool
	}{
		{"valid", gstExcl, false},
		{"empty name", tax.Rule{Rate: 5}, true},
		{"negative rate", tax.Rule{Name: "x", Rate: -1}, true},
		{"over 100", tax.Rule{Name: "x", Rate: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
