package payment_test

import (
	"errors"
	"testing"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"

	"pgregory.net/rapid"
)

var allTypes = []payment.TransactionType{
	payment.TypePayment,
	payment.TypePartialPayment,
	payment.TypeRenewal,
	payment.TypeAdjustment,
}

// TestComputeFeeTotal_Property checks the fee total invariant.
func TestComputeFeeTotal_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := rapid.Int64Range(0, 1_000_000_00).Draw(rt, "reg")
		pkg := rapid.Int64Range(0, 1_000_000_00).Draw(rt, "pkg")
		discount := rapid.Int64Range(0, 3_000_000_00).Draw(rt, "discount")

		got := payment.ComputeFeeTotal(reg, pkg, discount)
		want := max(0, reg+pkg-discount)
		if got != want {
			rt.Fatalf("ComputeFeeTotal(%d, %d, %d) = %d, want %d", reg, pkg, discount, got, want)
		}
		if got < 0 {
			rt.Fatalf("negative total %d", got)
		}
	})
}

// TestComputeDue_Property checks the due invariant.
func TestComputeDue_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.Int64Range(0, 1_000_000_00).Draw(rt, "total")
		paid := rapid.Int64Range(0, 1_000_000_00).Draw(rt, "paid")

		if got, want := payment.ComputeDue(total, paid), max(0, total-paid); got != want {
			rt.Fatalf("ComputeDue(%d, %d) = %d, want %d", total, paid, got, want)
		}
		if got := payment.ComputeDue(total, total); got != 0 {
			rt.Fatalf("ComputeDue(%d, %d) = %d, want 0", total, total, got)
		}
	})
}

// TestClassifyTransaction_PartialPromotion checks that outstanding partly paid receipts
// are always partial payments.
func TestClassifyTransaction_PartialPromotion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		requested := rapid.SampledFrom(allTypes).Draw(rt, "requested")
		total := rapid.Int64Range(0, 1_000_000).Draw(rt, "total")
		paid := rapid.Int64Range(0, total).Draw(rt, "paid")
		due := payment.ComputeDue(total, paid)

		got := payment.ClassifyTransaction(requested, due, paid)
		if due > 0 && paid > 0 {
			if got != payment.TypePartialPayment {
				rt.Fatalf("ClassifyTransaction(%s, due=%d, paid=%d) = %s", requested, due, paid, got)
			}
			return
		}
		if got != requested {
			rt.Fatalf("ClassifyTransaction(%s, due=%d, paid=%d) = %s, want unchanged", requested, due, paid, got)
		}
	})
}

// TestTagReceipt covers the tag precedence.
func TestTagReceipt(t *testing.T) {
	tests := []struct {
		name  string
		tt    payment.TransactionType
		first bool
		want  payment.ReceiptTag
	}{
		{"renewal first receipt", payment.TypeRenewal, true, payment.TagRenewal},
		{"renewal later", payment.TypeRenewal, false, payment.TagRenewal},
		{"first payment", payment.TypePayment, true, payment.TagNewMembership},
		{"first partial", payment.TypePartialPayment, true, payment.TagNewMembership},
		{"later payment", payment.TypePayment, false, payment.TagPayment},
		{"later adjustment", payment.TypeAdjustment, false, payment.TagPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payment.TagReceipt(tt.tt, tt.first); got != tt.want {
				t.Errorf("TagReceipt() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDefaultTransactionType covers the membership state machine.
func TestDefaultTransactionType(t *testing.T) {
	tests := []struct {
		name       string
		status     plan.MembershipStatus
		hasEnd     bool
		want       payment.TransactionType
		wantForced bool
	}{
		{"no subscription", plan.StatusExpired, false, payment.TypeRenewal, true},
		{"expired", plan.StatusExpired, true, payment.TypeRenewal, true},
		{"expiring soon", plan.StatusExpiringSoon, true, payment.TypePayment, false},
		{"active", plan.StatusActive, true, payment.TypePayment, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, forced := payment.DefaultTransactionType(tt.status, tt.hasEnd)
			if got != tt.want || forced != tt.wantForced {
				t.Errorf("DefaultTransactionType() = (%s, %v), want (%s, %v)", got, forced, tt.want, tt.wantForced)
			}
		})
	}
}

// TestReconcile_ScenarioA: new member paying in full.
func TestReconcile_ScenarioA(t *testing.T) {
	r, err := payment.Reconcile(payment.Input{
		Fees:           payment.Fees{RegistrationFee: 500, PackageFee: 2000},
		AmountPaid:     2500,
		Requested:      payment.TypePayment,
		IsFirstReceipt: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalAmount != 2500 || r.DueAmount != 0 {
		t.Errorf("total=%d due=%d, want 2500/0", r.TotalAmount, r.DueAmount)
	}
	if r.TransactionType != payment.TypePayment {
		t.Errorf("TransactionType = %s, want payment", r.TransactionType)
	}
	if r.Tag != payment.TagNewMembership {
		t.Errorf("Tag = %q, want New Membership", r.Tag)
	}
}

// TestReconcile_ScenarioB: partial renewal is promoted but keeps its Renewal tag.
func TestReconcile_ScenarioB(t *testing.T) {
	r, err := payment.Reconcile(payment.Input{
		Fees:       payment.Fees{PackageFee: 1500},
		AmountPaid: 1000,
		Requested:  payment.TypeRenewal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalAmount != 1500 || r.DueAmount != 500 {
		t.Errorf("total=%d due=%d, want 1500/500", r.TotalAmount, r.DueAmount)
	}
	if r.TransactionType != payment.TypePartialPayment {
		t.Errorf("TransactionType = %s, want partial_payment", r.TransactionType)
	}
	if r.Requested != payment.TypeRenewal {
		t.Errorf("Requested = %s, want renewal", r.Requested)
	}

	// Tagging from the requested type keeps the renewal label.
	if r.Tag != payment.TagRenewal {
		t.Errorf("Tag = %q, want Renewal", r.Tag)
	}
	// Tagging after promotion would lose it.
	if got := payment.TagReceipt(r.TransactionType, false); got != payment.TagPayment {
		t.Errorf("post-promotion tag = %q, want Payment", got)
	}
}

// TestReconcile_Taxes verifies tax output becomes the total.
func TestReconcile_Taxes(t *testing.T) {
	r, err := payment.Reconcile(payment.Input{
		Fees:       payment.Fees{PackageFee: 100000},
		Taxes:      []tax.Rule{{ID: "gst", Name: "GST", Rate: 18, Active: true}},
		AmountPaid: 118000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalAmount != 118000 || r.Tax.TaxAmount != 18000 || r.DueAmount != 0 {
		t.Errorf("reconciliation = %+v", r)
	}
	if r.Requested != payment.TypePayment {
		t.Errorf("empty requested should default to payment, got %s", r.Requested)
	}
}

// TestReconcile_TotalOverride verifies a manual total supersedes the computed one.
func TestReconcile_TotalOverride(t *testing.T) {
	override := int64(1200)
	r, err := payment.Reconcile(payment.Input{
		Fees:          payment.Fees{PackageFee: 1500},
		TotalOverride: &override,
		AmountPaid:    1200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FeeTotal != 1500 || r.TotalAmount != 1200 || r.DueAmount != 0 {
		t.Errorf("reconciliation = %+v", r)
	}
}

// TestReconcile_Validation covers rejected inputs.
func TestReconcile_Validation(t *testing.T) {
	neg := int64(-1)
	tests := []struct {
		name      string
		in        payment.Input
		wantField string
	}{
		{"zero package fee", payment.Input{Fees: payment.Fees{RegistrationFee: 100}}, "package_fee"},
		{"negative discount", payment.Input{Fees: payment.Fees{PackageFee: 100, Discount: -5}}, "discount"},
		{"negative registration", payment.Input{Fees: payment.Fees{PackageFee: 100, RegistrationFee: -5}}, "registration_fee"},
		{"paid exceeds total", payment.Input{Fees: payment.Fees{PackageFee: 100}, AmountPaid: 101}, "amount_paid"},
		{"negative paid", payment.Input{Fees: payment.Fees{PackageFee: 100}, AmountPaid: -1}, "amount_paid"},
		{"unknown type", payment.Input{Fees: payment.Fees{PackageFee: 100}, Requested: "refund"}, "transaction_type"},
		{"negative override", payment.Input{Fees: payment.Fees{PackageFee: 100}, TotalOverride: &neg}, "total_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payment.Reconcile(tt.in)
			var vErr *payment.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

// TestReconcile_DiscountBeyondFees clamps the total at zero.
func TestReconcile_DiscountBeyondFees(t *testing.T) {
	r, err := payment.Reconcile(payment.Input{
		Fees: payment.Fees{PackageFee: 100, Discount: 500},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalAmount != 0 || r.DueAmount != 0 {
		t.Errorf("total=%d due=%d, want 0/0", r.TotalAmount, r.DueAmount)
	}
}
