package orchestrators

import (
	"strings"
	"testing"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/receipt"
	"gymdesk/internal/domain/tax"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{150050, "1500.50"},
		{-2500, "-25.00"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderReceiptEmail(t *testing.T) {
	r := receipt.Receipt{
		ReceiptNumber:         "RCP-000042",
		MemberName:            "Asha <b>Rao</b>",
		PlanType:              "monthly",
		SubscriptionStartDate: "2024-03-01",
		SubscriptionEndDate:   "2024-04-01",
		RegistrationFee:       500,
		PackageFee:            2000,
		Taxes:                 []tax.Line{{Name: "GST", Rate: 18, Amount: 450}},
		Amount:                2950,
		AmountPaid:            2000,
		DueAmount:             950,
		ReceiptTag:            payment.TagNewMembership,
		VersionNumber:         2,
		Notes:                 "<script>alert(1)</script>",
	}

	msg, err := RenderReceiptEmail(r, "Iron Temple")
	if err != nil {
		t.Fatalf("RenderReceiptEmail() error: %v", err)
	}
	if msg.Subject != "Iron Temple receipt RCP-000042" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"<table>", "29.50", "9.50", "GST 18%", "replaces version 1", "New Membership"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q:\n%s", want, msg.HTML)
		}
	}
	if strings.Contains(msg.HTML, "<script>") || strings.Contains(msg.HTML, "<b>") {
		t.Errorf("raw HTML must not pass through:\n%s", msg.HTML)
	}
}

func TestRenderReceiptEmail_DefaultsGymName(t *testing.T) {
	msg, err := RenderReceiptEmail(receipt.Receipt{ReceiptNumber: "RCP-000001", VersionNumber: 1}, "")
	if err != nil {
		t.Fatalf("RenderReceiptEmail() error: %v", err)
	}
	if msg.Subject != "Gym receipt RCP-000001" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if strings.Contains(msg.Markdown, "replaces version") {
		t.Error("first version must not mention a replaced version")
	}
}

func TestStoredRequestedType(t *testing.T) {
	tests := []struct {
		typ  payment.TransactionType
		tag  payment.ReceiptTag
		want payment.TransactionType
	}{
		{payment.TypePartialPayment, payment.TagRenewal, payment.TypeRenewal},
		{payment.TypePartialPayment, payment.TagPayment, payment.TypePayment},
		{payment.TypePartialPayment, payment.TagNewMembership, payment.TypePayment},
		{payment.TypeAdjustment, payment.TagPayment, payment.TypeAdjustment},
		{payment.TypeRenewal, payment.TagRenewal, payment.TypeRenewal},
	}
	for _, tt := range tests {
		got := storedRequestedType(receipt.Receipt{TransactionType: tt.typ, ReceiptTag: tt.tag})
		if got != tt.want {
			t.Errorf("storedRequestedType(%s, %s) = %s, want %s", tt.typ, tt.tag, got, tt.want)
		}
	}
}

func TestPreviousVersion(t *testing.T) {
	history := []receipt.Receipt{
		{ID: "r1", VersionNumber: 1},
		{ID: "r2", VersionNumber: 2},
		{ID: "r3", VersionNumber: 3},
	}
	prev, ok := previousVersion(history, "r3")
	if !ok || prev.ID != "r2" {
		t.Errorf("previousVersion(r3) = %s, %v; want r2", prev.ID, ok)
	}
	if _, ok := previousVersion(history[:1], "r1"); ok {
		t.Error("single version chain has no previous version")
	}
}
