package receipt_test

import (
	"testing"
	"time"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/receipt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReceipt() receipt.Receipt {
	return receipt.Receipt{
		ID:              "r1",
		ReceiptNumber:   "RCP-000001",
		Sequence:        1,
		MemberID:        "m1",
		PackageFee:      1500,
		Amount:          1500,
		AmountPaid:      1000,
		DueAmount:       500,
		TransactionType: payment.TypePartialPayment,
		ReceiptTag:      payment.TagRenewal,
		VersionNumber:   1,
	}
}

// TestReceiptValidation tests validation of Receipt.
func TestReceiptValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *receipt.Receipt)
		wantErr error
	}{
		{"valid", func(r *receipt.Receipt) {}, nil},
		{"missing member", func(r *receipt.Receipt) { r.MemberID = " " }, receipt.ErrEmptyMemberID},
		{"missing number", func(r *receipt.Receipt) { r.ReceiptNumber = "" }, receipt.ErrEmptyNumber},
		{"unnumbered draft", func(r *receipt.Receipt) { r.ReceiptNumber, r.Sequence = "", 0 }, nil},
		{"bad type", func(r *receipt.Receipt) { r.TransactionType = "refund" }, receipt.ErrInvalidType},
		{"version zero", func(r *receipt.Receipt) { r.VersionNumber = 0 }, receipt.ErrInvalidVersion},
		{"due mismatch", func(r *receipt.Receipt) { r.DueAmount = 0 }, receipt.ErrDueMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReceipt()
			tt.mutate(&r)
			assert.Equal(t, tt.wantErr, r.Validate())
		})
	}
}

// TestCreateOrVersion_New verifies a fresh receipt becomes version 1.
func TestCreateOrVersion_New(t *testing.T) {
	next := validReceipt()
	next.OriginalReceiptID = "stale"
	got := receipt.CreateOrVersion(nil, next, time.Now())

	assert.Equal(t, 1, got.VersionNumber)
	assert.True(t, got.IsCurrentVersion)
	assert.Empty(t, got.OriginalReceiptID)
	assert.Nil(t, got.SupersededAt)
}

// TestCreateOrVersion_AppendOnly verifies an edit leaves the original intact apart
// from its version flags.
func TestCreateOrVersion_AppendOnly(t *testing.T) {
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	existing := validReceipt()
	existing.IsCurrentVersion = true
	before := existing

	next := validReceipt()
	next.ID = "r2"
	next.ReceiptNumber = "ignored"
	next.Sequence = 99
	next.AmountPaid = 1500
	next.DueAmount = 0
	next.TransactionType = payment.TypeRenewal

	got := receipt.CreateOrVersion(&existing, next, now)

	require.False(t, existing.IsCurrentVersion)
	require.NotNil(t, existing.SupersededAt)
	assert.True(t, existing.SupersededAt.Equal(now))

	// Everything else on the original is untouched.
	existing.IsCurrentVersion = before.IsCurrentVersion
	existing.SupersededAt = before.SupersededAt
	assert.Equal(t, before, existing)

	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, "r1", got.OriginalReceiptID)
	assert.Equal(t, 2, got.VersionNumber)
	assert.True(t, got.IsCurrentVersion)
	assert.Equal(t, "RCP-000001", got.ReceiptNumber)
	assert.Equal(t, int64(1), got.Sequence)
	assert.Equal(t, int64(1500), got.AmountPaid)
}

// TestCreateOrVersion_KeepsChain verifies later versions point at the first receipt.
func TestCreateOrVersion_KeepsChain(t *testing.T) {
	v2 := validReceipt()
	v2.ID = "r2"
	v2.OriginalReceiptID = "r1"
	v2.VersionNumber = 2

	next := validReceipt()
	next.ID = "r3"
	got := receipt.CreateOrVersion(&v2, next, time.Now())

	assert.Equal(t, "r1", got.OriginalReceiptID)
	assert.Equal(t, 3, got.VersionNumber)
	assert.Equal(t, "r1", got.ChainID())
	assert.Equal(t, "r1", v2.ChainID())
}

// TestApplyReconciliation copies engine output onto the receipt.
func TestApplyReconciliation(t *testing.T) {
	rec, err := payment.Reconcile(payment.Input{
		Fees:       payment.Fees{RegistrationFee: 500, PackageFee: 2000},
		AmountPaid: 2000,
	})
	require.NoError(t, err)

	var r receipt.Receipt
	r.ApplyReconciliation(rec)
	assert.Equal(t, int64(2500), r.Amount)
	assert.Equal(t, int64(500), r.DueAmount)
	assert.Equal(t, payment.TypePartialPayment, r.TransactionType)
	assert.Equal(t, int64(500), r.RegistrationFee)
}

// TestFormatNumber pads to six digits.
func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "RCP-000042", receipt.FormatNumber(42))
	assert.Equal(t, "RCP-1234567", receipt.FormatNumber(1234567))
}
