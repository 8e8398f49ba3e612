package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/tax"
)

// Domain errors
var (
	ErrEmptyMemberID     = errors.New("receipt member ID cannot be empty")
	ErrEmptyNumber       = errors.New("receipt number cannot be empty")
	ErrInvalidType       = errors.New("receipt transaction type is invalid")
	ErrInvalidVersion    = errors.New("receipt version must be at least 1")
	ErrNotCurrentVersion = errors.New("only the current version of a receipt can be edited")
	ErrDueMismatch       = errors.New("receipt due amount does not match total and paid amounts")
)

// NumberPrefix starts every receipt number.
const NumberPrefix = "RCP-"

// FormatNumber renders a receipt sequence as a receipt number.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", NumberPrefix, seq)
}

// Receipt is one immutable snapshot of a payment record.
// Edits append a new version linked through OriginalReceiptID.
type Receipt struct {
	ID            string `json:"id"`
	ReceiptNumber string `json:"receipt_number"`
	Sequence      int64  `json:"sequence"`
	MemberID      string `json:"member_id"`
	MemberName    string `json:"member_name"`

	PlanType              string `json:"plan_type"`
	SubscriptionStartDate string `json:"subscription_start_date"`
	SubscriptionEndDate   string `json:"subscription_end_date"`

	RegistrationFee int64      `json:"registration_fee"`
	PackageFee      int64      `json:"package_fee"`
	Discount        int64      `json:"discount"`
	BaseAmount      int64      `json:"base_amount"`
	TaxAmount       int64      `json:"tax_amount"`
	Taxes           []tax.Line `json:"taxes"`
	Amount          int64      `json:"amount"`
	AmountPaid      int64      `json:"amount_paid"`
	DueAmount       int64      `json:"due_amount"`
	PaymentMethod   string     `json:"payment_method"`
	Notes           string     `json:"notes"`

	TransactionType payment.TransactionType `json:"transaction_type"`
	ReceiptTag      payment.ReceiptTag      `json:"receipt_tag"`

	OriginalReceiptID string     `json:"original_receipt_id,omitempty"`
	VersionNumber     int        `json:"version_number"`
	IsCurrentVersion  bool       `json:"is_current_version"`
	SupersededAt      *time.Time `json:"superseded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// Validate checks if the Receipt has valid data.
// PRE: Receipt struct is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: DueAmount = max(0, Amount - AmountPaid)
func (r *Receipt) Validate() error {
	if strings.TrimSpace(r.MemberID) == "" {
		return ErrEmptyMemberID
	}
	if r.Sequence > 0 && strings.TrimSpace(r.ReceiptNumber) == "" {
		return ErrEmptyNumber
	}
	if !r.TransactionType.Valid() {
		return ErrInvalidType
	}
	if r.VersionNumber < 1 {
		return ErrInvalidVersion
	}
	if r.DueAmount != payment.ComputeDue(r.Amount, r.AmountPaid) {
		return ErrDueMismatch
	}
	return nil
}

// ChainID identifies the version chain this receipt belongs to.
func (r *Receipt) ChainID() string {
	if r.OriginalReceiptID != "" {
		return r.OriginalReceiptID
	}
	return r.ID
}

// ApplyReconciliation copies the computed money state onto the receipt.
func (r *Receipt) ApplyReconciliation(rec payment.Reconciliation) {
	r.RegistrationFee = rec.Fees.RegistrationFee
	r.PackageFee = rec.Fees.PackageFee
	r.Discount = rec.Fees.Discount
	r.BaseAmount = rec.Tax.BaseAmount
	r.TaxAmount = rec.Tax.TaxAmount
	r.Taxes = rec.Tax.Breakdown
	r.Amount = rec.TotalAmount
	r.AmountPaid = rec.AmountPaid
	r.DueAmount = rec.DueAmount
	r.TransactionType = rec.TransactionType
	r.ReceiptTag = rec.Tag
}

// CreateOrVersion produces the record to write for next.
// With no existing receipt, next becomes version 1. Otherwise next supersedes existing:
// it inherits the chain, receipt number, sequence and member, and existing is only marked
// superseded at now. Nothing else on existing changes.
// PRE: existing, if non-nil, is the current version
// POST: Returned receipt is the current version
func CreateOrVersion(existing *Receipt, next Receipt, now time.Time) Receipt {
	next.IsCurrentVersion = true
	next.SupersededAt = nil
	if existing == nil {
		next.OriginalReceiptID = ""
		next.VersionNumber = 1
		return next
	}
	next.OriginalReceiptID = existing.ChainID()
	next.VersionNumber = existing.VersionNumber + 1
	next.ReceiptNumber = existing.ReceiptNumber
	next.Sequence = existing.Sequence
	next.MemberID = existing.MemberID

	at := now
	existing.IsCurrentVersion = false
	existing.SupersededAt = &at
	return next
}
