package payment

import (
	"fmt"

	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"
)

// TransactionType classifies a receipt.
type TransactionType string

const (
	TypePayment        TransactionType = "payment"
	TypePartialPayment TransactionType = "partial_payment"
	TypeRenewal        TransactionType = "renewal"
	TypeAdjustment     TransactionType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypePayment, TypePartialPayment, TypeRenewal, TypeAdjustment:
		return true
	}
	return false
}

// CountsTowardPaid reports whether a receipt of this type accumulates into the
// member's cumulative paid amount.
func (t TransactionType) CountsTowardPaid() bool {
	return t == TypeRenewal || t == TypePayment
}

// ReceiptTag is the human-readable label printed on a receipt.
type ReceiptTag string

const (
	TagNewMembership ReceiptTag = "New Membership"
	TagRenewal       ReceiptTag = "Renewal"
	TagPayment       ReceiptTag = "Payment"
)

// ValidationError reports an input that blocks submission before any write.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Fees are the fee components entered on a receipt.
type Fees struct {
	RegistrationFee int64 `json:"registration_fee"`
	PackageFee      int64 `json:"package_fee"`
	Discount        int64 `json:"discount"`
}

// Validate checks fee components.
// PRE: none
// POST: PackageFee > 0, other components >= 0
func (f Fees) Validate() error {
	if f.RegistrationFee < 0 {
		return Invalid("registration_fee", "must not be negative")
	}
	if f.PackageFee <= 0 {
		return Invalid("package_fee", "must be greater than zero")
	}
	if f.Discount < 0 {
		return Invalid("discount", "must not be negative")
	}
	return nil
}

// Total returns the fee total.
func (f Fees) Total() int64 {
	return ComputeFeeTotal(f.RegistrationFee, f.PackageFee, f.Discount)
}

// ComputeFeeTotal returns max(0, reg + pkg - discount).
func ComputeFeeTotal(reg, pkg, discount int64) int64 {
	return max(0, reg+pkg-discount)
}

// ComputeDue returns max(0, total - paid).
func ComputeDue(total, paid int64) int64 {
	return max(0, total-paid)
}

// ClassifyTransaction promotes any outstanding, partly paid receipt to partial_payment.
// The promotion applies to every requested type, renewal and adjustment included.
func ClassifyTransaction(requested TransactionType, due, paid int64) TransactionType {
	if due > 0 && paid > 0 {
		return TypePartialPayment
	}
	return requested
}

// TagReceipt derives the receipt label.
func TagReceipt(t TransactionType, isFirstReceipt bool) ReceiptTag {
	if t == TypeRenewal {
		return TagRenewal
	}
	if isFirstReceipt {
		return TagNewMembership
	}
	return TagPayment
}

// DefaultTransactionType runs the membership state machine for a member selected into the form.
// forced is true when the type must be renewal and the start date resets to today.
func DefaultTransactionType(status plan.MembershipStatus, hasEndDate bool) (t TransactionType, forced bool) {
	if !hasEndDate || status == plan.StatusExpired {
		return TypeRenewal, true
	}
	return TypePayment, false
}

// Input is everything the engine needs to reconcile one receipt.
type Input struct {
	Fees           Fees
	Taxes          []tax.Rule
	TotalOverride  *int64
	AmountPaid     int64
	Requested      TransactionType
	IsFirstReceipt bool
}

// Reconciliation is the computed money state of a receipt.
type Reconciliation struct {
	Fees            Fees            `json:"fees"`
	FeeTotal        int64           `json:"fee_total"`
	Tax             tax.Result      `json:"tax"`
	TotalAmount     int64           `json:"total_amount"`
	AmountPaid      int64           `json:"amount_paid"`
	DueAmount       int64           `json:"due_amount"`
	Requested       TransactionType `json:"requested_type"`
	TransactionType TransactionType `json:"transaction_type"`
	Tag             ReceiptTag      `json:"receipt_tag"`
}

// Reconcile computes total, due, classification and tag.
// The tag is derived from the requested type so an explicit renewal keeps its label
// after promotion to partial_payment.
// PRE: none
// POST: Returns *ValidationError on invalid fees or payment amounts
func Reconcile(in Input) (Reconciliation, error) {
	if err := in.Fees.Validate(); err != nil {
		return Reconciliation{}, err
	}
	requested := in.Requested
	if requested == "" {
		requested = TypePayment
	}
	if !requested.Valid() {
		return Reconciliation{}, Invalid("transaction_type", fmt.Sprintf("unknown type %q", requested))
	}
	if in.AmountPaid < 0 {
		return Reconciliation{}, Invalid("amount_paid", "must not be negative")
	}

	feeTotal := in.Fees.Total()
	taxed := tax.Apply(feeTotal, in.Taxes)
	total := taxed.TotalAmount
	if in.TotalOverride != nil {
		if *in.TotalOverride < 0 {
			return Reconciliation{}, Invalid("total_amount", "must not be negative")
		}
		total = *in.TotalOverride
	}
	if in.AmountPaid > total {
		return Reconciliation{}, Invalid("amount_paid", "cannot exceed total amount")
	}

	due := ComputeDue(total, in.AmountPaid)
	return Reconciliation{
		Fees:            in.Fees,
		FeeTotal:        feeTotal,
		Tax:             taxed,
		TotalAmount:     total,
		AmountPaid:      in.AmountPaid,
		DueAmount:       due,
		Requested:       requested,
		TransactionType: ClassifyTransaction(requested, due, in.AmountPaid),
		Tag:             TagReceipt(requested, in.IsFirstReceipt),
	}, nil
}
