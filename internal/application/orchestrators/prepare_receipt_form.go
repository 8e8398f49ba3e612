package orchestrators

import (
	"context"
	"errors"
	"strings"
	"time"

	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"
)

// PrepareReceiptFormInput selects a member into the receipt form.
type PrepareReceiptFormInput struct {
	MemberID string `validate:"required"`

	// PlanType overrides the member's current plan when set.
	PlanType string `validate:"max=100"`

	// TransactionType replaces the default type unless the membership forces a renewal.
	TransactionType payment.TransactionType `validate:"omitempty,oneof=payment partial_payment renewal adjustment"`
	// TaxIDs selects configured taxes, at most one inclusive and one exclusive.
	TaxIDs []string
	// AmountPaid is an explicit entry; nil lets it follow the total.
	AmountPaid *int64 `validate:"omitempty,min=0"`
	// TotalOverride replaces the computed total.
	TotalOverride *int64 `validate:"omitempty,min=0"`
}

// PrepareReceiptFormDeps holds dependencies for PrepareReceiptForm.
type PrepareReceiptFormDeps struct {
	MemberStore  MemberStore
	ReceiptStore ReceiptReader
	Catalog      CatalogReader
	Now          func() time.Time
}

// ReceiptForm is the initial state of a receipt form for one member.
type ReceiptForm struct {
	MemberID         string                `json:"member_id"`
	MemberName       string                `json:"member_name"`
	MembershipStatus plan.MembershipStatus `json:"membership_status"`

	TransactionType payment.TransactionType `json:"transaction_type"`
	TypeForced      bool                    `json:"type_forced"`

	PlanType              string `json:"plan_type"`
	SubscriptionStartDate string `json:"subscription_start_date"`
	SubscriptionEndDate   string `json:"subscription_end_date"`

	RegistrationFee int64  `json:"registration_fee"`
	PackageFee      int64  `json:"package_fee"`
	Discount        int64  `json:"discount"`
	PaymentMethod   string `json:"payment_method"`
	TotalAmount     int64  `json:"total_amount"`
	AmountPaid      int64  `json:"amount_paid"`
	DueAmount       int64  `json:"due_amount"`

	// ClassifiedType is the type the receipt would be stored as.
	ClassifiedType payment.TransactionType `json:"classified_type"`
	Tax            tax.Result              `json:"tax"`

	// OutstandingDue is the due amount on the member's latest receipt.
	OutstandingDue int64 `json:"outstanding_due"`
	IsFirstReceipt bool  `json:"is_first_receipt"`

	Packages plan.Catalog `json:"packages"`
	Taxes    []tax.Rule   `json:"taxes"`
}

// ExecutePrepareReceiptForm evaluates the membership state machine for a member.
// No end date or an expired one forces a renewal starting today. An active or expiring
// membership defaults to a payment over the current period. Fee defaults come from the
// matched catalog entry, falling back to the member's stored fees. Selected taxes and then
// a manual total replace the fee total; an explicit paid amount survives both.
// PRE: Member exists
// POST: Nothing is written
func ExecutePrepareReceiptForm(ctx context.Context, input PrepareReceiptFormInput, deps PrepareReceiptFormDeps) (ReceiptForm, error) {
	if err := validateInput(input); err != nil {
		return ReceiptForm{}, err
	}

	now := nowFunc(deps.Now)
	m, err := loadMember(ctx, deps.MemberStore, input.MemberID)
	if err != nil {
		return ReceiptForm{}, err
	}
	packages, err := deps.Catalog.ListPackages(ctx)
	if err != nil {
		return ReceiptForm{}, persistence("list packages", err)
	}
	taxes, err := deps.Catalog.ListTaxes(ctx, true)
	if err != nil {
		return ReceiptForm{}, persistence("list taxes", err)
	}

	status := m.MembershipStatus(now)
	requested, forced := payment.DefaultTransactionType(status, m.HasEndDate())

	form := ReceiptForm{
		MemberID:         m.ID,
		MemberName:       m.Name,
		MembershipStatus: status,
		TransactionType:  requested,
		TypeForced:       forced,
		PlanType:         firstNonEmpty(input.PlanType, m.PlanType, plan.Monthly),
		RegistrationFee:  m.RegistrationFee,
		PackageFee:       m.EffectivePackageFee(),
		Discount:         m.Discount,
		Packages:         packages,
		Taxes:            taxes,
	}

	if entry, ok := packages.Lookup(form.PlanType); ok {
		if entry.Price > 0 {
			form.PackageFee = entry.Price
		}
		form.RegistrationFee = entry.RegistrationFee
		form.Discount = entry.Discount
		form.PaymentMethod = entry.PaymentMethod
	}

	form.SubscriptionStartDate = plan.FormatDate(now)
	if start, err := plan.ParseDate(m.SubscriptionStartDate); err == nil && !forced {
		form.SubscriptionStartDate = plan.FormatDate(start)
	}
	period, err := plan.ResolvePeriod(form.PlanType, form.SubscriptionStartDate, packages)
	if err != nil {
		return ReceiptForm{}, err
	}
	form.SubscriptionEndDate = period.EndDate()

	draft := payment.NewDraft(requested)
	if input.TransactionType != "" && !forced {
		draft.SetRequested(input.TransactionType)
		form.TransactionType = input.TransactionType
	}
	draft.SetFees(payment.Fees{
		RegistrationFee: form.RegistrationFee,
		PackageFee:      form.PackageFee,
		Discount:        form.Discount,
	})
	if input.AmountPaid != nil {
		draft.SetAmountPaid(*input.AmountPaid)
	}
	form.Tax = draft.ApplyTax(tax.SelectByID(taxes, input.TaxIDs).Rules())
	if input.TotalOverride != nil {
		draft.OverrideTotal(*input.TotalOverride)
	}
	form.TotalAmount = draft.Total()
	form.AmountPaid = draft.AmountPaid()
	form.DueAmount = draft.Due()
	form.ClassifiedType = draft.Classified()

	latest, err := deps.ReceiptStore.LatestCurrent(ctx, m.ID)
	switch {
	case errors.Is(err, receiptStore.ErrNotFound):
		form.IsFirstReceipt = true
	case err != nil:
		return ReceiptForm{}, persistence("latest receipt", err)
	default:
		form.OutstandingDue = latest.DueAmount
	}
	return form, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
