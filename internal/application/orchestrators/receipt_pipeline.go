package orchestrators

import (
	"context"
	"errors"
	"strings"
	"time"

	memberStore "gymdesk/internal/adapters/storage/member"
	receiptStore "gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/receipt"
	"gymdesk/internal/domain/tax"
)

// ReceiptFields are the user-entered values of a receipt form.
// Money is in minor units.
type ReceiptFields struct {
	PlanType              string                  `validate:"required,max=100"`
	SubscriptionStartDate string
	RegistrationFee       int64                   `validate:"gte=0"`
	PackageFee            int64                   `validate:"gte=0"`
	Discount              int64                   `validate:"gte=0"`
	TaxIDs                []string                `validate:"max=2"`
	TotalOverride         *int64                  `validate:"omitempty,gte=0"`
	AmountPaid            int64                   `validate:"gte=0"`
	TransactionType       payment.TransactionType `validate:"omitempty,oneof=payment partial_payment renewal adjustment"`
	PaymentMethod         string                  `validate:"max=50"`
	Notes                 string                  `validate:"max=1000"`
	CreatedBy             string
}

func (f ReceiptFields) fees() payment.Fees {
	return payment.Fees{
		RegistrationFee: f.RegistrationFee,
		PackageFee:      f.PackageFee,
		Discount:        f.Discount,
	}
}

// computedReceipt is a reconciled receipt ready for the ledger.
type computedReceipt struct {
	Receipt        receipt.Receipt
	Reconciliation payment.Reconciliation
	Period         plan.Period
}

// computeReceipt resolves the plan period and reconciles the money fields for m.
// PRE: f passed validateInput
// POST: Returns *plan.InvalidDateError or *payment.ValidationError before any write
func computeReceipt(ctx context.Context, f ReceiptFields, m member.Member, requested payment.TransactionType, isFirst bool, catalog CatalogReader, now time.Time) (computedReceipt, error) {
	packages, err := catalog.ListPackages(ctx)
	if err != nil {
		return computedReceipt{}, persistence("list packages", err)
	}
	rules, err := catalog.ListTaxes(ctx, true)
	if err != nil {
		return computedReceipt{}, persistence("list taxes", err)
	}

	start := strings.TrimSpace(f.SubscriptionStartDate)
	if start == "" {
		start = plan.FormatDate(now)
	}
	period, err := plan.ResolvePeriod(f.PlanType, start, packages)
	if err != nil {
		return computedReceipt{}, err
	}

	rec, err := payment.Reconcile(payment.Input{
		Fees:           f.fees(),
		Taxes:          selectedTaxes(rules, f.TaxIDs),
		TotalOverride:  f.TotalOverride,
		AmountPaid:     f.AmountPaid,
		Requested:      requested,
		IsFirstReceipt: isFirst,
	})
	if err != nil {
		return computedReceipt{}, err
	}

	r := receipt.Receipt{
		MemberID:              m.ID,
		MemberName:            m.Name,
		PlanType:              f.PlanType,
		SubscriptionStartDate: period.StartDate(),
		SubscriptionEndDate:   period.EndDate(),
		PaymentMethod:         f.PaymentMethod,
		Notes:                 f.Notes,
		CreatedAt:             now,
		CreatedBy:             f.CreatedBy,
	}
	r.ApplyReconciliation(rec)
	return computedReceipt{Receipt: r, Reconciliation: rec, Period: period}, nil
}

func selectedTaxes(active []tax.Rule, ids []string) []tax.Rule {
	if len(ids) == 0 {
		return nil
	}
	return tax.SelectByID(active, ids).Rules()
}

// patchFor builds the member patch written with a receipt.
func patchFor(m member.Member, c computedReceipt) member.Patch {
	return member.SideEffects(m, member.PatchInput{
		PlanType:              c.Receipt.PlanType,
		SubscriptionStartDate: c.Receipt.SubscriptionStartDate,
		SubscriptionEndDate:   c.Receipt.SubscriptionEndDate,
		Fees:                  c.Reconciliation.Fees,
		AmountPaid:            c.Reconciliation.AmountPaid,
		TransactionType:       c.Reconciliation.TransactionType,
	})
}

// requestedType picks the transaction type to reconcile with.
// A member without a live subscription is forced onto a renewal starting today;
// otherwise an explicit choice wins over the payment default.
func requestedType(explicit payment.TransactionType, m member.Member, today time.Time) (t payment.TransactionType, forced bool) {
	t, forced = payment.DefaultTransactionType(m.MembershipStatus(today), m.HasEndDate())
	if forced || explicit == "" {
		return t, forced
	}
	return explicit, false
}

// storedRequestedType recovers the type a stored receipt was requested with.
// A partial_payment receipt was promoted, so its tag tells renewals apart from payments.
func storedRequestedType(r receipt.Receipt) payment.TransactionType {
	if r.TransactionType != payment.TypePartialPayment {
		return r.TransactionType
	}
	if r.ReceiptTag == payment.TagRenewal {
		return payment.TypeRenewal
	}
	return payment.TypePayment
}

// loadMember maps store failures: a missing member is returned as is, anything else is a PersistenceError.
func loadMember(ctx context.Context, store MemberStore, id string) (member.Member, error) {
	m, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberStore.ErrNotFound) {
			return member.Member{}, err
		}
		return member.Member{}, persistence("get member", err)
	}
	return m, nil
}

func loadReceipt(ctx context.Context, store ReceiptReader, id string) (receipt.Receipt, error) {
	r, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, receiptStore.ErrNotFound) {
			return receipt.Receipt{}, err
		}
		return receipt.Receipt{}, persistence("get receipt", err)
	}
	return r, nil
}

// IsNotFound reports whether err means the requested member or receipt does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, memberStore.ErrNotFound) || errors.Is(err, receiptStore.ErrNotFound)
}
