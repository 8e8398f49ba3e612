package payment

import "gymdesk/internal/domain/tax"

// Draft is the live money state of a receipt form while it is being edited.
// Fee edits recompute the total; tax application and manual overrides supersede it.
type Draft struct {
	fees       Fees
	total      int64
	paid       int64
	paidEdited bool
	taxes      tax.Result
	requested  TransactionType
}

// NewDraft starts a draft with the given default transaction type.
func NewDraft(requested TransactionType) *Draft {
	return &Draft{requested: requested}
}

// SetFees replaces the fee components and recomputes the total.
// POST: Total = ComputeFeeTotal(fees), previously applied taxes are discarded
func (d *Draft) SetFees(f Fees) {
	d.fees = f
	d.total = f.Total()
	d.taxes = tax.Result{}
}

// ApplyTax applies rules to the current fee total and overwrites the total.
// AmountPaid follows the new total unless the user already entered a non-zero amount.
func (d *Draft) ApplyTax(rules []tax.Rule) tax.Result {
	d.taxes = tax.Apply(d.fees.Total(), rules)
	d.total = d.taxes.TotalAmount
	if !d.paidEdited || d.paid == 0 {
		d.paid = d.total
	}
	return d.taxes
}

// OverrideTotal sets the total manually.
// AmountPaid follows it under the same rule as ApplyTax.
func (d *Draft) OverrideTotal(total int64) {
	d.total = max(0, total)
	if !d.paidEdited || d.paid == 0 {
		d.paid = d.total
	}
}

// SetAmountPaid records an explicit user entry; later tax applications keep it.
func (d *Draft) SetAmountPaid(paid int64) {
	d.paid = max(0, paid)
	d.paidEdited = true
}

// SetRequested changes the requested transaction type.
func (d *Draft) SetRequested(t TransactionType) {
	d.requested = t
}

// Total returns the authoritative total.
func (d *Draft) Total() int64 { return d.total }

// AmountPaid returns the amount paid.
func (d *Draft) AmountPaid() int64 { return d.paid }

// Due returns the outstanding balance, always derived from total and paid.
func (d *Draft) Due() int64 { return ComputeDue(d.total, d.paid) }

// Classified returns the effective transaction type.
func (d *Draft) Classified() TransactionType {
	return ClassifyTransaction(d.requested, d.Due(), d.paid)
}
