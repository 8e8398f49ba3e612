package member

import (
	"errors"
	"strings"
	"time"

	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Business rule constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusArchived = "archived"

	SubscriptionActive = "active"
)

// Domain errors
var (
	ErrAlreadyArchived = errors.New("member is already archived")
	ErrNotArchived     = errors.New("member is not archived")
	ErrEmptyName       = errors.New("member name cannot be empty")
	ErrNameTooLong     = errors.New("member name cannot exceed 100 characters")
	ErrInvalidEmail    = errors.New("member email must be valid")
	ErrInvalidStatus   = errors.New("status must be 'active', 'inactive', or 'archived'")
	ErrNegativePaid    = errors.New("paid amount cannot be negative")
)

// Member holds state for the concept.
// MembershipFees mirrors PackageFee for older records that only carry the legacy field.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	PlanType              string `json:"plan_type"`
	SubscriptionStartDate string `json:"subscription_start_date"`
	SubscriptionEndDate   string `json:"subscription_end_date"`
	SubscriptionStatus    string `json:"subscription_status"`

	RegistrationFee int64 `json:"registration_fee"`
	PackageFee      int64 `json:"package_fee"`
	MembershipFees  int64 `json:"membership_fees"`
	Discount        int64 `json:"discount"`
	PaidAmount      int64 `json:"paid_amount"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Name must not be empty; Email, when present, must contain '@'
func (m *Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if len(m.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return ErrInvalidEmail
	}
	if m.Status != StatusActive && m.Status != StatusInactive && m.Status != StatusArchived {
		return ErrInvalidStatus
	}
	if m.PaidAmount < 0 {
		return ErrNegativePaid
	}
	return nil
}

// IsArchived returns true if the member is archived.
// INVARIANT: Status field is not mutated
func (m *Member) IsArchived() bool {
	return m.Status == StatusArchived
}

// Archive sets the member status to archived.
// PRE: Member is not already archived
// POST: Status is set to archived
func (m *Member) Archive() error {
	if m.Status == StatusArchived {
		return ErrAlreadyArchived
	}
	m.Status = StatusArchived
	return nil
}

// Restore sets the member status back to active.
// PRE: Member is currently archived
// POST: Status is set to active
func (m *Member) Restore() error {
	if m.Status != StatusArchived {
		return ErrNotArchived
	}
	m.Status = StatusActive
	return nil
}

// HasEndDate reports whether the member carries a parseable subscription end date.
func (m *Member) HasEndDate() bool {
	if strings.TrimSpace(m.SubscriptionEndDate) == "" {
		return false
	}
	_, err := plan.ParseDate(m.SubscriptionEndDate)
	return err == nil
}

// MembershipStatus classifies the subscription relative to today.
// INVARIANT: Member fields are not mutated
func (m *Member) MembershipStatus(today time.Time) plan.MembershipStatus {
	return plan.ClassifyMembershipDate(m.SubscriptionEndDate, today)
}

// EffectivePackageFee returns PackageFee, falling back to the legacy field.
func (m *Member) EffectivePackageFee() int64 {
	if m.PackageFee > 0 {
		return m.PackageFee
	}
	return m.MembershipFees
}

// Patch is the set of member fields written after a receipt.
// PaidDelta is added to the cumulative paid amount; it is zero when the total must stay unchanged.
type Patch struct {
	PlanType              string
	SubscriptionStartDate string
	SubscriptionEndDate   string
	SubscriptionStatus    string
	RegistrationFee       int64
	PackageFee            int64
	MembershipFees        int64
	Discount              int64
	PaidDelta             int64
}

// PatchInput carries the receipt values that drive member side effects.
type PatchInput struct {
	PlanType              string
	SubscriptionStartDate string
	SubscriptionEndDate   string
	Fees                  payment.Fees
	AmountPaid            int64
	TransactionType       payment.TransactionType
}

// PaidContribution is what a receipt adds to the cumulative paid amount.
// Only renewal and payment receipts count.
func PaidContribution(t payment.TransactionType, amountPaid int64) int64 {
	if t.CountsTowardPaid() {
		return amountPaid
	}
	return 0
}

// SideEffects computes the member patch for a receipt.
// PRE: in.TransactionType is the classified type
// POST: Applying the patch yields PaidAmount = m.PaidAmount + AmountPaid for renewal and
// payment receipts, and leaves it unchanged otherwise
func SideEffects(m Member, in PatchInput) Patch {
	p := Patch{
		PlanType:              in.PlanType,
		SubscriptionStartDate: in.SubscriptionStartDate,
		SubscriptionEndDate:   in.SubscriptionEndDate,
		SubscriptionStatus:    SubscriptionActive,
		RegistrationFee:       in.Fees.RegistrationFee,
		PackageFee:            in.Fees.PackageFee,
		MembershipFees:        in.Fees.PackageFee,
		Discount:              in.Fees.Discount,
	}
	if p.PlanType == "" {
		p.PlanType = m.PlanType
	}
	p.PaidDelta = PaidContribution(in.TransactionType, in.AmountPaid)
	return p
}

// Apply writes the patch onto the member.
// POST: PaidAmount never drops below zero; UpdatedAt is set to now
func (m *Member) Apply(p Patch, now time.Time) {
	m.PlanType = p.PlanType
	m.SubscriptionStartDate = p.SubscriptionStartDate
	m.SubscriptionEndDate = p.SubscriptionEndDate
	m.SubscriptionStatus = p.SubscriptionStatus
	m.RegistrationFee = p.RegistrationFee
	m.PackageFee = p.PackageFee
	m.MembershipFees = p.MembershipFees
	m.Discount = p.Discount
	m.PaidAmount = max(0, m.PaidAmount+p.PaidDelta)
	m.UpdatedAt = now
}
