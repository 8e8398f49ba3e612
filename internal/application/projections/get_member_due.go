package projections

import (
	"context"
	"fmt"
	"time"

	domainMember "gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
)

// GetMemberDueQuery carries query parameters.
type GetMemberDueQuery struct {
	MemberID string
}

// MemberDue is a member's standing: membership status and what is still owed.
type MemberDue struct {
	MemberID            string                `json:"member_id"`
	MemberName          string                `json:"member_name"`
	PlanType            string                `json:"plan_type"`
	SubscriptionEndDate string                `json:"subscription_end_date"`
	MembershipStatus    plan.MembershipStatus `json:"membership_status"`
	DaysRemaining       int                   `json:"days_remaining"`
	PaidAmount          int64                 `json:"paid_amount"`

	// DueAmount is the due of the latest current receipt, zero when there is none.
	DueAmount            int64  `json:"due_amount"`
	LatestReceiptID      string `json:"latest_receipt_id,omitempty"`
	LatestReceiptNumber  string `json:"latest_receipt_number,omitempty"`
	LatestReceiptCreated string `json:"latest_receipt_created,omitempty"`
}

// GetMemberDueDeps holds dependencies for GetMemberDue.
type GetMemberDueDeps struct {
	MemberStore  MemberStore
	ReceiptStore ReceiptStore
	Now          func() time.Time
}

// QueryMemberDue reports a member's due amount and membership status.
// PRE: MemberID is non-empty
// POST: DaysRemaining is negative for an expired subscription and zero without an end date
func QueryMemberDue(ctx context.Context, query GetMemberDueQuery, deps GetMemberDueDeps) (MemberDue, error) {
	m, err := deps.MemberStore.GetByID(ctx, query.MemberID)
	if err != nil {
		return MemberDue{}, err
	}
	latest, ok, err := latestCurrent(ctx, deps.ReceiptStore, m.ID)
	if err != nil {
		return MemberDue{}, fmt.Errorf("latest receipt: %w", err)
	}

	due := memberStanding(m, today(deps.Now))
	if ok {
		due.DueAmount = latest.DueAmount
		due.LatestReceiptID = latest.ID
		due.LatestReceiptNumber = latest.ReceiptNumber
		due.LatestReceiptCreated = latest.CreatedAt.Format(time.RFC3339)
	}
	return due, nil
}

func memberStanding(m domainMember.Member, now time.Time) MemberDue {
	return MemberDue{
		MemberID:            m.ID,
		MemberName:          m.Name,
		PlanType:            m.PlanType,
		SubscriptionEndDate: m.SubscriptionEndDate,
		MembershipStatus:    m.MembershipStatus(now),
		DaysRemaining:       daysRemaining(m.SubscriptionEndDate, now),
		PaidAmount:          m.PaidAmount,
	}
}

func daysRemaining(endDate string, now time.Time) int {
	end, err := plan.ParseDate(endDate)
	if err != nil {
		return 0
	}
	return int(end.Sub(plan.DateOf(now)).Hours() / 24)
}
