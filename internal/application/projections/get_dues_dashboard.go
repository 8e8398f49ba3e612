package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gymdesk/internal/adapters/storage/member"
	domainMember "gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
)

// memberPageSize is how many members one store call loads while building the dashboard.
const memberPageSize = 500

// GetDuesDashboardQuery carries query parameters.
type GetDuesDashboardQuery struct {
	// Limit caps the dues and expiring lists; zero means no cap.
	Limit int
}

// DueRow is one member with money outstanding.
type DueRow struct {
	MemberDue
}

// DuesDashboard summarizes outstanding dues and membership states.
type DuesDashboard struct {
	TotalDue     int64                         `json:"total_due"`
	MembersOwing int                           `json:"members_owing"`
	StatusCounts map[plan.MembershipStatus]int `json:"status_counts"`
	Dues         []DueRow                      `json:"dues"`
	ExpiringSoon []MemberDue                   `json:"expiring_soon"`
}

// GetDuesDashboardDeps holds dependencies for GetDuesDashboard.
type GetDuesDashboardDeps struct {
	MemberStore  MemberStore
	ReceiptStore ReceiptStore
	Now          func() time.Time
}

// QueryDuesDashboard builds the dues dashboard over all non-archived members.
// PRE: none
// POST: Dues are ordered by amount descending; ExpiringSoon by end date ascending
// INVARIANT: A member's due is the due of its latest current receipt
func QueryDuesDashboard(ctx context.Context, query GetDuesDashboardQuery, deps GetDuesDashboardDeps) (DuesDashboard, error) {
	now := today(deps.Now)

	latest, err := deps.ReceiptStore.ListLatestCurrent(ctx)
	if err != nil {
		return DuesDashboard{}, fmt.Errorf("list latest receipts: %w", err)
	}
	dueByMember := make(map[string]int64, len(latest))
	receiptByMember := make(map[string]string, len(latest))
	for _, r := range latest {
		dueByMember[r.MemberID] = r.DueAmount
		receiptByMember[r.MemberID] = r.ReceiptNumber
	}

	d := DuesDashboard{
		StatusCounts: map[plan.MembershipStatus]int{
			plan.StatusActive:       0,
			plan.StatusExpiringSoon: 0,
			plan.StatusExpired:      0,
		},
		Dues:         []DueRow{},
		ExpiringSoon: []MemberDue{},
	}
	for offset := 0; ; offset += memberPageSize {
		members, err := deps.MemberStore.List(ctx, member.ListFilter{Limit: memberPageSize, Offset: offset})
		if err != nil {
			return DuesDashboard{}, fmt.Errorf("list members: %w", err)
		}
		for _, m := range members {
			if m.Status == domainMember.StatusArchived {
				continue
			}
			row := memberStanding(m, now)
			d.StatusCounts[row.MembershipStatus]++
			if row.MembershipStatus == plan.StatusExpiringSoon {
				d.ExpiringSoon = append(d.ExpiringSoon, row)
			}
			if due := dueByMember[m.ID]; due > 0 {
				row.DueAmount = due
				row.LatestReceiptNumber = receiptByMember[m.ID]
				d.Dues = append(d.Dues, DueRow{MemberDue: row})
				d.TotalDue += due
			}
		}
		if len(members) < memberPageSize {
			break
		}
	}
	d.MembersOwing = len(d.Dues)

	sort.SliceStable(d.Dues, func(i, j int) bool {
		if d.Dues[i].DueAmount != d.Dues[j].DueAmount {
			return d.Dues[i].DueAmount > d.Dues[j].DueAmount
		}
		return d.Dues[i].MemberName < d.Dues[j].MemberName
	})
	sort.SliceStable(d.ExpiringSoon, func(i, j int) bool {
		return d.ExpiringSoon[i].SubscriptionEndDate < d.ExpiringSoon[j].SubscriptionEndDate
	})
	if query.Limit > 0 {
		d.Dues = d.Dues[:min(query.Limit, len(d.Dues))]
		d.ExpiringSoon = d.ExpiringSoon[:min(query.Limit, len(d.ExpiringSoon))]
	}
	return d, nil
}
