package projections

import (
	"context"
	"time"

	"gymdesk/internal/adapters/storage/member"
	"gymdesk/internal/application/listutil"
	domainMember "gymdesk/internal/domain/member"
	"gymdesk/internal/domain/plan"
)

// MemberListSchema lists the sort keys and filters accepted by the member list.
var MemberListSchema = listutil.Schema{
	SortColumns: []string{"name", "plan", "end", "paid", "status"},
	Filters: []listutil.Filter{
		{Key: "status", Values: []string{domainMember.StatusActive, domainMember.StatusInactive, domainMember.StatusArchived}},
		{Key: "plan"},
		{Key: "membership", Values: []string{string(plan.StatusActive), string(plan.StatusExpiringSoon), string(plan.StatusExpired)}},
	},
}

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	listutil.ListParams
}

// MemberRow is one line of the member list.
type MemberRow struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Email               string                `json:"email"`
	Phone               string                `json:"phone"`
	PlanType            string                `json:"plan_type"`
	SubscriptionEndDate string                `json:"subscription_end_date"`
	MembershipStatus    plan.MembershipStatus `json:"membership_status"`
	PaidAmount          int64                 `json:"paid_amount"`
	Status              string                `json:"status"`
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Members []MemberRow       `json:"members"`
	Page    listutil.PageInfo `json:"page"`
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	MemberStore MemberStore
	Now         func() time.Time
}

// QueryGetMemberList retrieves a page of members with their membership status.
// The "membership" filter keeps only members in that state (active, expiring_soon, expired);
// it narrows the current page, so such pages can be short.
// PRE: Valid query parameters
// POST: Page info reflects the store-level filters
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	filter := member.ListFilter{
		Status:   query.Filters["status"],
		PlanType: query.Filters["plan"],
		Search:   query.Search,
		Sort:     query.Sort,
		Dir:      query.Dir,
	}
	total, err := deps.MemberStore.Count(ctx, filter)
	if err != nil {
		return GetMemberListResult{}, err
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	members, err := deps.MemberStore.List(ctx, filter)
	if err != nil {
		return GetMemberListResult{}, err
	}

	now := today(deps.Now)
	want := plan.MembershipStatus(query.Filters["membership"])
	rows := make([]MemberRow, 0, len(members))
	for _, m := range members {
		status := m.MembershipStatus(now)
		if want != "" && status != want {
			continue
		}
		rows = append(rows, MemberRow{
			ID:                  m.ID,
			Name:                m.Name,
			Email:               m.Email,
			Phone:               m.Phone,
			PlanType:            m.PlanType,
			SubscriptionEndDate: m.SubscriptionEndDate,
			MembershipStatus:    status,
			PaidAmount:          m.PaidAmount,
			Status:              m.Status,
		})
	}
	return GetMemberListResult{Members: rows, Page: page}, nil
}
