package projections

import (
	"context"
	"fmt"

	"gymdesk/internal/adapters/storage/receipt"
	"gymdesk/internal/application/listutil"
	domainReceipt "gymdesk/internal/domain/receipt"
)

// GetReceiptHistoryQuery carries query parameters.
// ReceiptID may name any version of the chain.
type GetReceiptHistoryQuery struct {
	ReceiptID string
}

// ReceiptHistory is every version of one receipt, oldest first.
type ReceiptHistory struct {
	ChainID       string                  `json:"original_receipt_id"`
	ReceiptNumber string                  `json:"receipt_number"`
	Versions      []domainReceipt.Receipt `json:"versions"`
	Current       *domainReceipt.Receipt  `json:"current,omitempty"`
}

// GetReceiptHistoryDeps holds dependencies for GetReceiptHistory.
type GetReceiptHistoryDeps struct {
	ReceiptStore ReceiptStore
}

// QueryReceiptHistory retrieves the version history of a receipt.
// PRE: ReceiptID is non-empty
// POST: Versions are ordered by version number; Current is the single current version, if any
func QueryReceiptHistory(ctx context.Context, query GetReceiptHistoryQuery, deps GetReceiptHistoryDeps) (ReceiptHistory, error) {
	r, err := deps.ReceiptStore.GetByID(ctx, query.ReceiptID)
	if err != nil {
		return ReceiptHistory{}, err
	}
	chainID := r.ChainID()
	versions, err := deps.ReceiptStore.ListHistory(ctx, chainID)
	if err != nil {
		return ReceiptHistory{}, fmt.Errorf("list receipt history: %w", err)
	}

	h := ReceiptHistory{ChainID: chainID, ReceiptNumber: r.ReceiptNumber, Versions: versions}
	for i := range versions {
		if versions[i].IsCurrentVersion {
			h.Current = &versions[i]
		}
	}
	return h, nil
}

// GetMemberReceiptsQuery carries query parameters.
type GetMemberReceiptsQuery struct {
	MemberID          string
	IncludeSuperseded bool
	Page              listutil.PageParams
}

// GetMemberReceiptsResult carries the query result.
type GetMemberReceiptsResult struct {
	Receipts []domainReceipt.Receipt `json:"receipts"`
	Page     int                     `json:"page"`
	PerPage  int                     `json:"per_page"`
}

// GetMemberReceiptsDeps holds dependencies for GetMemberReceipts.
type GetMemberReceiptsDeps struct {
	ReceiptStore ReceiptStore
}

// QueryMemberReceipts lists a member's receipts, newest first.
// PRE: MemberID is non-empty
// POST: Only current versions unless IncludeSuperseded is set
func QueryMemberReceipts(ctx context.Context, query GetMemberReceiptsQuery, deps GetMemberReceiptsDeps) (GetMemberReceiptsResult, error) {
	page := query.Page
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = listutil.DefaultPerPage
	}
	receipts, err := deps.ReceiptStore.ListByMemberID(ctx, query.MemberID, receipt.ListFilter{
		Limit:             page.PerPage,
		Offset:            (page.Page - 1) * page.PerPage,
		IncludeSuperseded: query.IncludeSuperseded,
	})
	if err != nil {
		return GetMemberReceiptsResult{}, err
	}
	if receipts == nil {
		receipts = []domainReceipt.Receipt{}
	}
	return GetMemberReceiptsResult{Receipts: receipts, Page: page.Page, PerPage: page.PerPage}, nil
}
