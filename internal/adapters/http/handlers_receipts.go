package web

import (
	"net/http"

	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/event"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/receipt"
)

// receiptRequest is the JSON form of a receipt. Money is in minor units.
// total_amount, when present, overrides the computed fee total plus exclusive tax.
type receiptRequest struct {
	MemberID              string   `json:"member_id"`
	PlanType              string   `json:"plan_type"`
	SubscriptionStartDate string   `json:"subscription_start_date"`
	RegistrationFee       int64    `json:"registration_fee"`
	PackageFee            int64    `json:"package_fee"`
	Discount              int64    `json:"discount"`
	TaxIDs                []string `json:"tax_ids"`
	TotalAmount           *int64   `json:"total_amount"`
	AmountPaid            int64    `json:"amount_paid"`
	TransactionType       string   `json:"transaction_type"`
	PaymentMethod         string   `json:"payment_method"`
	Notes                 string   `json:"notes"`
	CreatedBy             string   `json:"created_by"`
	SendEmail             bool     `json:"send_email"`
}

func (req receiptRequest) fields() orchestrators.ReceiptFields {
	return orchestrators.ReceiptFields{
		PlanType:              req.PlanType,
		SubscriptionStartDate: req.SubscriptionStartDate,
		RegistrationFee:       req.RegistrationFee,
		PackageFee:            req.PackageFee,
		Discount:              req.Discount,
		TaxIDs:                req.TaxIDs,
		TotalOverride:         req.TotalAmount,
		AmountPaid:            req.AmountPaid,
		TransactionType:       payment.TransactionType(req.TransactionType),
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
		CreatedBy:             req.CreatedBy,
	}
}

type receiptResponse struct {
	Receipt        receipt.Receipt        `json:"receipt"`
	Reconciliation payment.Reconciliation `json:"reconciliation"`
	Events         []event.Kind           `json:"events"`
	Warnings       []string               `json:"warnings,omitempty"`
}

func newReceiptResponse(res orchestrators.ReceiptResult) receiptResponse {
	return receiptResponse{
		Receipt:        res.Receipt,
		Reconciliation: res.Reconciliation,
		Events:         res.Changes.Kinds(),
		Warnings:       res.Warnings,
	}
}

type deleteResponse struct {
	Deleted    receipt.Receipt  `json:"deleted"`
	Reinstated *receipt.Receipt `json:"reinstated,omitempty"`
	PaidDelta  int64            `json:"paid_delta"`
	Events     []event.Kind     `json:"events"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// handleSubmitReceipt records a payment for an existing member.
func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	result, err := orchestrators.ExecuteSubmitReceipt(r.Context(), orchestrators.SubmitReceiptInput{
		MemberID:      req.MemberID,
		ReceiptFields: req.fields(),
		SendEmail:     req.SendEmail,
	}, orchestrators.SubmitReceiptDeps{
		MemberStore:  s.stores.MemberStore,
		ReceiptStore: s.stores.ReceiptStore,
		Catalog:      s.stores.CatalogStore,
		Ledger:       s.stores.Ledger,
		Locks:        s.locks,
		Notify:       s.notifyDeps(),
		Now:          s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReceiptResponse(result))
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.stores.ReceiptStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleEditReceipt appends a new version of the receipt named in the path.
// The body's member_id and send_email are ignored: the member is carried over from the receipt.
func (s *Server) handleEditReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	result, err := orchestrators.ExecuteEditReceipt(r.Context(), orchestrators.EditReceiptInput{
		ReceiptID:     r.PathValue("id"),
		ReceiptFields: req.fields(),
	}, orchestrators.EditReceiptDeps{
		MemberStore:  s.stores.MemberStore,
		ReceiptStore: s.stores.ReceiptStore,
		Catalog:      s.stores.CatalogStore,
		Ledger:       s.stores.Ledger,
		Locks:        s.locks,
		Notify:       s.notifyDeps(),
		Now:          s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptResponse(result))
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	result, err := orchestrators.ExecuteDeleteReceipt(r.Context(),
		orchestrators.DeleteReceiptInput{ReceiptID: r.PathValue("id")},
		orchestrators.DeleteReceiptDeps{
			ReceiptStore: s.stores.ReceiptStore,
			Ledger:       s.stores.Ledger,
			Locks:        s.locks,
			Notify:       s.notifyDeps(),
			Now:          s.opts.Now,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Deleted:    result.Deleted,
		Reinstated: result.Reinstated,
		PaidDelta:  result.PaidDelta,
		Events:     result.Changes.Kinds(),
		Warnings:   result.Warnings,
	})
}

func (s *Server) handleReceiptHistory(w http.ResponseWriter, r *http.Request) {
	history, err := projections.QueryReceiptHistory(r.Context(),
		projections.GetReceiptHistoryQuery{ReceiptID: r.PathValue("id")},
		projections.GetReceiptHistoryDeps{ReceiptStore: s.stores.ReceiptStore},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleDuesDashboard summarizes outstanding dues; ?limit= caps the listed members.
func (s *Server) handleDuesDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := projections.QueryDuesDashboard(r.Context(),
		projections.GetDuesDashboardQuery{Limit: intQuery(r, "limit", 0, 1000)},
		projections.GetDuesDashboardDeps{MemberStore: s.stores.MemberStore, ReceiptStore: s.stores.ReceiptStore, Now: s.opts.Now},
	)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
