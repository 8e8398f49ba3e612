package web

import (
	"net/http"

	"gymdesk/internal/application/listutil"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/payment"
)

// registerRequest is a new member together with the first receipt.
type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	receiptRequest
}

type registerResponse struct {
	Member  member.Member   `json:"member"`
	Receipt receiptResponse `json:"receipt"`
}

type archiveRequest struct {
	Force bool `json:"force"`
}

type changesResponse struct {
	MemberID string   `json:"member_id"`
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

// handleListMembers returns a page of members with membership status.
// Query: search, sort (name|plan|end|paid|status), dir, page, per_page, status, plan, membership.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	lp := listutil.ParseListParams(r.URL.Query(), projections.MemberListSchema)
	result, err := projections.QueryGetMemberList(r.Context(),
		projections.GetMemberListQuery{ListParams: lp},
		projections.GetMemberListDeps{MemberStore: s.stores.MemberStore, Now: s.opts.Now},
	)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRegisterMember creates a member and records the first receipt.
func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	result, err := orchestrators.ExecuteRegisterMember(r.Context(), orchestrators.RegisterMemberInput{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		ReceiptFields: req.fields(),
		SendEmail:     req.SendEmail,
	}, orchestrators.RegisterMemberDeps{
		Catalog: s.stores.CatalogStore,
		Ledger:  s.stores.Ledger,
		Notify:  s.notifyDeps(),
		Now:     s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Member:  result.Member,
		Receipt: newReceiptResponse(result.Receipt),
	})
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.stores.MemberStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleReceiptForm returns the receipt form state for a member.
// ?plan_type= re-evaluates the form as if that plan were selected; transaction_type,
// repeated tax_id, amount_paid and total replay the user's edits.
func (s *Server) handleReceiptForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paid, err := moneyQuery(r, "amount_paid")
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := moneyQuery(r, "total")
	if err != nil {
		writeError(w, err)
		return
	}
	form, err := orchestrators.ExecutePrepareReceiptForm(r.Context(), orchestrators.PrepareReceiptFormInput{
		MemberID:        r.PathValue("id"),
		PlanType:        q.Get("plan_type"),
		TransactionType: payment.TransactionType(q.Get("transaction_type")),
		TaxIDs:          q["tax_id"],
		AmountPaid:      paid,
		TotalOverride:   total,
	}, orchestrators.PrepareReceiptFormDeps{
		MemberStore:  s.stores.MemberStore,
		ReceiptStore: s.stores.ReceiptStore,
		Catalog:      s.stores.CatalogStore,
		Now:          s.opts.Now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// handleMemberReceipts lists a member's receipts; ?include_superseded=true adds old versions.
func (s *Server) handleMemberReceipts(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryMemberReceipts(r.Context(), projections.GetMemberReceiptsQuery{
		MemberID:          r.PathValue("id"),
		IncludeSuperseded: r.URL.Query().Get("include_superseded") == "true",
		Page:              listutil.ParsePageParams(r.URL.Query()),
	}, projections.GetMemberReceiptsDeps{ReceiptStore: s.stores.ReceiptStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMemberDue(w http.ResponseWriter, r *http.Request) {
	due, err := projections.QueryMemberDue(r.Context(),
		projections.GetMemberDueQuery{MemberID: r.PathValue("id")},
		projections.GetMemberDueDeps{MemberStore: s.stores.MemberStore, ReceiptStore: s.stores.ReceiptStore, Now: s.opts.Now},
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// handleArchiveMember archives a member; {"force":true} archives despite an outstanding due.
func (s *Server) handleArchiveMember(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := optionalDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	id := r.PathValue("id")
	warnings, err := orchestrators.ExecuteArchiveMember(r.Context(),
		orchestrators.ArchiveMemberInput{MemberID: id, Force: req.Force},
		orchestrators.ArchiveMemberDeps{
			MemberStore:  s.stores.MemberStore,
			ReceiptStore: s.stores.ReceiptStore,
			Locks:        s.locks,
			Notify:       s.notifyDeps(),
			Now:          s.opts.Now,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changesResponse{MemberID: id, Status: member.StatusArchived, Warnings: warnings})
}

func (s *Server) handleRestoreMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	warnings, err := orchestrators.ExecuteRestoreMember(r.Context(),
		orchestrators.RestoreMemberInput{MemberID: id},
		orchestrators.RestoreMemberDeps{
			MemberStore: s.stores.MemberStore,
			Locks:       s.locks,
			Notify:      s.notifyDeps(),
			Now:         s.opts.Now,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changesResponse{MemberID: id, Status: member.StatusActive, Warnings: warnings})
}
