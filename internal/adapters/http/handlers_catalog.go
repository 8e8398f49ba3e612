package web

import (
	"net/http"

	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/tax"
)

type planRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationType    string `json:"duration_type"`
	DurationMonths  int    `json:"duration_months"`
	Price           int64  `json:"price"`
	RegistrationFee int64  `json:"registration_fee"`
	Discount        int64  `json:"discount"`
	PaymentMethod   string `json:"payment_method"`
}

type taxRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	Inclusive bool    `json:"inclusive"`
	Active    bool    `json:"active"`
}

func (s *Server) catalogDeps() orchestrators.SaveCatalogDeps {
	return orchestrators.SaveCatalogDeps{CatalogStore: s.stores.CatalogStore}
}

// handleListPlans returns the master packages in lookup order.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	packages, err := s.stores.CatalogStore.ListPackages(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	if packages == nil {
		packages = plan.Catalog{}
	}
	writeJSON(w, http.StatusOK, packages)
}

func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := orchestrators.ExecuteSavePackage(r.Context(), orchestrators.SavePackageInput(req), s.catalogDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	input := orchestrators.DeleteCatalogInput{ID: r.PathValue("id")}
	if err := orchestrators.ExecuteDeletePackage(r.Context(), input, s.catalogDeps()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListTaxes returns tax settings; ?active=true limits to selectable ones.
func (s *Server) handleListTaxes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	taxes, err := s.stores.CatalogStore.ListTaxes(r.Context(), activeOnly)
	if err != nil {
		internalError(w, err)
		return
	}
	if taxes == nil {
		taxes = []tax.Rule{}
	}
	writeJSON(w, http.StatusOK, taxes)
}

func (s *Server) handleSaveTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := strictDecode(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	rule, err := orchestrators.ExecuteSaveTax(r.Context(), orchestrators.SaveTaxInput(req), s.catalogDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteTax(w http.ResponseWriter, r *http.Request) {
	input := orchestrators.DeleteCatalogInput{ID: r.PathValue("id")}
	if err := orchestrators.ExecuteDeleteTax(r.Context(), input, s.catalogDeps()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
