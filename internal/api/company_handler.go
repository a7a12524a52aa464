package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/phrazzld/jobsearch-api/internal/api/shared"
	"github.com/phrazzld/jobsearch-api/internal/service"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// CompanyHandler handles company-related HTTP requests, including the
// shorthand routes that enqueue research and reply tasks for a company.
type CompanyHandler struct {
	companyService service.CompanyService
	tasks          *TaskHandler
}

// NewCompanyHandler creates a new CompanyHandler
func NewCompanyHandler(companyService service.CompanyService, taskService service.TaskService) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
		tasks:          NewTaskHandler(taskService),
	}
}

// ListCompanies handles GET /api/companies requests
func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyService.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CompanyListResponse{Companies: companies})
}

// GetCompany handles GET /api/companies/{name} requests
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.companyService.Get(r.Context(), getPathName(r, "name"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, company)
}

// UpsertCompany handles PUT /api/companies/{name} requests. The body is
// merged into the stored record.
func (h *CompanyHandler) UpsertCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	company, err := h.companyService.Upsert(r.Context(), req.toCompany(getPathName(r, "name")))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, company)
}

// ResearchCompany handles POST /api/companies/{name}/research requests
func (h *CompanyHandler) ResearchCompany(w http.ResponseWriter, r *http.Request) {
	h.tasks.enqueue(w, r, task.TypeResearch, getPathName(r, "name"), nil)
}

// ReplyToCompany handles POST /api/companies/{name}/reply requests. The body
// is optional. The company must already exist; the task would otherwise fail
// immediately.
func (h *CompanyHandler) ReplyToCompany(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	name := getPathName(r, "name")
	if _, err := h.companyService.Get(r.Context(), name); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var params json.RawMessage
	if req.Context != "" {
		encoded, err := json.Marshal(task.ReplyParams{Context: req.Context})
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		params = encoded
	}
	h.tasks.enqueue(w, r, task.TypeGenerateMessage, name, params)
}
