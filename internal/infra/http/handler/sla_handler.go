package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/pkg/domain/sla"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
	"github.com/K4R7IK/vulnmanage/pkg/validator"
)

// SLAHandler serves the SLA policy endpoints.
type SLAHandler struct {
	service   *app.SLAService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewSLAHandler creates a new SLAHandler.
func NewSLAHandler(service *app.SLAService, v *validator.Validator, log *logger.Logger) *SLAHandler {
	return &SLAHandler{service: service, validator: v, logger: log}
}

type policyRequest struct {
	OSType       string `json:"os_type" validate:"required,min=1,max=100"`
	CriticalDays int    `json:"critical_days" validate:"required,min=1"`
	HighDays     int    `json:"high_days" validate:"required,min=1"`
	MediumDays   int    `json:"medium_days" validate:"required,min=1"`
	LowDays      int    `json:"low_days" validate:"required,min=1"`
}

type policyUpdateRequest struct {
	CriticalDays int `json:"critical_days" validate:"required,min=1"`
	HighDays     int `json:"high_days" validate:"required,min=1"`
	MediumDays   int `json:"medium_days" validate:"required,min=1"`
	LowDays      int `json:"low_days" validate:"required,min=1"`
}

type policyResponse struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	OSType       string    `json:"os_type"`
	CriticalDays int       `json:"critical_days"`
	HighDays     int       `json:"high_days"`
	MediumDays   int       `json:"medium_days"`
	LowDays      int       `json:"low_days"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toPolicyResponse(p *sla.Policy) policyResponse {
	return policyResponse{
		ID:           p.ID().String(),
		CompanyID:    p.CompanyID().String(),
		OSType:       p.OSType(),
		CriticalDays: p.CriticalDays(),
		HighDays:     p.HighDays(),
		MediumDays:   p.MediumDays(),
		LowDays:      p.LowDays(),
		CreatedAt:    p.CreatedAt(),
		UpdatedAt:    p.UpdatedAt(),
	}
}

// Create handles POST /api/v1/companies/{companyID}/sla-policies.
func (h *SLAHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	p, err := h.service.CreatePolicy(r.Context(), companyID, req.OSType,
		req.CriticalDays, req.HighDays, req.MediumDays, req.LowDays)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPolicyResponse(p))
}

// Update handles PUT /api/v1/sla-policies/{policyID}.
func (h *SLAHandler) Update(w http.ResponseWriter, r *http.Request) {
	policyID, err := urlID(r, "policyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req policyUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	p, err := h.service.UpdatePolicy(r.Context(), policyID,
		req.CriticalDays, req.HighDays, req.MediumDays, req.LowDays)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toPolicyResponse(p))
}

// Delete handles DELETE /api/v1/sla-policies/{policyID}.
func (h *SLAHandler) Delete(w http.ResponseWriter, r *http.Request) {
	policyID, err := urlID(r, "policyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeletePolicy(r.Context(), policyID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/companies/{companyID}/sla-policies.
func (h *SLAHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	policies, err := h.service.ListPolicies(r.Context(), companyID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// Overdue handles GET /api/v1/companies/{companyID}/periods/{periodLabel}/overdue.
func (h *SLAHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	periodLabel := chi.URLParam(r, "periodLabel")

	report, err := h.service.OverdueInPeriod(r.Context(), companyID, periodLabel)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
