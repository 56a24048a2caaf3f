package handler

import (
	"net/http"
	"time"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
	"github.com/K4R7IK/vulnmanage/pkg/validator"
)

// CompanyHandler serves the company registry endpoints.
type CompanyHandler struct {
	service   *app.CompanyService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(service *app.CompanyService, v *validator.Validator, log *logger.Logger) *CompanyHandler {
	return &CompanyHandler{service: service, validator: v, logger: log}
}

type createCompanyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
	Slug string `json:"slug" validate:"required,slug"`
}

type renameCompanyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type companyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:        c.ID().String(),
		Name:      c.Name(),
		Slug:      c.Slug(),
		CreatedAt: c.CreatedAt(),
		UpdatedAt: c.UpdatedAt(),
	}
}

// Create handles POST /api/v1/companies.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	c, err := h.service.Create(r.Context(), req.Name, req.Slug)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCompanyResponse(c))
}

// Get handles GET /api/v1/companies/{companyID}.
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toCompanyResponse(c))
}

// List handles GET /api/v1/companies.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.List(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// Rename handles PATCH /api/v1/companies/{companyID}.
func (h *CompanyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req renameCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	c, err := h.service.Rename(r.Context(), id, req.Name)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toCompanyResponse(c))
}

// Delete handles DELETE /api/v1/companies/{companyID}.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
