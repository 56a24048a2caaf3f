package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// SummaryHandler serves the period summary endpoints.
type SummaryHandler struct {
	service *app.SummaryService
	logger  *logger.Logger
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(service *app.SummaryService, log *logger.Logger) *SummaryHandler {
	return &SummaryHandler{service: service, logger: log}
}

type summaryResponse struct {
	ID               string               `json:"id"`
	CompanyID        string               `json:"company_id"`
	PeriodLabel      string               `json:"period_label"`
	ObservationDate  time.Time            `json:"observation_date"`
	RiskHistogram    map[string]int       `json:"risk_histogram"`
	OSHistogram      map[string]int       `json:"os_histogram"`
	TopAssets        []summary.AssetCount `json:"top_assets"`
	NewCount         int                  `json:"new_count"`
	ResolvedCount    int                  `json:"resolved_count"`
	UnresolvedCount  int                  `json:"unresolved_count"`
	TotalCount       int                  `json:"total_count"`
	UniqueAssets     int                  `json:"unique_assets"`
	AssetGrowthPct   *float64             `json:"asset_growth_pct"`
	FindingGrowthPct *float64             `json:"finding_growth_pct"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func toSummaryResponse(s *summary.PeriodSummary) summaryResponse {
	return summaryResponse{
		ID:               s.ID.String(),
		CompanyID:        s.CompanyID.String(),
		PeriodLabel:      s.PeriodLabel,
		ObservationDate:  s.ObservationDate,
		RiskHistogram:    s.RiskHistogram,
		OSHistogram:      s.OSHistogram,
		TopAssets:        s.TopAssets,
		NewCount:         s.NewCount,
		ResolvedCount:    s.ResolvedCount,
		UnresolvedCount:  s.UnresolvedCount,
		TotalCount:       s.TotalCount,
		UniqueAssets:     s.UniqueAssets,
		AssetGrowthPct:   s.AssetGrowthPct,
		FindingGrowthPct: s.FindingGrowthPct,
		UpdatedAt:        s.UpdatedAt,
	}
}

// Get handles GET /api/v1/companies/{companyID}/summaries/{periodLabel}.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	periodLabel := chi.URLParam(r, "periodLabel")

	s, err := h.service.Get(r.Context(), companyID, periodLabel)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryResponse(s))
}

// List handles GET /api/v1/companies/{companyID}/summaries.
func (h *SummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	summaries, err := h.service.ListByCompany(r.Context(), companyID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummaryResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}

// Recalculate handles POST /api/v1/companies/{companyID}/summaries/recalculate.
// It rebuilds every known period of the company in chronological order.
func (h *SummaryHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	rebuilt, err := h.service.RecalculateCompany(r.Context(), companyID, "recalculate")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		PeriodsRebuilt int `json:"periods_rebuilt"`
	}{PeriodsRebuilt: rebuilt})
}
