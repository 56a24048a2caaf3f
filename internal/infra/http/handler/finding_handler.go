package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// FindingHandler serves the read-side finding endpoints.
type FindingHandler struct {
	repo   finding.Repository
	logger *logger.Logger
}

// NewFindingHandler creates a new FindingHandler.
func NewFindingHandler(repo finding.Repository, log *logger.Logger) *FindingHandler {
	return &FindingHandler{repo: repo, logger: log}
}

type periodResponse struct {
	Label           string    `json:"label"`
	ObservationDate time.Time `json:"observation_date"`
}

type findingResponse struct {
	ID           string    `json:"id"`
	AssetAddress string    `json:"asset_address"`
	AssetOS      *string   `json:"asset_os,omitempty"`
	Port         *int      `json:"port,omitempty"`
	Protocol     *string   `json:"protocol,omitempty"`
	Title        string    `json:"title"`
	Identifiers  []string  `json:"identifiers"`
	RiskLevel    string    `json:"risk_level"`
	Score        *float64  `json:"score,omitempty"`
	Resolved     bool      `json:"resolved"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Fingerprint  string    `json:"fingerprint"`
}

// Periods handles GET /api/v1/companies/{companyID}/periods.
func (h *FindingHandler) Periods(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	periods, err := h.repo.Periods(r.Context(), companyID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, periodResponse{Label: p.Label, ObservationDate: p.ObservationDate})
	}
	respondJSON(w, http.StatusOK, out)
}

// ListInPeriod handles GET /api/v1/companies/{companyID}/periods/{periodLabel}/findings.
// ?resolved=true or ?resolved=false filters by membership state.
func (h *FindingHandler) ListInPeriod(w http.ResponseWriter, r *http.Request) {
	companyID, err := urlID(r, "companyID")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	periodLabel := chi.URLParam(r, "periodLabel")

	pfs, err := h.repo.FindingsInPeriod(r.Context(), companyID, periodLabel)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	filter := r.URL.Query().Get("resolved")
	out := make([]findingResponse, 0, len(pfs))
	for _, pf := range pfs {
		if filter == "true" && !pf.Membership.Resolved {
			continue
		}
		if filter == "false" && pf.Membership.Resolved {
			continue
		}
		f := pf.Finding
		out = append(out, findingResponse{
			ID:           f.ID().String(),
			AssetAddress: f.AssetAddress(),
			AssetOS:      f.AssetOS(),
			Port:         f.Port(),
			Protocol:     f.Protocol(),
			Title:        f.Title(),
			Identifiers:  f.Identifiers(),
			RiskLevel:    f.RiskLevel().String(),
			Score:        f.Score(),
			Resolved:     pf.Membership.Resolved,
			UploadedAt:   f.UploadedAt(),
			Fingerprint:  f.Fingerprint(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
