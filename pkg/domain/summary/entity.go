// Package summary defines the per-period aggregate statistics derived
// from reconciled finding state.
package summary

import (
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// AssetCount is one entry of the top-affected-assets list.
type AssetCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// PeriodSummary holds the aggregate statistics for one (company, period).
// It is a pure derived view: always recomputed wholesale from finding and
// membership state, never patched incrementally, and safe to discard and
// rebuild at any time.
type PeriodSummary struct {
	ID              shared.ID
	CompanyID       shared.ID
	PeriodLabel     string
	ObservationDate time.Time

	RiskHistogram map[string]int
	OSHistogram   map[string]int
	TopAssets     []AssetCount

	NewCount        int
	ResolvedCount   int
	UnresolvedCount int
	TotalCount      int
	UniqueAssets    int

	// Period-over-period growth rates against the chronologically
	// preceding period. Nil when no prior period exists or the prior
	// value is zero.
	AssetGrowthPct   *float64
	FindingGrowthPct *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty summary shell for the given company and period.
func New(companyID shared.ID, periodLabel string, observationDate time.Time) *PeriodSummary {
	now := time.Now().UTC()
	return &PeriodSummary{
		ID:              shared.NewID(),
		CompanyID:       companyID,
		PeriodLabel:     periodLabel,
		ObservationDate: observationDate.UTC(),
		RiskHistogram:   make(map[string]int),
		OSHistogram:     make(map[string]int),
		TopAssets:       []AssetCount{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
