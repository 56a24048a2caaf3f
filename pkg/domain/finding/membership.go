package finding

import (
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// PeriodMembership records the resolved/unresolved status of one Finding
// within one observation period. At most one membership exists per
// (finding, period label) pair.
type PeriodMembership struct {
	ID              shared.ID
	FindingID       shared.ID
	CompanyID       shared.ID
	PeriodLabel     string
	Resolved        bool
	ObservationDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewMembership creates a membership for the given period. observationDate
// is the upload's declared date and drives all cross-period chronology;
// the label itself is an opaque display key.
func NewMembership(f *Finding, periodLabel string, observationDate time.Time, resolved bool) *PeriodMembership {
	now := time.Now().UTC()
	return &PeriodMembership{
		ID:              shared.NewID(),
		FindingID:       f.ID(),
		CompanyID:       f.CompanyID(),
		PeriodLabel:     periodLabel,
		Resolved:        resolved,
		ObservationDate: observationDate.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MarkResolved flips the membership to resolved.
func (m *PeriodMembership) MarkResolved() {
	m.Resolved = true
	m.UpdatedAt = time.Now().UTC()
}

// MarkUnresolved flips the membership back to unresolved. Used when a
// previously resolved finding reappears in a re-run of the same period.
func (m *PeriodMembership) MarkUnresolved() {
	m.Resolved = false
	m.UpdatedAt = time.Now().UTC()
}

// PeriodRef identifies one observation period of a company.
type PeriodRef struct {
	Label           string
	ObservationDate time.Time
}
