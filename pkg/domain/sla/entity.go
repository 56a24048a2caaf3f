// Package sla defines remediation deadline policies per company, asset
// OS type and risk level.
package sla

import (
	"fmt"
	"strings"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// DefaultDays contains the default remediation days per risk level,
// applied when a company has no override for an OS type.
var DefaultDays = map[finding.RiskLevel]int{
	finding.RiskCritical: 7,
	finding.RiskHigh:     30,
	finding.RiskMedium:   60,
	finding.RiskLow:      90,
}

// Policy is a per (company, OS type) remediation deadline override.
// OS type "*" applies to assets with no more specific policy.
type Policy struct {
	id           shared.ID
	companyID    shared.ID
	osType       string
	criticalDays int
	highDays     int
	mediumDays   int
	lowDays      int
	createdAt    time.Time
	updatedAt    time.Time
}

// NewPolicy creates a policy seeded with the default days.
func NewPolicy(companyID shared.ID, osType string) (*Policy, error) {
	if companyID.IsZero() {
		return nil, fmt.Errorf("%w: company ID is required", shared.ErrValidation)
	}
	osType = strings.TrimSpace(osType)
	if osType == "" {
		return nil, fmt.Errorf("%w: os type is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Policy{
		id:           shared.NewID(),
		companyID:    companyID,
		osType:       osType,
		criticalDays: DefaultDays[finding.RiskCritical],
		highDays:     DefaultDays[finding.RiskHigh],
		mediumDays:   DefaultDays[finding.RiskMedium],
		lowDays:      DefaultDays[finding.RiskLow],
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute recreates a Policy from persistence.
func Reconstitute(
	id shared.ID,
	companyID shared.ID,
	osType string,
	criticalDays, highDays, mediumDays, lowDays int,
	createdAt, updatedAt time.Time,
) *Policy {
	return &Policy{
		id:           id,
		companyID:    companyID,
		osType:       osType,
		criticalDays: criticalDays,
		highDays:     highDays,
		mediumDays:   mediumDays,
		lowDays:      lowDays,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// SetDays updates the per-risk remediation days. Deadlines must not get
// looser as severity rises.
func (p *Policy) SetDays(critical, high, medium, low int) error {
	for _, d := range []int{critical, high, medium, low} {
		if d < 1 {
			return fmt.Errorf("%w: remediation days must be positive", shared.ErrValidation)
		}
	}
	if critical > high || high > medium || medium > low {
		return fmt.Errorf("%w: days must satisfy critical <= high <= medium <= low", shared.ErrValidation)
	}
	p.criticalDays = critical
	p.highDays = high
	p.mediumDays = medium
	p.lowDays = low
	p.updatedAt = time.Now().UTC()
	return nil
}

// DaysFor returns the remediation deadline in days for a risk level.
// Untracked levels return 0.
func (p *Policy) DaysFor(risk finding.RiskLevel) int {
	switch risk {
	case finding.RiskCritical:
		return p.criticalDays
	case finding.RiskHigh:
		return p.highDays
	case finding.RiskMedium:
		return p.mediumDays
	case finding.RiskLow:
		return p.lowDays
	default:
		return 0
	}
}

// DefaultDaysFor returns the built-in deadline for a risk level.
func DefaultDaysFor(risk finding.RiskLevel) int {
	return DefaultDays[risk]
}

// ID returns the policy ID.
func (p *Policy) ID() shared.ID { return p.id }

// CompanyID returns the owning company ID.
func (p *Policy) CompanyID() shared.ID { return p.companyID }

// OSType returns the asset OS type the policy applies to.
func (p *Policy) OSType() string { return p.osType }

// CriticalDays returns the deadline for critical findings.
func (p *Policy) CriticalDays() int { return p.criticalDays }

// HighDays returns the deadline for high findings.
func (p *Policy) HighDays() int { return p.highDays }

// MediumDays returns the deadline for medium findings.
func (p *Policy) MediumDays() int { return p.mediumDays }

// LowDays returns the deadline for low findings.
func (p *Policy) LowDays() int { return p.lowDays }

// CreatedAt returns the creation timestamp.
func (p *Policy) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last update timestamp.
func (p *Policy) UpdatedAt() time.Time { return p.updatedAt }
