package finding

import (
	"fmt"
	"strings"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// RiskLevel represents the scanner-assigned risk tier of a finding.
type RiskLevel string

// Risk levels ordered from lowest to highest.
const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRanks maps each level to its position in the severity ordering.
var riskRanks = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel parses a scanner risk label, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown risk level %q", shared.ErrValidation, s)
	}
	return r, nil
}

// IsValid reports whether the risk level is one of the known tiers.
func (r RiskLevel) IsValid() bool {
	_, ok := riskRanks[r]
	return ok
}

// Rank returns the ordinal severity rank (none=0 .. critical=4).
func (r RiskLevel) Rank() int {
	return riskRanks[r]
}

// String returns the lowercase label.
func (r RiskLevel) String() string {
	return string(r)
}

// Tracked reports whether findings at this level are retained.
// Informational ("none") rows are dropped at ingestion.
func (r RiskLevel) Tracked() bool {
	return r != RiskNone
}

// AllRiskLevels lists the tiers in ascending severity order.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical}
}
