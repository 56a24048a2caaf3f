package finding

import (
	"context"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// PeriodFinding pairs a Finding with its membership in one period.
type PeriodFinding struct {
	Finding    *Finding
	Membership *PeriodMembership
}

// Repository is the record store gateway for findings and their period
// memberships. Callers must bound every fingerprint or ID set they pass
// to a lookup; implementations are free to reject oversized sets.
type Repository interface {
	// InTransaction runs fn against a transactional view of the store.
	// All writes made through the repository passed to fn commit or roll
	// back atomically.
	InTransaction(ctx context.Context, fn func(Repository) error) error

	// Create persists a new finding.
	Create(ctx context.Context, f *Finding) error

	// GetByID retrieves a finding by ID.
	GetByID(ctx context.Context, id shared.ID) (*Finding, error)

	// FindByFingerprints retrieves existing findings for a bounded set of
	// fingerprints belonging to one company.
	FindByFingerprints(ctx context.Context, companyID shared.ID, fingerprints []string) ([]*Finding, error)

	// CreateMembership persists a new period membership.
	CreateMembership(ctx context.Context, m *PeriodMembership) error

	// UpdateMembership persists membership state changes (resolved flag).
	UpdateMembership(ctx context.Context, m *PeriodMembership) error

	// MembershipsForPeriod returns existing memberships for the given
	// findings in one period, keyed by finding ID string.
	MembershipsForPeriod(ctx context.Context, companyID shared.ID, periodLabel string, findingIDs []shared.ID) (map[string]*PeriodMembership, error)

	// OpenFingerprintsInPeriod returns the fingerprints of findings with an
	// unresolved membership in the given period, mapped to finding IDs.
	OpenFingerprintsInPeriod(ctx context.Context, companyID shared.ID, periodLabel string) (map[string]shared.ID, error)

	// FindingsInPeriod returns every finding with a membership in the
	// given period, together with that membership.
	FindingsInPeriod(ctx context.Context, companyID shared.ID, periodLabel string) ([]*PeriodFinding, error)

	// Periods lists a company's known periods in ascending observation
	// date order.
	Periods(ctx context.Context, companyID shared.ID) ([]PeriodRef, error)

	// LatestPeriodBefore returns the period with the greatest observation
	// date strictly before the given date, or nil if none exists.
	LatestPeriodBefore(ctx context.Context, companyID shared.ID, before time.Time) (*PeriodRef, error)
}

// ImportLocker serializes imports for the same company and period.
// Concurrent imports for different keys proceed independently.
type ImportLocker interface {
	WithImportLock(ctx context.Context, companyID shared.ID, periodLabel string, fn func(context.Context) error) error
}
