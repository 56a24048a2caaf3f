package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// ErrSummaryNotFound indicates no summary exists for the requested key.
var ErrSummaryNotFound = errors.New("period summary not found")

// NewSummaryNotFoundError creates a summary not found error.
func NewSummaryNotFoundError(companyID, periodLabel string) error {
	return fmt.Errorf("%w: company=%s period=%s", ErrSummaryNotFound, companyID, periodLabel)
}

// Repository defines the period summary repository interface.
type Repository interface {
	// Upsert replaces the summary for (company, period) wholesale.
	Upsert(ctx context.Context, s *PeriodSummary) error

	// Get retrieves a summary by company and period label.
	Get(ctx context.Context, companyID shared.ID, periodLabel string) (*PeriodSummary, error)

	// ListByCompany returns a company's summaries in ascending
	// observation date order.
	ListByCompany(ctx context.Context, companyID shared.ID) ([]*PeriodSummary, error)

	// Delete removes the summary for (company, period).
	Delete(ctx context.Context, companyID shared.ID, periodLabel string) error
}
