package sla

import (
	"context"
	"errors"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Domain errors for SLA policies.
var (
	ErrPolicyNotFound = errors.New("sla policy not found")
	ErrPolicyExists   = errors.New("sla policy already exists")
)

// NewPolicyExistsError creates a policy exists error.
func NewPolicyExistsError(osType string) error {
	return fmt.Errorf("%w: os_type=%s", ErrPolicyExists, osType)
}

// Repository defines the SLA policy repository interface.
type Repository interface {
	// Create persists a new policy.
	Create(ctx context.Context, p *Policy) error

	// GetByID retrieves a policy by ID.
	GetByID(ctx context.Context, id shared.ID) (*Policy, error)

	// GetForOS retrieves the policy for (company, OS type), falling back
	// to the company's "*" policy. Returns ErrPolicyNotFound when the
	// company has neither; callers then apply DefaultDays.
	GetForOS(ctx context.Context, companyID shared.ID, osType string) (*Policy, error)

	// Update persists changes to a policy.
	Update(ctx context.Context, p *Policy) error

	// Delete removes a policy.
	Delete(ctx context.Context, id shared.ID) error

	// ListByCompany returns all policies for a company.
	ListByCompany(ctx context.Context, companyID shared.ID) ([]*Policy, error)
}
