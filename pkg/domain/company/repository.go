package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// Domain errors for companies.
var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrCompanyExists   = errors.New("company already exists")
)

// NewCompanyNotFoundError creates a company not found error.
func NewCompanyNotFoundError(key string) error {
	return fmt.Errorf("%w: %s", ErrCompanyNotFound, key)
}

// NewCompanyExistsError creates a company exists error.
func NewCompanyExistsError(slug string) error {
	return fmt.Errorf("%w: slug=%s", ErrCompanyExists, slug)
}

// Repository defines the company repository interface.
type Repository interface {
	// Create persists a new company.
	Create(ctx context.Context, c *Company) error

	// GetByID retrieves a company by ID.
	GetByID(ctx context.Context, id shared.ID) (*Company, error)

	// GetBySlug retrieves a company by slug.
	GetBySlug(ctx context.Context, slug string) (*Company, error)

	// Update persists changes to a company.
	Update(ctx context.Context, c *Company) error

	// Delete removes a company and all dependent records.
	Delete(ctx context.Context, id shared.ID) error

	// List returns all companies ordered by name.
	List(ctx context.Context) ([]*Company, error)
}
