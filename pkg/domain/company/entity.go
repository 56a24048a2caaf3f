// Package company defines the company entity that owns findings,
// summaries and SLA policies.
package company

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// slugRegex validates slugs: lowercase alphanumerics separated by hyphens.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Company is a tenant whose vulnerability findings are tracked.
type Company struct {
	id        shared.ID
	name      string
	slug      string
	createdAt time.Time
	updatedAt time.Time
}

// NewCompany creates a new Company.
func NewCompany(name, slug string) (*Company, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugRegex.MatchString(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", shared.ErrValidation, slug)
	}

	now := time.Now().UTC()
	return &Company{
		id:        shared.NewID(),
		name:      name,
		slug:      slug,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Company from persistence.
func Reconstitute(id shared.ID, name, slug string, createdAt, updatedAt time.Time) *Company {
	return &Company{
		id:        id,
		name:      name,
		slug:      slug,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Rename changes the display name.
func (c *Company) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	c.name = name
	c.updatedAt = time.Now().UTC()
	return nil
}

// ID returns the company ID.
func (c *Company) ID() shared.ID { return c.id }

// Name returns the display name.
func (c *Company) Name() string { return c.name }

// Slug returns the URL-safe identifier.
func (c *Company) Slug() string { return c.slug }

// CreatedAt returns the creation timestamp.
func (c *Company) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last update timestamp.
func (c *Company) UpdatedAt() time.Time { return c.updatedAt }
