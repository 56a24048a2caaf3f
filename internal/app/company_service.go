package app

import (
	"context"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// CompanyService manages the company registry.
type CompanyService struct {
	companies company.Repository
	logger    *logger.Logger
}

// NewCompanyService creates a company service.
func NewCompanyService(companies company.Repository, log *logger.Logger) *CompanyService {
	return &CompanyService{
		companies: companies,
		logger:    log.With("service", "company"),
	}
}

// Create registers a new company.
func (s *CompanyService) Create(ctx context.Context, name, slug string) (*company.Company, error) {
	c, err := company.NewCompany(name, slug)
	if err != nil {
		return nil, err
	}
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	s.logger.Info("company created", "company_id", c.ID(), "slug", c.Slug())
	return c, nil
}

// Get retrieves a company by ID.
func (s *CompanyService) Get(ctx context.Context, id shared.ID) (*company.Company, error) {
	return s.companies.GetByID(ctx, id)
}

// GetBySlug retrieves a company by slug.
func (s *CompanyService) GetBySlug(ctx context.Context, slug string) (*company.Company, error) {
	return s.companies.GetBySlug(ctx, slug)
}

// Rename changes a company's display name.
func (s *CompanyService) Rename(ctx context.Context, id shared.ID, name string) (*company.Company, error) {
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Rename(name); err != nil {
		return nil, err
	}
	if err := s.companies.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update company: %w", err)
	}
	return c, nil
}

// Delete removes a company and every dependent record.
func (s *CompanyService) Delete(ctx context.Context, id shared.ID) error {
	if err := s.companies.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("company deleted", "company_id", id)
	return nil
}

// List returns all companies ordered by name.
func (s *CompanyService) List(ctx context.Context) ([]*company.Company, error) {
	return s.companies.List(ctx)
}
