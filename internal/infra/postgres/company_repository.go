package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// CompanyRepository implements company.Repository using PostgreSQL.
type CompanyRepository struct {
	db *DB
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db *DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create persists a new company.
func (r *CompanyRepository) Create(ctx context.Context, c *company.Company) error {
	query := `
		INSERT INTO companies (id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID().String(),
		c.Name(),
		c.Slug(),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return company.NewCompanyExistsError(c.Slug())
		}
		return fmt.Errorf("failed to create company: %w", storeError(err))
	}

	return nil
}

// GetByID retrieves a company by ID.
func (r *CompanyRepository) GetByID(ctx context.Context, id shared.ID) (*company.Company, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM companies WHERE id = $1`
	return r.scanCompany(r.db.QueryRowContext(ctx, query, id.String()), id.String())
}

// GetBySlug retrieves a company by slug.
func (r *CompanyRepository) GetBySlug(ctx context.Context, slug string) (*company.Company, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM companies WHERE slug = $1`
	return r.scanCompany(r.db.QueryRowContext(ctx, query, slug), slug)
}

// Update persists changes to a company.
func (r *CompanyRepository) Update(ctx context.Context, c *company.Company) error {
	query := `UPDATE companies SET name = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, c.ID().String(), c.Name(), c.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to update company: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return company.NewCompanyNotFoundError(c.ID().String())
	}

	return nil
}

// Delete removes a company. Dependent findings, memberships, summaries
// and policies go with it via ON DELETE CASCADE.
func (r *CompanyRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return company.NewCompanyNotFoundError(id.String())
	}

	return nil
}

// List returns all companies ordered by name.
func (r *CompanyRepository) List(ctx context.Context) ([]*company.Company, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM companies ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", storeError(err))
	}
	defer rows.Close()

	var companies []*company.Company
	for rows.Next() {
		var (
			idStr, name, slug    string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&idStr, &name, &slug, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", storeError(err))
		}
		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid company ID: %w", err)
		}
		companies = append(companies, company.Reconstitute(id, name, slug, createdAt, updatedAt))
	}
	return companies, rows.Err()
}

func (r *CompanyRepository) scanCompany(row *sql.Row, key string) (*company.Company, error) {
	var (
		idStr, name, slug    string
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&idStr, &name, &slug, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, company.NewCompanyNotFoundError(key)
		}
		return nil, fmt.Errorf("failed to get company: %w", storeError(err))
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}
	return company.Reconstitute(id, name, slug, createdAt, updatedAt), nil
}
