package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/sla"
)

// SLAPolicyRepository implements sla.Repository using PostgreSQL.
type SLAPolicyRepository struct {
	db *DB
}

// NewSLAPolicyRepository creates a new SLAPolicyRepository.
func NewSLAPolicyRepository(db *DB) *SLAPolicyRepository {
	return &SLAPolicyRepository{db: db}
}

const policyColumns = `
	id, company_id, os_type, critical_days, high_days, medium_days, low_days,
	created_at, updated_at
`

// Create persists a new SLA policy.
func (r *SLAPolicyRepository) Create(ctx context.Context, p *sla.Policy) error {
	query := `
		INSERT INTO sla_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.CompanyID().String(),
		p.OSType(),
		p.CriticalDays(),
		p.HighDays(),
		p.MediumDays(),
		p.LowDays(),
		p.CreatedAt(),
		p.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sla.NewPolicyExistsError(p.OSType())
		}
		return fmt.Errorf("failed to create SLA policy: %w", storeError(err))
	}

	return nil
}

// GetByID retrieves a policy by ID.
func (r *SLAPolicyRepository) GetByID(ctx context.Context, id shared.ID) (*sla.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE id = $1`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", sla.ErrPolicyNotFound, id.String())
		}
		return nil, fmt.Errorf("failed to get SLA policy: %w", storeError(err))
	}
	return p, nil
}

// GetForOS retrieves the policy for (company, OS type), falling back to
// the company's "*" policy.
func (r *SLAPolicyRepository) GetForOS(ctx context.Context, companyID shared.ID, osType string) (*sla.Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM sla_policies
		WHERE company_id = $1 AND os_type IN ($2, '*')
		ORDER BY (os_type = '*')
		LIMIT 1
	`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, query, companyID.String(), osType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: company=%s os_type=%s", sla.ErrPolicyNotFound, companyID.String(), osType)
		}
		return nil, fmt.Errorf("failed to get SLA policy: %w", storeError(err))
	}
	return p, nil
}

// Update persists changes to a policy.
func (r *SLAPolicyRepository) Update(ctx context.Context, p *sla.Policy) error {
	query := `
		UPDATE sla_policies
		SET critical_days = $2, high_days = $3, medium_days = $4, low_days = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID().String(),
		p.CriticalDays(),
		p.HighDays(),
		p.MediumDays(),
		p.LowDays(),
		p.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update SLA policy: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sla.ErrPolicyNotFound, p.ID().String())
	}

	return nil
}

// Delete removes a policy.
func (r *SLAPolicyRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sla_policies WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete SLA policy: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sla.ErrPolicyNotFound, id.String())
	}

	return nil
}

// ListByCompany returns all policies for a company.
func (r *SLAPolicyRepository) ListByCompany(ctx context.Context, companyID shared.ID) ([]*sla.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE company_id = $1 ORDER BY os_type`

	rows, err := r.db.QueryContext(ctx, query, companyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list SLA policies: %w", storeError(err))
	}
	defer rows.Close()

	var policies []*sla.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan SLA policy: %w", storeError(err))
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(s scanner) (*sla.Policy, error) {
	var (
		idStr, companyIDStr, osType string
		critical, high, medium, low int
		createdAt, updatedAt        time.Time
	)

	err := s.Scan(
		&idStr, &companyIDStr, &osType, &critical, &high, &medium, &low,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid policy ID: %w", err)
	}
	companyID, err := shared.IDFromString(companyIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}

	return sla.Reconstitute(id, companyID, osType, critical, high, medium, low, createdAt, updatedAt), nil
}
