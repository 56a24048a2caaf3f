package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
)

// SummaryRepository implements summary.Repository using PostgreSQL.
// Histograms and the top-asset list are stored as JSONB.
type SummaryRepository struct {
	db *DB
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert replaces the summary for (company, period) wholesale.
func (r *SummaryRepository) Upsert(ctx context.Context, s *summary.PeriodSummary) error {
	riskHistogram, err := toJSONB(s.RiskHistogram)
	if err != nil {
		return fmt.Errorf("failed to marshal risk histogram: %w", err)
	}
	osHistogram, err := toJSONB(s.OSHistogram)
	if err != nil {
		return fmt.Errorf("failed to marshal OS histogram: %w", err)
	}
	topAssets, err := toJSONB(s.TopAssets)
	if err != nil {
		return fmt.Errorf("failed to marshal top assets: %w", err)
	}

	query := `
		INSERT INTO period_summaries (
			id, company_id, period_label, observation_date,
			risk_histogram, os_histogram, top_assets,
			new_count, resolved_count, unresolved_count, total_count,
			unique_assets, asset_growth_pct, finding_growth_pct,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (company_id, period_label) DO UPDATE SET
			observation_date = EXCLUDED.observation_date,
			risk_histogram = EXCLUDED.risk_histogram,
			os_histogram = EXCLUDED.os_histogram,
			top_assets = EXCLUDED.top_assets,
			new_count = EXCLUDED.new_count,
			resolved_count = EXCLUDED.resolved_count,
			unresolved_count = EXCLUDED.unresolved_count,
			total_count = EXCLUDED.total_count,
			unique_assets = EXCLUDED.unique_assets,
			asset_growth_pct = EXCLUDED.asset_growth_pct,
			finding_growth_pct = EXCLUDED.finding_growth_pct,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		s.ID.String(),
		s.CompanyID.String(),
		s.PeriodLabel,
		s.ObservationDate,
		riskHistogram,
		osHistogram,
		topAssets,
		s.NewCount,
		s.ResolvedCount,
		s.UnresolvedCount,
		s.TotalCount,
		s.UniqueAssets,
		nullFloat(s.AssetGrowthPct),
		nullFloat(s.FindingGrowthPct),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", storeError(err))
	}

	return nil
}

const summaryColumns = `
	id, company_id, period_label, observation_date,
	risk_histogram, os_histogram, top_assets,
	new_count, resolved_count, unresolved_count, total_count,
	unique_assets, asset_growth_pct, finding_growth_pct,
	created_at, updated_at
`

// Get retrieves a summary by company and period label.
func (r *SummaryRepository) Get(ctx context.Context, companyID shared.ID, periodLabel string) (*summary.PeriodSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM period_summaries WHERE company_id = $1 AND period_label = $2`

	s, err := scanSummary(r.db.QueryRowContext(ctx, query, companyID.String(), periodLabel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, summary.NewSummaryNotFoundError(companyID.String(), periodLabel)
		}
		return nil, fmt.Errorf("failed to get summary: %w", storeError(err))
	}
	return s, nil
}

// ListByCompany returns a company's summaries in ascending observation
// date order.
func (r *SummaryRepository) ListByCompany(ctx context.Context, companyID shared.ID) ([]*summary.PeriodSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM period_summaries WHERE company_id = $1 ORDER BY observation_date`

	rows, err := r.db.QueryContext(ctx, query, companyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", storeError(err))
	}
	defer rows.Close()

	var summaries []*summary.PeriodSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", storeError(err))
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes the summary for (company, period).
func (r *SummaryRepository) Delete(ctx context.Context, companyID shared.ID, periodLabel string) error {
	query := `DELETE FROM period_summaries WHERE company_id = $1 AND period_label = $2`

	result, err := r.db.ExecContext(ctx, query, companyID.String(), periodLabel)
	if err != nil {
		return fmt.Errorf("failed to delete summary: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return summary.NewSummaryNotFoundError(companyID.String(), periodLabel)
	}

	return nil
}

func scanSummary(s scanner) (*summary.PeriodSummary, error) {
	var (
		idStr, companyIDStr        string
		sum                        summary.PeriodSummary
		riskHistogram, osHistogram []byte
		topAssets                  []byte
		assetGrowth, findingGrowth sql.NullFloat64
	)

	err := s.Scan(
		&idStr, &companyIDStr, &sum.PeriodLabel, &sum.ObservationDate,
		&riskHistogram, &osHistogram, &topAssets,
		&sum.NewCount, &sum.ResolvedCount, &sum.UnresolvedCount, &sum.TotalCount,
		&sum.UniqueAssets, &assetGrowth, &findingGrowth,
		&sum.CreatedAt, &sum.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sum.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid summary ID: %w", err)
	}
	if sum.CompanyID, err = shared.IDFromString(companyIDStr); err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}

	sum.RiskHistogram = make(map[string]int)
	if err := fromJSONB(riskHistogram, &sum.RiskHistogram); err != nil {
		return nil, fmt.Errorf("failed to unmarshal risk histogram: %w", storeError(err))
	}
	sum.OSHistogram = make(map[string]int)
	if err := fromJSONB(osHistogram, &sum.OSHistogram); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OS histogram: %w", storeError(err))
	}
	sum.TopAssets = []summary.AssetCount{}
	if err := fromJSONB(topAssets, &sum.TopAssets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top assets: %w", storeError(err))
	}

	sum.AssetGrowthPct = nullFloatValue(assetGrowth)
	sum.FindingGrowthPct = nullFloatValue(findingGrowth)
	return &sum, nil
}
