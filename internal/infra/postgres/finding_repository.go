package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
)

// maxLookupSet bounds the size of fingerprint and ID sets accepted by
// bulk lookups, keeping query parameters and result sets predictable.
const maxLookupSet = 5000

// FindingRepository implements finding.Repository using PostgreSQL.
// A zero txTimeout disables the per-transaction deadline.
type FindingRepository struct {
	db        *DB
	q         querier
	txTimeout time.Duration
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB, txTimeout time.Duration) *FindingRepository {
	return &FindingRepository{db: db, q: db.DB, txTimeout: txTimeout}
}

// InTransaction runs fn against a transaction-bound copy of the
// repository. Nested calls join the enclosing transaction.
func (r *FindingRepository) InTransaction(ctx context.Context, fn func(finding.Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		return fn(&FindingRepository{q: tx, txTimeout: r.txTimeout})
	})
}

const findingColumns = `
	id, company_id, asset_address, asset_os, port, protocol, title,
	identifiers, description, synopsis, recommendation, risk_level,
	score, reference_urls, raw_output, uploaded_at, fingerprint, created_at
`

// Create persists a new finding.
func (r *FindingRepository) Create(ctx context.Context, f *finding.Finding) error {
	query := `
		INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.q.ExecContext(ctx, query,
		f.ID().String(),
		f.CompanyID().String(),
		f.AssetAddress(),
		nullString(f.AssetOS()),
		nullInt(f.Port()),
		nullString(f.Protocol()),
		f.Title(),
		pq.Array(f.Identifiers()),
		f.Description(),
		f.Synopsis(),
		f.Recommendation(),
		f.RiskLevel().String(),
		nullFloat(f.Score()),
		pq.Array(f.References()),
		nullString(f.RawOutput()),
		f.UploadedAt(),
		f.Fingerprint(),
		f.CreatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return finding.NewFindingExistsError(f.Fingerprint())
		}
		return fmt.Errorf("failed to create finding: %w", storeError(err))
	}

	return nil
}

// GetByID retrieves a finding by ID.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`
	f, err := scanFinding(r.q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, finding.NewFindingNotFoundError(id.String())
		}
		return nil, fmt.Errorf("failed to get finding: %w", storeError(err))
	}
	return f, nil
}

// FindByFingerprints retrieves existing findings for a bounded set of
// fingerprints belonging to one company.
func (r *FindingRepository) FindByFingerprints(ctx context.Context, companyID shared.ID, fingerprints []string) ([]*finding.Finding, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}
	if len(fingerprints) > maxLookupSet {
		return nil, fmt.Errorf("%w: fingerprint set exceeds %d entries", shared.ErrInvalidInput, maxLookupSet)
	}

	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE company_id = $1 AND fingerprint = ANY($2)
	`
	rows, err := r.q.QueryContext(ctx, query, companyID.String(), pq.Array(fingerprints))
	if err != nil {
		return nil, fmt.Errorf("failed to query findings by fingerprint: %w", storeError(err))
	}
	defer rows.Close()

	var findings []*finding.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", storeError(err))
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// CreateMembership persists a new period membership.
func (r *FindingRepository) CreateMembership(ctx context.Context, m *finding.PeriodMembership) error {
	query := `
		INSERT INTO period_memberships (
			id, finding_id, company_id, period_label, resolved,
			observation_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		m.ID.String(),
		m.FindingID.String(),
		m.CompanyID.String(),
		m.PeriodLabel,
		m.Resolved,
		m.ObservationDate,
		m.CreatedAt,
		m.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return finding.NewMembershipExistsError(m.FindingID.String(), m.PeriodLabel)
		}
		return fmt.Errorf("failed to create membership: %w", storeError(err))
	}

	return nil
}

// UpdateMembership persists membership state changes.
func (r *FindingRepository) UpdateMembership(ctx context.Context, m *finding.PeriodMembership) error {
	query := `
		UPDATE period_memberships
		SET resolved = $2, observation_date = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		m.ID.String(),
		m.Resolved,
		m.ObservationDate,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", storeError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", storeError(err))
	}
	if affected == 0 {
		return finding.NewMembershipNotFoundError(m.FindingID.String(), m.PeriodLabel)
	}

	return nil
}

// MembershipsForPeriod returns existing memberships for the given
// findings in one period, keyed by finding ID string.
func (r *FindingRepository) MembershipsForPeriod(ctx context.Context, companyID shared.ID, periodLabel string, findingIDs []shared.ID) (map[string]*finding.PeriodMembership, error) {
	if len(findingIDs) == 0 {
		return map[string]*finding.PeriodMembership{}, nil
	}
	if len(findingIDs) > maxLookupSet {
		return nil, fmt.Errorf("%w: finding ID set exceeds %d entries", shared.ErrInvalidInput, maxLookupSet)
	}

	ids := make([]string, len(findingIDs))
	for i, id := range findingIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT id, finding_id, company_id, period_label, resolved,
		       observation_date, created_at, updated_at
		FROM period_memberships
		WHERE company_id = $1 AND period_label = $2 AND finding_id = ANY($3)
	`
	rows, err := r.q.QueryContext(ctx, query, companyID.String(), periodLabel, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", storeError(err))
	}
	defer rows.Close()

	memberships := make(map[string]*finding.PeriodMembership)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", storeError(err))
		}
		memberships[m.FindingID.String()] = m
	}
	return memberships, rows.Err()
}

// OpenFingerprintsInPeriod returns the fingerprints of findings with an
// unresolved membership in the given period, mapped to finding IDs.
func (r *FindingRepository) OpenFingerprintsInPeriod(ctx context.Context, companyID shared.ID, periodLabel string) (map[string]shared.ID, error) {
	query := `
		SELECT f.fingerprint, f.id
		FROM period_memberships m
		JOIN findings f ON f.id = m.finding_id
		WHERE m.company_id = $1 AND m.period_label = $2 AND m.resolved = false
	`
	rows, err := r.q.QueryContext(ctx, query, companyID.String(), periodLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to query open fingerprints: %w", storeError(err))
	}
	defer rows.Close()

	open := make(map[string]shared.ID)
	for rows.Next() {
		var fingerprint, idStr string
		if err := rows.Scan(&fingerprint, &idStr); err != nil {
			return nil, fmt.Errorf("failed to scan open fingerprint: %w", storeError(err))
		}
		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid finding ID %q: %w", idStr, err)
		}
		open[fingerprint] = id
	}
	return open, rows.Err()
}

// FindingsInPeriod returns every finding with a membership in the given
// period, together with that membership.
func (r *FindingRepository) FindingsInPeriod(ctx context.Context, companyID shared.ID, periodLabel string) ([]*finding.PeriodFinding, error) {
	query := `
		SELECT
			f.id, f.company_id, f.asset_address, f.asset_os, f.port, f.protocol,
			f.title, f.identifiers, f.description, f.synopsis, f.recommendation,
			f.risk_level, f.score, f.reference_urls, f.raw_output, f.uploaded_at,
			f.fingerprint, f.created_at,
			m.id, m.finding_id, m.company_id, m.period_label, m.resolved,
			m.observation_date, m.created_at, m.updated_at
		FROM period_memberships m
		JOIN findings f ON f.id = m.finding_id
		WHERE m.company_id = $1 AND m.period_label = $2
		ORDER BY f.asset_address, f.title
	`
	rows, err := r.q.QueryContext(ctx, query, companyID.String(), periodLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to query period findings: %w", storeError(err))
	}
	defer rows.Close()

	var out []*finding.PeriodFinding
	for rows.Next() {
		pf, err := scanPeriodFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period finding: %w", storeError(err))
		}
		out = append(out, pf)
	}
	return out, rows.Err()
}

// Periods lists a company's known periods in ascending observation date
// order.
func (r *FindingRepository) Periods(ctx context.Context, companyID shared.ID) ([]finding.PeriodRef, error) {
	query := `
		SELECT period_label, MIN(observation_date)
		FROM period_memberships
		WHERE company_id = $1
		GROUP BY period_label
		ORDER BY MIN(observation_date)
	`
	rows, err := r.q.QueryContext(ctx, query, companyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", storeError(err))
	}
	defer rows.Close()

	var periods []finding.PeriodRef
	for rows.Next() {
		var ref finding.PeriodRef
		if err := rows.Scan(&ref.Label, &ref.ObservationDate); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", storeError(err))
		}
		periods = append(periods, ref)
	}
	return periods, rows.Err()
}

// LatestPeriodBefore returns the period with the greatest observation
// date strictly before the given date, or nil if none exists.
func (r *FindingRepository) LatestPeriodBefore(ctx context.Context, companyID shared.ID, before time.Time) (*finding.PeriodRef, error) {
	query := `
		SELECT period_label, MIN(observation_date) AS od
		FROM period_memberships
		WHERE company_id = $1
		GROUP BY period_label
		HAVING MIN(observation_date) < $2
		ORDER BY od DESC
		LIMIT 1
	`
	var ref finding.PeriodRef
	err := r.q.QueryRowContext(ctx, query, companyID.String(), before).Scan(&ref.Label, &ref.ObservationDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query prior period: %w", storeError(err))
	}
	return &ref, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFinding(s scanner) (*finding.Finding, error) {
	var (
		idStr, companyIDStr          string
		assetAddress, title          string
		assetOS, protocol, rawOutput sql.NullString
		port                         sql.NullInt32
		identifiers, referenceURLs   pq.StringArray
		description, synopsis        string
		recommendation, riskLevelStr string
		score                        sql.NullFloat64
		uploadedAt, createdAt        time.Time
		fingerprint                  string
	)

	err := s.Scan(
		&idStr, &companyIDStr, &assetAddress, &assetOS, &port, &protocol,
		&title, &identifiers, &description, &synopsis, &recommendation,
		&riskLevelStr, &score, &referenceURLs, &rawOutput, &uploadedAt,
		&fingerprint, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid finding ID: %w", err)
	}
	companyID, err := shared.IDFromString(companyIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}
	riskLevel, err := finding.ParseRiskLevel(riskLevelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid risk level: %w", err)
	}

	return finding.Reconstitute(
		id,
		companyID,
		assetAddress,
		nullStringValue(assetOS),
		nullIntValue(port),
		nullStringValue(protocol),
		title,
		identifiers,
		description,
		synopsis,
		recommendation,
		riskLevel,
		nullFloatValue(score),
		referenceURLs,
		nullStringValue(rawOutput),
		uploadedAt,
		fingerprint,
		createdAt,
	), nil
}

func scanMembership(s scanner) (*finding.PeriodMembership, error) {
	var (
		idStr, findingIDStr, companyIDStr string
		m                                 finding.PeriodMembership
	)

	err := s.Scan(
		&idStr, &findingIDStr, &companyIDStr, &m.PeriodLabel, &m.Resolved,
		&m.ObservationDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid membership ID: %w", err)
	}
	if m.FindingID, err = shared.IDFromString(findingIDStr); err != nil {
		return nil, fmt.Errorf("invalid finding ID: %w", err)
	}
	if m.CompanyID, err = shared.IDFromString(companyIDStr); err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}
	return &m, nil
}

func scanPeriodFinding(s scanner) (*finding.PeriodFinding, error) {
	var (
		fIDStr, fCompanyIDStr        string
		assetAddress, title          string
		assetOS, protocol, rawOutput sql.NullString
		port                         sql.NullInt32
		identifiers, referenceURLs   pq.StringArray
		description, synopsis        string
		recommendation, riskLevelStr string
		score                        sql.NullFloat64
		uploadedAt, createdAt        time.Time
		fingerprint                  string

		mIDStr, mFindingIDStr, mCompanyIDStr string
		m                                    finding.PeriodMembership
	)

	err := s.Scan(
		&fIDStr, &fCompanyIDStr, &assetAddress, &assetOS, &port, &protocol,
		&title, &identifiers, &description, &synopsis, &recommendation,
		&riskLevelStr, &score, &referenceURLs, &rawOutput, &uploadedAt,
		&fingerprint, &createdAt,
		&mIDStr, &mFindingIDStr, &mCompanyIDStr, &m.PeriodLabel, &m.Resolved,
		&m.ObservationDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fID, err := shared.IDFromString(fIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid finding ID: %w", err)
	}
	fCompanyID, err := shared.IDFromString(fCompanyIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}
	riskLevel, err := finding.ParseRiskLevel(riskLevelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid risk level: %w", err)
	}

	f := finding.Reconstitute(
		fID,
		fCompanyID,
		assetAddress,
		nullStringValue(assetOS),
		nullIntValue(port),
		nullStringValue(protocol),
		title,
		identifiers,
		description,
		synopsis,
		recommendation,
		riskLevel,
		nullFloatValue(score),
		referenceURLs,
		nullStringValue(rawOutput),
		uploadedAt,
		fingerprint,
		createdAt,
	)

	if m.ID, err = shared.IDFromString(mIDStr); err != nil {
		return nil, fmt.Errorf("invalid membership ID: %w", err)
	}
	if m.FindingID, err = shared.IDFromString(mFindingIDStr); err != nil {
		return nil, fmt.Errorf("invalid finding ID: %w", err)
	}
	if m.CompanyID, err = shared.IDFromString(mCompanyIDStr); err != nil {
		return nil, fmt.Errorf("invalid company ID: %w", err)
	}

	return &finding.PeriodFinding{Finding: f, Membership: &m}, nil
}
