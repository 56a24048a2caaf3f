package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/sla"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// OverdueFinding is one open finding evaluated against its remediation
// deadline.
type OverdueFinding struct {
	FindingID    shared.ID         `json:"finding_id"`
	Title        string            `json:"title"`
	AssetAddress string            `json:"asset_address"`
	AssetOS      string            `json:"asset_os,omitempty"`
	RiskLevel    finding.RiskLevel `json:"risk_level"`
	DaysOpen     int               `json:"days_open"`
	DeadlineDays int               `json:"deadline_days"`
	DaysOverdue  int               `json:"days_overdue"`
}

// OverdueReport lists a period's open findings past their SLA deadline,
// most overdue first. Deadlines are evaluated at read time and never
// persisted onto findings.
type OverdueReport struct {
	CompanyID   shared.ID        `json:"company_id"`
	PeriodLabel string           `json:"period_label"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	OpenCount   int              `json:"open_count"`
	Overdue     []OverdueFinding `json:"overdue"`
}

// SLAService manages remediation deadline policies and evaluates open
// findings against them.
type SLAService struct {
	policies sla.Repository
	findings finding.Repository
	logger   *logger.Logger
}

// NewSLAService creates an SLA service.
func NewSLAService(policies sla.Repository, findings finding.Repository, log *logger.Logger) *SLAService {
	return &SLAService{
		policies: policies,
		findings: findings,
		logger:   log.With("service", "sla"),
	}
}

// CreatePolicy registers a remediation policy for (company, OS type).
// OS type "*" acts as the company-wide fallback.
func (s *SLAService) CreatePolicy(ctx context.Context, companyID shared.ID, osType string, critical, high, medium, low int) (*sla.Policy, error) {
	p, err := sla.NewPolicy(companyID, osType)
	if err != nil {
		return nil, err
	}
	if err := p.SetDays(critical, high, medium, low); err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	s.logger.Info("sla policy created", "company_id", companyID, "os_type", osType)
	return p, nil
}

// UpdatePolicy changes a policy's deadlines.
func (s *SLAService) UpdatePolicy(ctx context.Context, id shared.ID, critical, high, medium, low int) (*sla.Policy, error) {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.SetDays(critical, high, medium, low); err != nil {
		return nil, err
	}
	if err := s.policies.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	return p, nil
}

// DeletePolicy removes a policy; affected findings fall back to the "*"
// policy or the built-in defaults.
func (s *SLAService) DeletePolicy(ctx context.Context, id shared.ID) error {
	return s.policies.Delete(ctx, id)
}

// ListPolicies returns a company's policies.
func (s *SLAService) ListPolicies(ctx context.Context, companyID shared.ID) ([]*sla.Policy, error) {
	return s.policies.ListByCompany(ctx, companyID)
}

// DeadlineDays resolves the remediation deadline for (company, OS type,
// risk): the OS-specific policy, then the "*" policy, then the built-in
// defaults.
func (s *SLAService) DeadlineDays(ctx context.Context, companyID shared.ID, osType string, risk finding.RiskLevel) (int, error) {
	p, err := s.policies.GetForOS(ctx, companyID, osType)
	if err != nil {
		if errors.Is(err, sla.ErrPolicyNotFound) {
			return sla.DefaultDaysFor(risk), nil
		}
		return 0, err
	}
	return p.DaysFor(risk), nil
}

// OverdueInPeriod evaluates the period's unresolved findings against
// their deadlines as of now.
func (s *SLAService) OverdueInPeriod(ctx context.Context, companyID shared.ID, periodLabel string) (*OverdueReport, error) {
	pfs, err := s.findings.FindingsInPeriod(ctx, companyID, periodLabel)
	if err != nil {
		return nil, fmt.Errorf("load period findings: %w", err)
	}

	now := time.Now().UTC()
	report := &OverdueReport{
		CompanyID:   companyID,
		PeriodLabel: periodLabel,
		EvaluatedAt: now,
		Overdue:     []OverdueFinding{},
	}

	// Deadlines vary only by OS type within one company, so resolve each
	// policy once.
	deadlines := make(map[string]*sla.Policy)

	for _, pf := range pfs {
		if pf.Membership.Resolved {
			continue
		}
		report.OpenCount++

		f := pf.Finding
		if !f.RiskLevel().Tracked() {
			continue
		}

		osType := ""
		if f.AssetOS() != nil {
			osType = *f.AssetOS()
		}

		deadline, err := s.cachedDeadline(ctx, deadlines, companyID, osType, f.RiskLevel())
		if err != nil {
			return nil, err
		}

		daysOpen := int(now.Sub(f.UploadedAt()).Hours() / 24)
		if daysOpen <= deadline {
			continue
		}
		report.Overdue = append(report.Overdue, OverdueFinding{
			FindingID:    f.ID(),
			Title:        f.Title(),
			AssetAddress: f.AssetAddress(),
			AssetOS:      osType,
			RiskLevel:    f.RiskLevel(),
			DaysOpen:     daysOpen,
			DeadlineDays: deadline,
			DaysOverdue:  daysOpen - deadline,
		})
	}

	sort.Slice(report.Overdue, func(i, j int) bool {
		return report.Overdue[i].DaysOverdue > report.Overdue[j].DaysOverdue
	})
	return report, nil
}

func (s *SLAService) cachedDeadline(ctx context.Context, cache map[string]*sla.Policy, companyID shared.ID, osType string, risk finding.RiskLevel) (int, error) {
	p, ok := cache[osType]
	if !ok {
		var err error
		p, err = s.policies.GetForOS(ctx, companyID, osType)
		if err != nil && !errors.Is(err, sla.ErrPolicyNotFound) {
			return 0, err
		}
		cache[osType] = p // nil marks "use defaults"
	}
	if p == nil {
		return sla.DefaultDaysFor(risk), nil
	}
	return p.DaysFor(risk), nil
}
