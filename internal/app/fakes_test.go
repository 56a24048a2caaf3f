package app

import (
	"context"
	"sort"
	"time"

	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/sla"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
)

// In-memory repository fakes shared by the service tests in this
// package. Transactions run against the live maps; rollback is not
// simulated.

type memFindingRepo struct {
	findings    map[string]*finding.Finding          // by ID
	memberships map[string]*finding.PeriodMembership // by findingID|label
}

func newMemFindingRepo() *memFindingRepo {
	return &memFindingRepo{
		findings:    make(map[string]*finding.Finding),
		memberships: make(map[string]*finding.PeriodMembership),
	}
}

func membershipKey(findingID shared.ID, label string) string {
	return findingID.String() + "|" + label
}

// addMembership seeds a finding into a period directly, bypassing the
// import pipeline.
func (m *memFindingRepo) addMembership(f *finding.Finding, label string, date time.Time, resolved bool) {
	m.findings[f.ID().String()] = f
	m.memberships[membershipKey(f.ID(), label)] = finding.NewMembership(f, label, date, resolved)
}

func (m *memFindingRepo) InTransaction(_ context.Context, fn func(finding.Repository) error) error {
	return fn(m)
}

func (m *memFindingRepo) Create(_ context.Context, f *finding.Finding) error {
	m.findings[f.ID().String()] = f
	return nil
}

func (m *memFindingRepo) GetByID(_ context.Context, id shared.ID) (*finding.Finding, error) {
	f, ok := m.findings[id.String()]
	if !ok {
		return nil, finding.NewFindingNotFoundError(id.String())
	}
	return f, nil
}

func (m *memFindingRepo) FindByFingerprints(_ context.Context, companyID shared.ID, fingerprints []string) ([]*finding.Finding, error) {
	want := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		want[fp] = struct{}{}
	}
	var out []*finding.Finding
	for _, f := range m.findings {
		if !f.CompanyID().Equals(companyID) {
			continue
		}
		if _, ok := want[f.Fingerprint()]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFindingRepo) CreateMembership(_ context.Context, mem *finding.PeriodMembership) error {
	m.memberships[membershipKey(mem.FindingID, mem.PeriodLabel)] = mem
	return nil
}

func (m *memFindingRepo) UpdateMembership(_ context.Context, mem *finding.PeriodMembership) error {
	key := membershipKey(mem.FindingID, mem.PeriodLabel)
	if _, exists := m.memberships[key]; !exists {
		return finding.NewMembershipNotFoundError(mem.FindingID.String(), mem.PeriodLabel)
	}
	m.memberships[key] = mem
	return nil
}

func (m *memFindingRepo) MembershipsForPeriod(_ context.Context, companyID shared.ID, periodLabel string, findingIDs []shared.ID) (map[string]*finding.PeriodMembership, error) {
	out := make(map[string]*finding.PeriodMembership)
	for _, id := range findingIDs {
		if mem, ok := m.memberships[membershipKey(id, periodLabel)]; ok && mem.CompanyID.Equals(companyID) {
			out[id.String()] = mem
		}
	}
	return out, nil
}

func (m *memFindingRepo) OpenFingerprintsInPeriod(_ context.Context, companyID shared.ID, periodLabel string) (map[string]shared.ID, error) {
	out := make(map[string]shared.ID)
	for _, mem := range m.memberships {
		if !mem.CompanyID.Equals(companyID) || mem.PeriodLabel != periodLabel || mem.Resolved {
			continue
		}
		f := m.findings[mem.FindingID.String()]
		out[f.Fingerprint()] = f.ID()
	}
	return out, nil
}

func (m *memFindingRepo) FindingsInPeriod(_ context.Context, companyID shared.ID, periodLabel string) ([]*finding.PeriodFinding, error) {
	var out []*finding.PeriodFinding
	for _, mem := range m.memberships {
		if !mem.CompanyID.Equals(companyID) || mem.PeriodLabel != periodLabel {
			continue
		}
		out = append(out, &finding.PeriodFinding{
			Finding:    m.findings[mem.FindingID.String()],
			Membership: mem,
		})
	}
	return out, nil
}

func (m *memFindingRepo) Periods(_ context.Context, companyID shared.ID) ([]finding.PeriodRef, error) {
	dates := make(map[string]time.Time)
	for _, mem := range m.memberships {
		if !mem.CompanyID.Equals(companyID) {
			continue
		}
		if d, ok := dates[mem.PeriodLabel]; !ok || mem.ObservationDate.Before(d) {
			dates[mem.PeriodLabel] = mem.ObservationDate
		}
	}
	refs := make([]finding.PeriodRef, 0, len(dates))
	for label, d := range dates {
		refs = append(refs, finding.PeriodRef{Label: label, ObservationDate: d})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ObservationDate.Before(refs[j].ObservationDate) })
	return refs, nil
}

func (m *memFindingRepo) LatestPeriodBefore(ctx context.Context, companyID shared.ID, before time.Time) (*finding.PeriodRef, error) {
	refs, _ := m.Periods(ctx, companyID)
	var prior *finding.PeriodRef
	for i := range refs {
		if refs[i].ObservationDate.Before(before) {
			prior = &refs[i]
		}
	}
	return prior, nil
}

type memSummaryRepo struct {
	summaries map[string]*summary.PeriodSummary // by companyID|label
}

func newMemSummaryRepo() *memSummaryRepo {
	return &memSummaryRepo{summaries: make(map[string]*summary.PeriodSummary)}
}

func summaryKey(companyID shared.ID, label string) string {
	return companyID.String() + "|" + label
}

func (m *memSummaryRepo) Upsert(_ context.Context, s *summary.PeriodSummary) error {
	m.summaries[summaryKey(s.CompanyID, s.PeriodLabel)] = s
	return nil
}

func (m *memSummaryRepo) Get(_ context.Context, companyID shared.ID, periodLabel string) (*summary.PeriodSummary, error) {
	s, ok := m.summaries[summaryKey(companyID, periodLabel)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (m *memSummaryRepo) ListByCompany(_ context.Context, companyID shared.ID) ([]*summary.PeriodSummary, error) {
	var out []*summary.PeriodSummary
	for _, s := range m.summaries {
		if s.CompanyID.Equals(companyID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservationDate.Before(out[j].ObservationDate) })
	return out, nil
}

func (m *memSummaryRepo) Delete(_ context.Context, companyID shared.ID, periodLabel string) error {
	delete(m.summaries, summaryKey(companyID, periodLabel))
	return nil
}

type memCompanyRepo struct {
	companies map[string]*company.Company // by ID
}

func newMemCompanyRepo() *memCompanyRepo {
	return &memCompanyRepo{companies: make(map[string]*company.Company)}
}

func (m *memCompanyRepo) Create(_ context.Context, c *company.Company) error {
	for _, existing := range m.companies {
		if existing.Slug() == c.Slug() {
			return company.NewCompanyExistsError(c.Slug())
		}
	}
	m.companies[c.ID().String()] = c
	return nil
}

func (m *memCompanyRepo) GetByID(_ context.Context, id shared.ID) (*company.Company, error) {
	c, ok := m.companies[id.String()]
	if !ok {
		return nil, company.NewCompanyNotFoundError(id.String())
	}
	return c, nil
}

func (m *memCompanyRepo) GetBySlug(_ context.Context, slug string) (*company.Company, error) {
	for _, c := range m.companies {
		if c.Slug() == slug {
			return c, nil
		}
	}
	return nil, company.NewCompanyNotFoundError(slug)
}

func (m *memCompanyRepo) Update(_ context.Context, c *company.Company) error {
	if _, ok := m.companies[c.ID().String()]; !ok {
		return company.NewCompanyNotFoundError(c.ID().String())
	}
	m.companies[c.ID().String()] = c
	return nil
}

func (m *memCompanyRepo) Delete(_ context.Context, id shared.ID) error {
	if _, ok := m.companies[id.String()]; !ok {
		return company.NewCompanyNotFoundError(id.String())
	}
	delete(m.companies, id.String())
	return nil
}

func (m *memCompanyRepo) List(_ context.Context) ([]*company.Company, error) {
	var out []*company.Company
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

type memPolicyRepo struct {
	policies map[string]*sla.Policy // by ID
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{policies: make(map[string]*sla.Policy)}
}

func (m *memPolicyRepo) Create(_ context.Context, p *sla.Policy) error {
	for _, existing := range m.policies {
		if existing.CompanyID().Equals(p.CompanyID()) && existing.OSType() == p.OSType() {
			return sla.NewPolicyExistsError(p.OSType())
		}
	}
	m.policies[p.ID().String()] = p
	return nil
}

func (m *memPolicyRepo) GetByID(_ context.Context, id shared.ID) (*sla.Policy, error) {
	p, ok := m.policies[id.String()]
	if !ok {
		return nil, sla.ErrPolicyNotFound
	}
	return p, nil
}

func (m *memPolicyRepo) GetForOS(_ context.Context, companyID shared.ID, osType string) (*sla.Policy, error) {
	var wildcard *sla.Policy
	for _, p := range m.policies {
		if !p.CompanyID().Equals(companyID) {
			continue
		}
		if p.OSType() == osType {
			return p, nil
		}
		if p.OSType() == "*" {
			wildcard = p
		}
	}
	if wildcard != nil {
		return wildcard, nil
	}
	return nil, sla.ErrPolicyNotFound
}

func (m *memPolicyRepo) Update(_ context.Context, p *sla.Policy) error {
	if _, ok := m.policies[p.ID().String()]; !ok {
		return sla.ErrPolicyNotFound
	}
	m.policies[p.ID().String()] = p
	return nil
}

func (m *memPolicyRepo) Delete(_ context.Context, id shared.ID) error {
	if _, ok := m.policies[id.String()]; !ok {
		return sla.ErrPolicyNotFound
	}
	delete(m.policies, id.String())
	return nil
}

func (m *memPolicyRepo) ListByCompany(_ context.Context, companyID shared.ID) ([]*sla.Policy, error) {
	var out []*sla.Policy
	for _, p := range m.policies {
		if p.CompanyID().Equals(companyID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OSType() < out[j].OSType() })
	return out, nil
}
