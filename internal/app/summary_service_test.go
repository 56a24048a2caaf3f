package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

var (
	summaryQ1Date = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	summaryQ2Date = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
)

func testFinding(t *testing.T, companyID shared.ID, host, title string, risk finding.RiskLevel, osLabel string, uploaded time.Time) *finding.Finding {
	t.Helper()
	f, err := finding.NewFinding(companyID, host, title, risk, uploaded)
	require.NoError(t, err)
	if osLabel != "" {
		f.SetAssetOS(&osLabel)
	}
	return f
}

func newSummaryFixture() (*SummaryService, *memFindingRepo, *memSummaryRepo, *memCompanyRepo) {
	findings := newMemFindingRepo()
	summaries := newMemSummaryRepo()
	companies := newMemCompanyRepo()
	svc := NewSummaryService(findings, summaries, companies, logger.NewDevelopment())
	return svc, findings, summaries, companies
}

// TestSummaryService_Rebuild_FirstPeriod verifies counts and histograms
// for a period with no predecessor.
func TestSummaryService_Rebuild_FirstPeriod(t *testing.T) {
	svc, findings, _, _ := newSummaryFixture()
	companyID := shared.NewID()

	f1 := testFinding(t, companyID, "10.0.0.1", "Finding 1", finding.RiskCritical, "linux", summaryQ1Date)
	f2 := testFinding(t, companyID, "10.0.0.1", "Finding 2", finding.RiskHigh, "linux", summaryQ1Date)
	f3 := testFinding(t, companyID, "10.0.0.2", "Finding 3", finding.RiskMedium, "", summaryQ1Date)
	findings.addMembership(f1, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f2, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f3, "2026-Q1", summaryQ1Date, false)

	sum, err := svc.Rebuild(context.Background(), companyID, "2026-Q1", summaryQ1Date, "import")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalCount)
	assert.Equal(t, 0, sum.UnresolvedCount, "nothing can be carried into the first period")
	assert.Equal(t, 0, sum.ResolvedCount)
	assert.Equal(t, 3, sum.NewCount, "everything is new in the first period")
	assert.Equal(t, 2, sum.UniqueAssets)

	assert.Equal(t, map[string]int{"critical": 1, "high": 1, "medium": 1}, sum.RiskHistogram)
	assert.Equal(t, map[string]int{"linux": 2, "unknown": 1}, sum.OSHistogram)

	require.NotEmpty(t, sum.TopAssets)
	assert.Equal(t, "10.0.0.1", sum.TopAssets[0].Address)
	assert.Equal(t, 2, sum.TopAssets[0].Count)

	assert.Nil(t, sum.AssetGrowthPct, "no prior period, growth undefined")
	assert.Nil(t, sum.FindingGrowthPct)
}

// TestSummaryService_Rebuild_SecondPeriod covers new/carried/resolved
// classification and growth against the stored prior summary.
func TestSummaryService_Rebuild_SecondPeriod(t *testing.T) {
	svc, findings, _, _ := newSummaryFixture()
	companyID := shared.NewID()
	ctx := context.Background()

	f1 := testFinding(t, companyID, "10.0.0.1", "Finding 1", finding.RiskCritical, "linux", summaryQ1Date)
	f2 := testFinding(t, companyID, "10.0.0.1", "Finding 2", finding.RiskHigh, "linux", summaryQ1Date)
	f3 := testFinding(t, companyID, "10.0.0.2", "Finding 3", finding.RiskMedium, "linux", summaryQ1Date)
	findings.addMembership(f1, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f2, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f3, "2026-Q1", summaryQ1Date, false)

	_, err := svc.Rebuild(ctx, companyID, "2026-Q1", summaryQ1Date, "import")
	require.NoError(t, err)

	// Q2: f1 carried open, f2 fixed, f3 absent entirely, f4 and f5 new.
	f4 := testFinding(t, companyID, "10.0.0.3", "Finding 4", finding.RiskHigh, "windows", summaryQ2Date)
	f5 := testFinding(t, companyID, "10.0.0.4", "Finding 5", finding.RiskLow, "windows", summaryQ2Date)
	findings.addMembership(f1, "2026-Q2", summaryQ2Date, false)
	findings.addMembership(f2, "2026-Q2", summaryQ2Date, true)
	findings.addMembership(f4, "2026-Q2", summaryQ2Date, false)
	findings.addMembership(f5, "2026-Q2", summaryQ2Date, false)

	sum, err := svc.Rebuild(ctx, companyID, "2026-Q2", summaryQ2Date, "import")
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalCount)
	assert.Equal(t, 1, sum.UnresolvedCount, "only f1 was open in both periods")
	assert.Equal(t, 2, sum.NewCount, "f4 and f5 have no prior membership")
	assert.Equal(t, 2, sum.ResolvedCount, "f2 resolved here plus f3 gone entirely")
	assert.Equal(t, 3, sum.UniqueAssets)

	require.NotNil(t, sum.FindingGrowthPct)
	assert.InDelta(t, 100.0/3, *sum.FindingGrowthPct, 0.01, "3 -> 4 findings")
	require.NotNil(t, sum.AssetGrowthPct)
	assert.InDelta(t, 50.0, *sum.AssetGrowthPct, 0.01, "2 -> 3 assets")
}

// TestSummaryService_Rebuild_CountsPartitionMemberships verifies that
// new, carried and resolved counts split the period's memberships with
// nothing counted twice: a finding open in both periods is carried, a
// first-seen open finding is new, and everything resolved this period
// (explicitly or by absence) lands in resolved.
func TestSummaryService_Rebuild_CountsPartitionMemberships(t *testing.T) {
	svc, findings, _, _ := newSummaryFixture()
	companyID := shared.NewID()
	ctx := context.Background()

	fa := testFinding(t, companyID, "10.0.0.1", "Finding A", finding.RiskHigh, "linux", summaryQ1Date)
	fb := testFinding(t, companyID, "10.0.0.2", "Finding B", finding.RiskHigh, "linux", summaryQ1Date)
	fc := testFinding(t, companyID, "10.0.0.3", "Finding C", finding.RiskHigh, "linux", summaryQ1Date)
	findings.addMembership(fa, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(fb, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(fc, "2026-Q1", summaryQ1Date, false)

	// Q2 upload carries A and introduces D; B and C are absent, so the
	// absence pass left them with resolved Q2 memberships.
	fd := testFinding(t, companyID, "10.0.0.4", "Finding D", finding.RiskMedium, "linux", summaryQ2Date)
	findings.addMembership(fa, "2026-Q2", summaryQ2Date, false)
	findings.addMembership(fd, "2026-Q2", summaryQ2Date, false)
	findings.addMembership(fb, "2026-Q2", summaryQ2Date, true)
	findings.addMembership(fc, "2026-Q2", summaryQ2Date, true)

	sum, err := svc.Rebuild(ctx, companyID, "2026-Q2", summaryQ2Date, "import")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.NewCount, "only D is first seen in Q2")
	assert.Equal(t, 2, sum.ResolvedCount, "B and C were closed by absence")
	assert.Equal(t, 1, sum.UnresolvedCount, "only A is open in both periods")
	assert.Equal(t, 4, sum.TotalCount)
	assert.Equal(t, sum.TotalCount, sum.NewCount+sum.ResolvedCount+sum.UnresolvedCount)
}

// TestSummaryService_Rebuild_MissingPriorSummary leaves growth undefined
// when the prior period exists but its summary was never stored.
func TestSummaryService_Rebuild_MissingPriorSummary(t *testing.T) {
	svc, findings, _, _ := newSummaryFixture()
	companyID := shared.NewID()

	f1 := testFinding(t, companyID, "10.0.0.1", "Finding 1", finding.RiskHigh, "linux", summaryQ1Date)
	findings.addMembership(f1, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f1, "2026-Q2", summaryQ2Date, false)

	sum, err := svc.Rebuild(context.Background(), companyID, "2026-Q2", summaryQ2Date, "recalculate")
	require.NoError(t, err)

	assert.Equal(t, 0, sum.NewCount, "f1 was already present in Q1")
	assert.Equal(t, 1, sum.UnresolvedCount, "f1 carried over from Q1")
	assert.Nil(t, sum.FindingGrowthPct)
	assert.Nil(t, sum.AssetGrowthPct)
}

// TestSummaryService_Rebuild_Wholesale verifies a rebuild replaces the
// stored record instead of patching it.
func TestSummaryService_Rebuild_Wholesale(t *testing.T) {
	svc, findings, summaries, _ := newSummaryFixture()
	companyID := shared.NewID()
	ctx := context.Background()

	f1 := testFinding(t, companyID, "10.0.0.1", "Finding 1", finding.RiskHigh, "linux", summaryQ1Date)
	findings.addMembership(f1, "2026-Q1", summaryQ1Date, false)
	_, err := svc.Rebuild(ctx, companyID, "2026-Q1", summaryQ1Date, "import")
	require.NoError(t, err)

	f2 := testFinding(t, companyID, "10.0.0.2", "Finding 2", finding.RiskLow, "linux", summaryQ1Date)
	findings.addMembership(f2, "2026-Q1", summaryQ1Date, false)
	_, err = svc.Rebuild(ctx, companyID, "2026-Q1", summaryQ1Date, "import")
	require.NoError(t, err)

	stored, err := summaries.Get(ctx, companyID, "2026-Q1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalCount)
	assert.Equal(t, map[string]int{"high": 1, "low": 1}, stored.RiskHistogram)
}

// TestGrowthPct covers the zero-divisor rule.
func TestGrowthPct(t *testing.T) {
	assert.Nil(t, growthPct(5, 0))

	pct := growthPct(6, 4)
	require.NotNil(t, pct)
	assert.InDelta(t, 50.0, *pct, 0.001)

	pct = growthPct(2, 4)
	require.NotNil(t, pct)
	assert.InDelta(t, -50.0, *pct, 0.001)
}

// TestTopAssets verifies descending order and truncation.
func TestTopAssets(t *testing.T) {
	counts := map[string]int{
		"10.0.0.1": 5,
		"10.0.0.2": 9,
		"10.0.0.3": 1,
		"10.0.0.4": 7,
	}

	top := topAssets(counts, 3)
	require.Len(t, top, 3)
	assert.Equal(t, summary.AssetCount{Address: "10.0.0.2", Count: 9}, top[0])
	assert.Equal(t, summary.AssetCount{Address: "10.0.0.4", Count: 7}, top[1])
	assert.Equal(t, summary.AssetCount{Address: "10.0.0.1", Count: 5}, top[2])
}

// TestSummaryService_RecalculateCompany rebuilds periods in
// observation-date order so the growth chain is consistent.
func TestSummaryService_RecalculateCompany(t *testing.T) {
	svc, findings, summaries, _ := newSummaryFixture()
	companyID := shared.NewID()
	ctx := context.Background()

	f1 := testFinding(t, companyID, "10.0.0.1", "Finding 1", finding.RiskHigh, "linux", summaryQ1Date)
	f2 := testFinding(t, companyID, "10.0.0.2", "Finding 2", finding.RiskLow, "linux", summaryQ2Date)
	findings.addMembership(f1, "2026-Q1", summaryQ1Date, false)
	findings.addMembership(f1, "2026-Q2", summaryQ2Date, false)
	findings.addMembership(f2, "2026-Q2", summaryQ2Date, false)

	rebuilt, err := svc.RecalculateCompany(ctx, companyID, "recalculate")
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt)

	q2, err := summaries.Get(ctx, companyID, "2026-Q2")
	require.NoError(t, err)
	require.NotNil(t, q2.FindingGrowthPct, "Q1 summary existed by the time Q2 was rebuilt")
	assert.InDelta(t, 100.0, *q2.FindingGrowthPct, 0.001, "1 -> 2 findings")
}

// TestSummaryService_RecalculateAll rebuilds every company.
func TestSummaryService_RecalculateAll(t *testing.T) {
	svc, findings, summaries, companies := newSummaryFixture()
	ctx := context.Background()

	var ids []shared.ID
	for _, slug := range []string{"acme", "globex"} {
		c, err := company.NewCompany(slug, slug)
		require.NoError(t, err)
		require.NoError(t, companies.Create(ctx, c))
		ids = append(ids, c.ID())

		f := testFinding(t, c.ID(), "10.0.0.1", "Finding", finding.RiskHigh, "linux", summaryQ1Date)
		findings.addMembership(f, "2026-Q1", summaryQ1Date, false)
	}

	require.NoError(t, svc.RecalculateAll(ctx, 2, "scheduled"))

	for _, id := range ids {
		sum, err := summaries.Get(ctx, id, "2026-Q1")
		require.NoError(t, err)
		assert.Equal(t, 1, sum.TotalCount)
	}
}
