package ingest

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// memFindingRepo is an in-memory finding.Repository. Transactions are
// not simulated; fn runs against the live maps.
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

func (m *memFindingRepo) InTransaction(_ context.Context, fn func(finding.Repository) error) error {
	return fn(m)
}

func (m *memFindingRepo) Create(_ context.Context, f *finding.Finding) error {
	for _, existing := range m.findings {
		if existing.CompanyID().Equals(f.CompanyID()) && existing.Fingerprint() == f.Fingerprint() {
			return finding.NewFindingExistsError(f.Fingerprint())
		}
	}
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
	key := membershipKey(mem.FindingID, mem.PeriodLabel)
	if _, exists := m.memberships[key]; exists {
		return finding.NewMembershipExistsError(mem.FindingID.String(), mem.PeriodLabel)
	}
	m.memberships[key] = mem
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

func (m *memFindingRepo) membershipsIn(label string) (open, resolved int) {
	for _, mem := range m.memberships {
		if mem.PeriodLabel != label {
			continue
		}
		if mem.Resolved {
			resolved++
		} else {
			open++
		}
	}
	return open, resolved
}

// memLocker satisfies finding.ImportLocker without locking.
type memLocker struct{}

func (memLocker) WithImportLock(ctx context.Context, _ shared.ID, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// recordingRebuilder captures summary rebuild requests.
type recordingRebuilder struct {
	calls []RebuildInput
}

func (r *recordingRebuilder) RebuildPeriod(_ context.Context, in RebuildInput) error {
	r.calls = append(r.calls, in)
	return nil
}

func newTestService(chunkSize int) (*Service, *memFindingRepo, *recordingRebuilder) {
	repo := newMemFindingRepo()
	rebuilder := &recordingRebuilder{}
	svc := NewService(repo, memLocker{}, rebuilder, nil, chunkSize, logger.NewDevelopment())
	return svc, repo, rebuilder
}

var (
	testCompanyID = shared.NewID()
	q1Date        = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	q2Date        = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
)

func importInput(period string, date time.Time, csv string) Input {
	return Input{
		OperationID:     shared.NewID().String(),
		CompanyID:       testCompanyID,
		PeriodLabel:     period,
		ObservationDate: date,
		Data:            strings.NewReader(csv),
	}
}

func csvOf(rows ...string) string {
	return "Host,Name,Risk,CVE\n" + strings.Join(rows, "\n") + "\n"
}

const (
	rowA = "10.0.0.1,Finding A,High,CVE-2024-0001"
	rowB = "10.0.0.2,Finding B,Critical,CVE-2024-0002"
	rowC = "10.0.0.3,Finding C,Medium,CVE-2024-0003"
	rowD = "10.0.0.4,Finding D,Low,CVE-2024-0004"
)

// TestService_Import_FirstPeriod verifies a company's first upload
// creates everything as new and resolves nothing.
func TestService_Import_FirstPeriod(t *testing.T) {
	svc, repo, rebuilder := newTestService(1000)

	result, err := svc.Import(context.Background(), importInput("2026-Q1", q1Date, csvOf(rowA, rowB, rowC)))
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowsParsed)
	assert.Equal(t, 3, result.FindingsNew)
	assert.Equal(t, 0, result.FindingsCarried)
	assert.Equal(t, 0, result.Resolved)
	assert.Equal(t, 1, result.Chunks)

	assert.Len(t, repo.findings, 3)
	open, resolved := repo.membershipsIn("2026-Q1")
	assert.Equal(t, 3, open)
	assert.Equal(t, 0, resolved)

	require.Len(t, rebuilder.calls, 1)
	assert.Equal(t, testCompanyID.String(), rebuilder.calls[0].CompanyID)
	assert.Equal(t, "2026-Q1", rebuilder.calls[0].PeriodLabel)
	assert.Equal(t, "import", rebuilder.calls[0].Trigger)
}

// TestService_Import_SecondPeriod covers the quarter-over-quarter
// lifecycle: carried, new, and resolved-by-absence findings.
func TestService_Import_SecondPeriod(t *testing.T) {
	svc, repo, _ := newTestService(1000)
	ctx := context.Background()

	_, err := svc.Import(ctx, importInput("2026-Q1", q1Date, csvOf(rowA, rowB, rowC)))
	require.NoError(t, err)

	result, err := svc.Import(ctx, importInput("2026-Q2", q2Date, csvOf(rowA, rowD)))
	require.NoError(t, err)

	assert.Equal(t, 1, result.FindingsNew, "D is first seen in Q2")
	assert.Equal(t, 1, result.FindingsCarried, "A persists unresolved")
	assert.Equal(t, 2, result.Resolved, "B and C disappeared")
	assert.Equal(t, 0, result.Reopened)

	// Q2 holds memberships for all four findings: A and D open, the
	// absent B and C recorded as resolved.
	open, resolved := repo.membershipsIn("2026-Q2")
	assert.Equal(t, 2, open)
	assert.Equal(t, 2, resolved)

	// Q1 memberships are never touched by a Q2 import.
	open, resolved = repo.membershipsIn("2026-Q1")
	assert.Equal(t, 3, open)
	assert.Equal(t, 0, resolved)

	assert.Len(t, repo.findings, 4, "no duplicate findings across periods")
}

// TestService_Import_Idempotent verifies re-running an identical import
// converges without additional writes.
func TestService_Import_Idempotent(t *testing.T) {
	svc, repo, _ := newTestService(1000)
	ctx := context.Background()

	_, err := svc.Import(ctx, importInput("2026-Q1", q1Date, csvOf(rowA, rowB, rowC)))
	require.NoError(t, err)
	_, err = svc.Import(ctx, importInput("2026-Q2", q2Date, csvOf(rowA, rowD)))
	require.NoError(t, err)

	result, err := svc.Import(ctx, importInput("2026-Q2", q2Date, csvOf(rowA, rowD)))
	require.NoError(t, err)

	assert.Equal(t, 0, result.FindingsNew)
	assert.Equal(t, 0, result.FindingsCarried)
	assert.Equal(t, 0, result.Reopened)
	assert.Equal(t, 0, result.Resolved, "already resolved memberships stay put")

	open, resolved := repo.membershipsIn("2026-Q2")
	assert.Equal(t, 2, open)
	assert.Equal(t, 2, resolved)
	assert.Len(t, repo.findings, 4)
}

// TestService_Import_ReopensResolved verifies a finding resolved by a
// prior run of the same period flips back when it reappears.
func TestService_Import_ReopensResolved(t *testing.T) {
	svc, repo, _ := newTestService(1000)
	ctx := context.Background()

	_, err := svc.Import(ctx, importInput("2026-Q1", q1Date, csvOf(rowA, rowB, rowC)))
	require.NoError(t, err)
	_, err = svc.Import(ctx, importInput("2026-Q2", q2Date, csvOf(rowA, rowD)))
	require.NoError(t, err)

	// B reappears in a corrected Q2 upload.
	result, err := svc.Import(ctx, importInput("2026-Q2", q2Date, csvOf(rowA, rowB, rowD)))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Reopened, "B flips back to unresolved")
	assert.Equal(t, 0, result.FindingsNew)
	assert.Equal(t, 0, result.Resolved, "C already resolved in Q2")

	open, resolved := repo.membershipsIn("2026-Q2")
	assert.Equal(t, 3, open)
	assert.Equal(t, 1, resolved)
}

// TestService_Import_Chunked verifies chunking splits the batch while
// producing the same end state.
func TestService_Import_Chunked(t *testing.T) {
	svc, repo, _ := newTestService(2)

	result, err := svc.Import(context.Background(), importInput("2026-Q1", q1Date, csvOf(rowA, rowB, rowC, rowD)))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 4, result.FindingsNew)
	assert.Len(t, repo.findings, 4)
}

// TestService_Import_FingerprintDedup collapses rows that differ only in
// fields outside the fingerprint.
func TestService_Import_FingerprintDedup(t *testing.T) {
	svc, repo, _ := newTestService(1000)

	// Same finding, different raw output: distinct CSV lines, one
	// fingerprint.
	data := "Host,Name,Risk,Plugin Output\n" +
		"10.0.0.1,Finding A,High,first run output\n" +
		"10.0.0.1,Finding A,High,second run output\n"

	result, err := svc.Import(context.Background(), importInput("2026-Q1", q1Date, data))
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowsParsed)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.FindingsNew)
	assert.Len(t, repo.findings, 1)
}

// TestService_Import_ValidationErrors rejects incomplete requests before
// touching the store.
func TestService_Import_ValidationErrors(t *testing.T) {
	svc, repo, _ := newTestService(1000)

	in := importInput("", q1Date, csvOf(rowA))
	_, err := svc.Import(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "period_label", verr.Field)
	assert.Empty(t, repo.findings)
}

// TestService_Import_ParseErrorWritesNothing verifies a bad upload never
// reaches the store.
func TestService_Import_ParseErrorWritesNothing(t *testing.T) {
	svc, repo, rebuilder := newTestService(1000)

	_, err := svc.Import(context.Background(), importInput("2026-Q1", q1Date, "not,a,scanner\nexport,at,all\n"))

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, repo.findings)
	assert.Empty(t, rebuilder.calls)
}
