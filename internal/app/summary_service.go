// Package app contains the application services that coordinate domain
// entities and repositories.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/internal/metrics"
	"github.com/K4R7IK/vulnmanage/pkg/domain/company"
	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/domain/summary"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// topAssetsLimit caps the most-affected-assets list. Ordering among
// assets with equal counts is not deterministic.
const topAssetsLimit = 10

// membershipLookupLimit bounds prior-period membership queries so the
// store never sees an unbounded ID set.
const membershipLookupLimit = 1000

// SummaryService recomputes per-period aggregate statistics from
// reconciled finding state. Summaries are pure derived views: every
// rebuild replaces the stored record wholesale.
type SummaryService struct {
	findings  finding.Repository
	summaries summary.Repository
	companies company.Repository
	logger    *logger.Logger
}

// NewSummaryService creates a summary service.
func NewSummaryService(
	findings finding.Repository,
	summaries summary.Repository,
	companies company.Repository,
	log *logger.Logger,
) *SummaryService {
	return &SummaryService{
		findings:  findings,
		summaries: summaries,
		companies: companies,
		logger:    log.With("service", "summary"),
	}
}

// RebuildPeriod satisfies the import pipeline's rebuild hook.
func (s *SummaryService) RebuildPeriod(ctx context.Context, in ingest.RebuildInput) error {
	companyID, err := shared.IDFromString(in.CompanyID)
	if err != nil {
		return fmt.Errorf("%w: company id: %v", shared.ErrInvalidInput, err)
	}
	_, err = s.Rebuild(ctx, companyID, in.PeriodLabel, in.ObservationDate, in.Trigger)
	return err
}

// Rebuild recomputes and upserts the summary for one (company, period).
func (s *SummaryService) Rebuild(ctx context.Context, companyID shared.ID, periodLabel string, observationDate time.Time, trigger string) (*summary.PeriodSummary, error) {
	start := time.Now()
	if trigger == "" {
		trigger = "recalculate"
	}

	sum, err := s.compute(ctx, companyID, periodLabel, observationDate)
	if err != nil {
		return nil, err
	}
	if err := s.summaries.Upsert(ctx, sum); err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}

	metrics.SummaryRebuildsTotal.WithLabelValues(trigger).Inc()
	metrics.SummaryRebuildDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("summary rebuilt",
		"company_id", companyID,
		"period", periodLabel,
		"total", sum.TotalCount,
		"new", sum.NewCount,
		"resolved", sum.ResolvedCount,
		"trigger", trigger,
	)
	return sum, nil
}

func (s *SummaryService) compute(ctx context.Context, companyID shared.ID, periodLabel string, observationDate time.Time) (*summary.PeriodSummary, error) {
	current, err := s.findings.FindingsInPeriod(ctx, companyID, periodLabel)
	if err != nil {
		return nil, fmt.Errorf("load period findings: %w", err)
	}

	sum := summary.New(companyID, periodLabel, observationDate)
	assetCounts := make(map[string]int)
	openCount := 0

	for _, pf := range current {
		f := pf.Finding
		sum.TotalCount++
		if pf.Membership.Resolved {
			sum.ResolvedCount++
		} else {
			openCount++
		}

		sum.RiskHistogram[string(f.RiskLevel())]++
		os := "unknown"
		if f.AssetOS() != nil && *f.AssetOS() != "" {
			os = *f.AssetOS()
		}
		sum.OSHistogram[os]++
		assetCounts[f.AssetAddress()]++
	}

	sum.UniqueAssets = len(assetCounts)
	sum.TopAssets = topAssets(assetCounts, topAssetsLimit)

	prior, err := s.findings.LatestPeriodBefore(ctx, companyID, observationDate)
	if err != nil {
		return nil, fmt.Errorf("locate prior period: %w", err)
	}

	if prior == nil {
		// First known period: everything open is new, nothing is carried,
		// growth rates stay undefined.
		sum.NewCount = openCount
		return sum, nil
	}

	// An open finding is carried only when it was also open in the prior
	// period; anything else open here (never seen before, or previously
	// resolved and now back) counts as new.
	priorMemberships, err := s.priorMemberships(ctx, companyID, prior.Label, current)
	if err != nil {
		return nil, err
	}
	for _, pf := range current {
		if pf.Membership.Resolved {
			continue
		}
		pm, seen := priorMemberships[pf.Finding.ID().String()]
		if seen && !pm.Resolved {
			sum.UnresolvedCount++
		} else {
			sum.NewCount++
		}
	}

	// A finding open in the prior period but missing from this one
	// entirely still counts as resolved; a completed import leaves this
	// set empty, but the summary must hold against raw store state too.
	priorOpen, err := s.findings.OpenFingerprintsInPeriod(ctx, companyID, prior.Label)
	if err != nil {
		return nil, fmt.Errorf("load prior open findings: %w", err)
	}
	currentIDs := make(map[string]struct{}, len(current))
	for _, pf := range current {
		currentIDs[pf.Finding.ID().String()] = struct{}{}
	}
	for _, id := range priorOpen {
		if _, present := currentIDs[id.String()]; !present {
			sum.ResolvedCount++
		}
	}

	s.applyGrowth(ctx, sum, companyID, prior.Label)
	return sum, nil
}

// priorMemberships fetches this period's findings' memberships in the
// prior period, keyed by finding ID, in bounded batches.
func (s *SummaryService) priorMemberships(ctx context.Context, companyID shared.ID, priorLabel string, current []*finding.PeriodFinding) (map[string]*finding.PeriodMembership, error) {
	ids := make([]shared.ID, 0, len(current))
	for _, pf := range current {
		ids = append(ids, pf.Finding.ID())
	}

	out := make(map[string]*finding.PeriodMembership, len(ids))
	for start := 0; start < len(ids); start += membershipLookupLimit {
		end := min(start+membershipLookupLimit, len(ids))
		batch, err := s.findings.MembershipsForPeriod(ctx, companyID, priorLabel, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("load prior memberships: %w", err)
		}
		for k, v := range batch {
			out[k] = v
		}
	}
	return out, nil
}

// applyGrowth fills period-over-period rates from the prior period's
// stored summary. A missing prior summary or a zero prior value leaves
// the rate nil rather than fabricating one.
func (s *SummaryService) applyGrowth(ctx context.Context, sum *summary.PeriodSummary, companyID shared.ID, priorLabel string) {
	prev, err := s.summaries.Get(ctx, companyID, priorLabel)
	if err != nil {
		if !shared.IsNotFound(err) {
			s.logger.Warn("prior summary lookup failed",
				"company_id", companyID, "period", priorLabel, "error", err)
		}
		return
	}
	sum.AssetGrowthPct = growthPct(sum.UniqueAssets, prev.UniqueAssets)
	sum.FindingGrowthPct = growthPct(sum.TotalCount, prev.TotalCount)
}

func growthPct(current, previous int) *float64 {
	if previous == 0 {
		return nil
	}
	pct := float64(current-previous) / float64(previous) * 100
	return &pct
}

func topAssets(counts map[string]int, limit int) []summary.AssetCount {
	list := make([]summary.AssetCount, 0, len(counts))
	for addr, n := range counts {
		list = append(list, summary.AssetCount{Address: addr, Count: n})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Count > list[j].Count })
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// Get returns the stored summary for one (company, period).
func (s *SummaryService) Get(ctx context.Context, companyID shared.ID, periodLabel string) (*summary.PeriodSummary, error) {
	return s.summaries.Get(ctx, companyID, periodLabel)
}

// ListByCompany returns a company's summaries in period order.
func (s *SummaryService) ListByCompany(ctx context.Context, companyID shared.ID) ([]*summary.PeriodSummary, error) {
	return s.summaries.ListByCompany(ctx, companyID)
}

// RecalculateCompany rebuilds every known period of a company in
// observation-date order, so each rebuild's prior-period lookup sees an
// already refreshed chain.
func (s *SummaryService) RecalculateCompany(ctx context.Context, companyID shared.ID, trigger string) (int, error) {
	periods, err := s.findings.Periods(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("list periods: %w", err)
	}
	for i, p := range periods {
		if _, err := s.Rebuild(ctx, companyID, p.Label, p.ObservationDate, trigger); err != nil {
			return i, fmt.Errorf("rebuild period %q: %w", p.Label, err)
		}
	}
	return len(periods), nil
}

// RecalculateAll rebuilds summaries for every company, at most
// concurrency companies in flight. Periods within one company stay
// strictly sequential.
func (s *SummaryService) RecalculateAll(ctx context.Context, concurrency int, trigger string) error {
	companies, err := s.companies.List(ctx)
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, c := range companies {
		g.Go(func() error {
			if _, err := s.RecalculateCompany(ctx, c.ID(), trigger); err != nil {
				return fmt.Errorf("company %s: %w", c.Slug(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
