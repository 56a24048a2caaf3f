// Package ingest implements the CSV import pipeline: parse, normalize,
// fingerprint, reconcile against prior periods in bounded chunks, then
// refresh the period summary.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/K4R7IK/vulnmanage/internal/metrics"
	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/progress"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Rebuilder is the summary hook the pipeline triggers after reconciling.
type Rebuilder interface {
	RebuildPeriod(ctx context.Context, in RebuildInput) error
}

// RebuildInput identifies the period whose summary must be recomputed.
type RebuildInput struct {
	CompanyID       string
	PeriodLabel     string
	ObservationDate time.Time
	Trigger         string
}

// Archiver stores the raw upload after a successful import. Optional.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) error
}

// Service runs CSV imports end to end.
type Service struct {
	repo       finding.Repository
	locker     finding.ImportLocker
	reconciler *Reconciler
	summaries  Rebuilder
	tracker    progress.Tracker
	archiver   Archiver

	chunkSize int
	logger    *logger.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithArchiver attaches a raw-upload archiver.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// NewService creates the import pipeline service.
func NewService(
	repo finding.Repository,
	locker finding.ImportLocker,
	summaries Rebuilder,
	tracker progress.Tracker,
	chunkSize int,
	log *logger.Logger,
	opts ...Option,
) *Service {
	l := log.With("service", "ingest")
	s := &Service{
		repo:       repo,
		locker:     locker,
		reconciler: NewReconciler(repo, chunkSize, l),
		summaries:  summaries,
		tracker:    tracker,
		chunkSize:  chunkSize,
		logger:     l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import runs one CSV import. Chunks commit independently: a late
// failure retains earlier chunks' writes, and re-running the identical
// import is always safe.
func (s *Service) Import(ctx context.Context, in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		s.fail(ctx, in.OperationID, err)
		return nil, err
	}

	start := time.Now()
	companyID := in.CompanyID.String()
	s.logger.Info("import started",
		"operation_id", in.OperationID,
		"company_id", companyID,
		"period", in.PeriodLabel,
		"observation_date", in.ObservationDate.Format(time.DateOnly),
	)

	result, err := s.run(ctx, in)
	metrics.ImportDuration.WithLabelValues(companyID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(companyID, "error").Inc()
		s.fail(ctx, in.OperationID, err)
		s.logger.Error("import failed",
			"operation_id", in.OperationID,
			"company_id", companyID,
			"period", in.PeriodLabel,
			"error", err,
		)
		return nil, err
	}

	metrics.ImportsTotal.WithLabelValues(companyID, "completed").Inc()
	s.update(ctx, in.OperationID, progress.StateCompleted, 100,
		fmt.Sprintf("import complete: %d new, %d carried, %d resolved",
			result.FindingsNew, result.FindingsCarried, result.Resolved), "")

	s.logger.Info("import complete",
		"operation_id", in.OperationID,
		"company_id", companyID,
		"period", in.PeriodLabel,
		"rows_parsed", result.RowsParsed,
		"new", result.FindingsNew,
		"carried", result.FindingsCarried,
		"reopened", result.Reopened,
		"resolved", result.Resolved,
		"duration", time.Since(start),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, in Input) (*Result, error) {
	// Parsing happens before any store access; a parse failure writes
	// nothing.
	s.update(ctx, in.OperationID, progress.StateRunning, 5, "parsing upload", "")

	raw, err := io.ReadAll(in.Data)
	if err != nil {
		return nil, &ParseError{Reason: "cannot read upload", Err: err}
	}

	rows, stats, err := ParseCSV(bytes.NewReader(raw), in.Encoding)
	if err != nil {
		return nil, err
	}
	recordParseStats(stats)

	items, err := s.buildItems(in, rows)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RowsParsed:    stats.Kept,
		RowsSkipped:   stats.Skipped,
		Duplicates:    stats.Duplicates,
		Informational: stats.Informational,
	}

	// Imports for the same company+period are serialized so two racing
	// absence passes cannot disagree about what is missing.
	err = s.locker.WithImportLock(ctx, in.CompanyID, in.PeriodLabel, func(ctx context.Context) error {
		return s.reconcile(ctx, in, items, result)
	})
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		key := fmt.Sprintf("%s/%s/%s.csv", in.CompanyID, in.PeriodLabel, in.OperationID)
		if err := s.archiver.Archive(ctx, key, raw); err != nil {
			// Archival is best effort; the reconciled state is already
			// committed.
			s.logger.Warn("upload archive failed", "key", key, "error", err)
		}
	}
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, in Input, items []item, result *Result) error {
	companyID := in.CompanyID.String()

	// Fingerprint dedup within the batch (distinct from the literal
	// full-row dedup done by the parser).
	unique := make([]item, 0, len(items))
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		fp := it.finding.Fingerprint()
		if _, dup := present[fp]; dup {
			result.Duplicates++
			continue
		}
		present[fp] = struct{}{}
		unique = append(unique, it)
	}

	chunks := partition(unique, s.chunkSize)
	result.Chunks = len(chunks)

	for i, chunk := range chunks {
		chunkStart := time.Now()
		out, err := s.reconciler.reconcileChunk(ctx, in, chunk)
		metrics.ImportChunkDuration.Observe(time.Since(chunkStart).Seconds())
		if err != nil {
			return &ChunkError{Chunk: i + 1, Err: err}
		}

		result.FindingsNew += out.created
		result.FindingsCarried += out.carried
		result.Reopened += out.reopened

		pct := 10 + (70*(i+1))/len(chunks)
		s.update(ctx, in.OperationID, progress.StateRunning, pct,
			fmt.Sprintf("reconciled chunk %d/%d", i+1, len(chunks)), "")
	}
	metrics.FindingsCreated.WithLabelValues(companyID).Add(float64(result.FindingsNew))
	metrics.FindingsReopened.WithLabelValues(companyID).Add(float64(result.Reopened))

	// The absence pass needs the complete fingerprint set, so it runs
	// strictly after the last chunk commits.
	s.update(ctx, in.OperationID, progress.StateRunning, 90, "resolving absent findings", "")
	resolved, err := s.reconciler.absencePass(ctx, in, present)
	if err != nil {
		return fmt.Errorf("absence pass: %w", err)
	}
	result.Resolved = resolved
	metrics.FindingsResolved.WithLabelValues(companyID).Add(float64(resolved))

	s.update(ctx, in.OperationID, progress.StateRunning, 95, "rebuilding period summary", "")
	err = s.summaries.RebuildPeriod(ctx, RebuildInput{
		CompanyID:       companyID,
		PeriodLabel:     in.PeriodLabel,
		ObservationDate: in.ObservationDate,
		Trigger:         "import",
	})
	if err != nil {
		return fmt.Errorf("rebuild summary: %w", err)
	}
	return nil
}

// buildItems constructs the finding entities, so every row carries the
// exact fingerprint that would be persisted.
func (s *Service) buildItems(in Input, rows []Row) ([]item, error) {
	items := make([]item, 0, len(rows))
	for i, row := range rows {
		f, err := finding.NewFinding(in.CompanyID, row.Host, row.Title, row.Risk, in.ObservationDate)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if in.OSLabel != "" {
			os := in.OSLabel
			f.SetAssetOS(&os)
		}
		var protocol *string
		if row.Protocol != "" {
			protocol = &row.Protocol
		}
		f.SetNetwork(row.Port, protocol)
		f.SetIdentifiers(row.Identifiers)
		f.SetTexts(row.Description, row.Synopsis, row.Solution)
		f.SetScore(row.Score)
		f.SetReferences(row.References)
		if row.RawOutput != "" {
			raw := row.RawOutput
			f.SetRawOutput(&raw)
		}
		items = append(items, item{row: row, finding: f})
	}
	return items, nil
}

func validateInput(in Input) error {
	switch {
	case in.OperationID == "":
		return &ValidationError{Field: "operation_id", Reason: "is required"}
	case in.CompanyID.IsZero():
		return &ValidationError{Field: "company_id", Reason: "is required"}
	case in.PeriodLabel == "":
		return &ValidationError{Field: "period_label", Reason: "is required"}
	case in.ObservationDate.IsZero():
		return &ValidationError{Field: "observation_date", Reason: "is required"}
	case in.Data == nil:
		return &ValidationError{Field: "data", Reason: "is required"}
	}
	return nil
}

// update writes a progress milestone; failures are logged, never fatal.
func (s *Service) update(ctx context.Context, opID string, state progress.State, pct int, msg, errMsg string) {
	if s.tracker == nil || opID == "" {
		return
	}
	err := s.tracker.Update(ctx, progress.Status{
		OperationID: opID,
		State:       state,
		Progress:    pct,
		Message:     msg,
		Error:       errMsg,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("progress update failed", "operation_id", opID, "error", err)
	}
}

func (s *Service) fail(ctx context.Context, opID string, cause error) {
	s.update(ctx, opID, progress.StateError, 100, "import failed", cause.Error())
}

func recordParseStats(stats ParseStats) {
	metrics.ImportRowsParsed.WithLabelValues("kept").Add(float64(stats.Kept))
	metrics.ImportRowsParsed.WithLabelValues("skipped").Add(float64(stats.Skipped))
	metrics.ImportRowsParsed.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	metrics.ImportRowsParsed.WithLabelValues("informational").Add(float64(stats.Informational))
}

// partition splits items into chunks of at most size elements.
func partition(items []item, size int) [][]item {
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
