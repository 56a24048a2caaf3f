package ingest

import (
	"context"
	"fmt"

	"github.com/K4R7IK/vulnmanage/pkg/domain/finding"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Reconciler assigns each incoming finding its lifecycle status for the
// current period: new, carried over unresolved, or reappeared. The
// absence pass afterwards marks findings open in the prior period but
// missing from the whole upload as resolved.
//
// Re-running the identical import converges to the same membership state:
// creation is guarded by the fingerprint lookup, and membership writes
// are no-ops once the target state holds.
type Reconciler struct {
	repo      finding.Repository
	chunkSize int
	logger    *logger.Logger
}

// NewReconciler creates a Reconciler. chunkSize bounds every store query
// that filters by a set of fingerprints or IDs.
func NewReconciler(repo finding.Repository, chunkSize int, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:      repo,
		chunkSize: chunkSize,
		logger:    log.With("component", "reconciler"),
	}
}

// reconcileChunk processes one bounded chunk of fingerprinted items
// inside a single transaction. A failure rolls back only this chunk;
// previously committed chunks are retained.
func (r *Reconciler) reconcileChunk(ctx context.Context, in Input, items []item) (chunkOutcome, error) {
	var out chunkOutcome

	err := r.repo.InTransaction(ctx, func(tx finding.Repository) error {
		fingerprints := make([]string, len(items))
		for i, it := range items {
			fingerprints[i] = it.finding.Fingerprint()
		}

		existing, err := tx.FindByFingerprints(ctx, in.CompanyID, fingerprints)
		if err != nil {
			return fmt.Errorf("lookup fingerprints: %w", err)
		}
		byFingerprint := make(map[string]*finding.Finding, len(existing))
		for _, f := range existing {
			byFingerprint[f.Fingerprint()] = f
		}

		// Memberships the existing findings already have in this period.
		existingIDs := make([]shared.ID, 0, len(existing))
		for _, f := range existing {
			existingIDs = append(existingIDs, f.ID())
		}
		memberships, err := tx.MembershipsForPeriod(ctx, in.CompanyID, in.PeriodLabel, existingIDs)
		if err != nil {
			return fmt.Errorf("lookup memberships: %w", err)
		}

		for _, it := range items {
			f, known := byFingerprint[it.finding.Fingerprint()]
			if !known {
				// First observation of this fingerprint for the company.
				if err := tx.Create(ctx, it.finding); err != nil {
					return fmt.Errorf("create finding: %w", err)
				}
				m := finding.NewMembership(it.finding, in.PeriodLabel, in.ObservationDate, false)
				if err := tx.CreateMembership(ctx, m); err != nil {
					return fmt.Errorf("create membership: %w", err)
				}
				out.created++
				continue
			}

			m, has := memberships[f.ID().String()]
			switch {
			case !has:
				// Known finding, first sighting in this period.
				m = finding.NewMembership(f, in.PeriodLabel, in.ObservationDate, false)
				if err := tx.CreateMembership(ctx, m); err != nil {
					return fmt.Errorf("create membership: %w", err)
				}
				out.carried++
			case m.Resolved:
				// Reappeared after being resolved in a prior run of
				// this same period.
				m.MarkUnresolved()
				if err := tx.UpdateMembership(ctx, m); err != nil {
					return fmt.Errorf("reopen membership: %w", err)
				}
				out.reopened++
			default:
				// Already unresolved for this period: no-op.
			}
		}
		return nil
	})
	if err != nil {
		return chunkOutcome{}, err
	}
	return out, nil
}

// absencePass marks findings that were open in the chronologically
// nearest prior period but are absent from the entire current upload as
// resolved in the current period. It must run only after every chunk has
// committed, since it needs the upload's complete fingerprint set.
func (r *Reconciler) absencePass(ctx context.Context, in Input, present map[string]struct{}) (int, error) {
	prior, err := r.repo.LatestPeriodBefore(ctx, in.CompanyID, in.ObservationDate)
	if err != nil {
		return 0, fmt.Errorf("resolve prior period: %w", err)
	}
	if prior == nil {
		// First ever upload for the company: everything is new and
		// nothing can have gone away.
		return 0, nil
	}

	open, err := r.repo.OpenFingerprintsInPeriod(ctx, in.CompanyID, prior.Label)
	if err != nil {
		return 0, fmt.Errorf("lookup open findings in %q: %w", prior.Label, err)
	}

	absent := make([]shared.ID, 0)
	for fp, findingID := range open {
		if _, ok := present[fp]; !ok {
			absent = append(absent, findingID)
		}
	}
	if len(absent) == 0 {
		return 0, nil
	}

	r.logger.Info("absence pass",
		"company_id", in.CompanyID.String(),
		"prior_period", prior.Label,
		"open_in_prior", len(open),
		"absent", len(absent),
	)

	resolved := 0
	for start := 0; start < len(absent); start += r.chunkSize {
		end := min(start+r.chunkSize, len(absent))
		chunk := absent[start:end]

		err := r.repo.InTransaction(ctx, func(tx finding.Repository) error {
			memberships, err := tx.MembershipsForPeriod(ctx, in.CompanyID, in.PeriodLabel, chunk)
			if err != nil {
				return fmt.Errorf("lookup memberships: %w", err)
			}
			for _, findingID := range chunk {
				m, has := memberships[findingID.String()]
				if has {
					if m.Resolved {
						continue // already recorded, re-run convergence
					}
					m.MarkResolved()
					if err := tx.UpdateMembership(ctx, m); err != nil {
						return fmt.Errorf("resolve membership: %w", err)
					}
					resolved++
					continue
				}

				f, err := tx.GetByID(ctx, findingID)
				if err != nil {
					return fmt.Errorf("load finding %s: %w", findingID, err)
				}
				m = finding.NewMembership(f, in.PeriodLabel, in.ObservationDate, true)
				if err := tx.CreateMembership(ctx, m); err != nil {
					return fmt.Errorf("create resolved membership: %w", err)
				}
				resolved++
			}
			return nil
		})
		if err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}
