// Package scheduler runs the periodic summary refresh.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/internal/config"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// recalcConcurrency bounds how many companies rebuild in parallel
// during a scheduled refresh.
const recalcConcurrency = 4

// Scheduler re-runs the company-wide summary recalculation on a cron
// schedule, repairing any summaries that drifted from finding state.
type Scheduler struct {
	cron      *cron.Cron
	summaries *app.SummaryService
	logger    *logger.Logger
}

// New creates a scheduler from config. Returns an error for an invalid
// cron expression.
func New(cfg *config.SchedulerConfig, summaries *app.SummaryService, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		summaries: summaries,
		logger:    log.With("component", "scheduler"),
	}

	_, err := s.cron.AddFunc(cfg.RecalcCron, s.recalculate)
	if err != nil {
		return nil, fmt.Errorf("invalid recalc cron %q: %w", cfg.RecalcCron, err)
	}
	return s, nil
}

// Start begins the schedule. Non-blocking.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) recalculate() {
	ctx := context.Background()
	if err := s.summaries.RecalculateAll(ctx, recalcConcurrency, "scheduled"); err != nil {
		s.logger.Error("scheduled summary recalculation failed", "error", err)
		return
	}
	s.logger.Info("scheduled summary recalculation complete")
}
