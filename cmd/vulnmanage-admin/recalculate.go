package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/internal/config"
	"github.com/K4R7IK/vulnmanage/internal/infra/postgres"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

func newRecalculateCmd() *cobra.Command {
	var (
		companySlug string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild period summaries from finding state",
		Long: `Rebuild period summaries from reconciled finding state.

Summaries are derived views and safe to regenerate at any time. Without
--company every company is rebuilt; periods within a company are always
processed in observation-date order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(logger.Config{Level: cfg.Log.Level, Format: "text"})

			db, err := postgres.New(&cfg.Database)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			findingRepo := postgres.NewFindingRepository(db, cfg.Import.TxTimeout)
			companyRepo := postgres.NewCompanyRepository(db)
			summaryRepo := postgres.NewSummaryRepository(db)
			service := app.NewSummaryService(findingRepo, summaryRepo, companyRepo, log)

			ctx := cmd.Context()
			if companySlug != "" {
				c, err := companyRepo.GetBySlug(ctx, companySlug)
				if err != nil {
					return err
				}
				rebuilt, err := service.RecalculateCompany(ctx, c.ID(), "recalculate")
				if err != nil {
					return err
				}
				cmd.Printf("rebuilt %d periods for %s\n", rebuilt, companySlug)
				return nil
			}

			if err := service.RecalculateAll(ctx, concurrency, "recalculate"); err != nil {
				return err
			}
			cmd.Println("all companies rebuilt")
			return nil
		},
	}

	cmd.Flags().StringVar(&companySlug, "company", "", "Limit to one company by slug")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Companies rebuilt in parallel")
	return cmd
}
