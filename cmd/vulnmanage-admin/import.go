package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/K4R7IK/vulnmanage/internal/app"
	"github.com/K4R7IK/vulnmanage/internal/app/ingest"
	"github.com/K4R7IK/vulnmanage/internal/config"
	"github.com/K4R7IK/vulnmanage/internal/infra/postgres"
	"github.com/K4R7IK/vulnmanage/pkg/domain/shared"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

func newImportCmd() *cobra.Command {
	var (
		companySlug string
		periodLabel string
		obsDate     string
		osLabel     string
		encoding    string
		filePath    string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a scanner CSV export for one period",
		Long: `Import a scanner CSV export for one period, bypassing the HTTP API.

The import is idempotent: re-running the same file for the same period
converges to the same state. Useful for backfilling historical quarters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			observationDate, err := time.Parse(time.DateOnly, obsDate)
			if err != nil {
				return fmt.Errorf("invalid --observation-date %q: expected YYYY-MM-DD", obsDate)
			}

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
			locker := postgres.NewImportLocker(db)

			ctx := cmd.Context()
			c, err := companyRepo.GetBySlug(ctx, companySlug)
			if err != nil {
				return err
			}

			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("open %s: %w", filePath, err)
			}
			defer f.Close()

			summaries := app.NewSummaryService(findingRepo, summaryRepo, companyRepo, log)
			service := ingest.NewService(findingRepo, locker, summaries, nil, cfg.Import.ChunkSize, log)

			result, err := service.Import(ctx, ingest.Input{
				OperationID:     shared.NewID().String(),
				CompanyID:       c.ID(),
				PeriodLabel:     periodLabel,
				ObservationDate: observationDate,
				OSLabel:         osLabel,
				Encoding:        encoding,
				Data:            f,
			})
			if err != nil {
				return err
			}

			cmd.Printf("parsed %d rows (%d skipped, %d duplicate, %d informational)\n",
				result.RowsParsed, result.RowsSkipped, result.Duplicates, result.Informational)
			cmd.Printf("new %d, carried %d, reopened %d, resolved %d\n",
				result.FindingsNew, result.FindingsCarried, result.Reopened, result.Resolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&companySlug, "company", "", "Company slug (required)")
	cmd.Flags().StringVar(&periodLabel, "period", "", "Period label, e.g. 2026-Q1 (required)")
	cmd.Flags().StringVar(&obsDate, "observation-date", "", "Scan date as YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&osLabel, "os", "", "Operating system label for the whole batch")
	cmd.Flags().StringVar(&encoding, "encoding", "", "Source character set (utf-8 or latin1)")
	cmd.Flags().StringVar(&filePath, "file", "", "Path to the CSV export (required)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("observation-date")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
