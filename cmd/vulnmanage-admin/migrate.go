package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/K4R7IK/vulnmanage/internal/config"
	"github.com/K4R7IK/vulnmanage/internal/infra/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := postgres.New(&cfg.Database)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			applied, err := postgres.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				cmd.Println("database is up to date")
				return nil
			}
			for _, version := range applied {
				cmd.Println("applied", version)
			}
			return nil
		},
	}
	return cmd
}
