package main

import (
	"davietech/config"
	"davietech/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			logger.Info("schema migrated", "database", cfg.Database.Name)
			return nil
		},
	}
}
