package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"poolshare/internal/platform/config"
	"poolshare/internal/platform/logger"
	"poolshare/internal/platform/postgres"
)

func loadDotEnv(paths ...string) error {
	return config.LoadDotEnv(paths...)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the notification outbox migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.Outbox.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required to migrate")
			}
			log := logger.New(cfg.Server.LogLevel)

			db, err := postgres.Open(cmd.Context(), cfg.Outbox.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(db); err != nil {
				return err
			}
			log.InfoContext(cmd.Context(), "migrations applied")
			return nil
		},
	}
}
