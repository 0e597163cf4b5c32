package main

import (
	"github.com/spf13/cobra"

	"collector/internal/repository"
	"collector/pkg/utils"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			version, err := repository.Migrate(cfg.Database.Driver, cfg.Database.DSN())
			if err != nil {
				return err
			}
			log.Info("schema is up to date", utils.Int("version", int(version)))
			return nil
		},
	}
}
