package main

import (
	"github.com/atlas-desktop/papertrade-engine/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := storage.Open(logger, cfg.Database)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		if err := storage.Migrate(db); err != nil {
			return err
		}
		logger.Info("Database schema is up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
