package main

import (
	"zkloan/internal/infrastructure/db"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed the pool row",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		gdb, err := db.OpenGorm(cfg.MySQLDSN())
		if err != nil {
			return err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := db.Migrate(cmd.Context(), gdb); err != nil {
			return err
		}
		logger.Info("schema migrated", zap.String("db", cfg.MySQLDB))
		return nil
	},
}
