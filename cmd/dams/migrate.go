package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/dams/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and validate the metadata tables",
	Long: `Create the users, assets, shared_assets and activity_logs tables (or
their configured names) if they are missing, then validate that every
table has the expected columns. Safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tables := cfg.Database.Tables
	slog.Info("schema ready",
		"users", tables.Users,
		"assets", tables.Assets,
		"shares", tables.Shares,
		"activity", tables.Activity,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
	return nil
}
