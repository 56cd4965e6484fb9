package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/dams/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "dams",
	Short:   "Asset storage service with ownership and sharing",
	Long: `dams stores uploaded assets in a blob store, keeps their metadata in
SQLite or PostgreSQL, and lets owners share assets with other users.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			files = append(files, path)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: DAMS_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: dams.db, env: DAMS_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-type", "", "blob store: filesystem, s3, minio, gcs (default: filesystem, env: DAMS_STORAGE_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "filesystem storage directory (default: ./data, env: DAMS_STORAGE_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
