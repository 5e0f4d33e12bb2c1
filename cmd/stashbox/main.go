package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "stashbox",
	Short:   "Token-gated binary object store",
	Long: `Stashbox stores uploaded files behind access tokens and serves them
back by identifier, with range requests and per-download view records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			files = append(files, configFile)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres, mysql (default: sqlite, env: STASHBOX_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: stashbox.db, env: STASHBOX_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-backend", "", "storage backend: filesystem, minio (default: filesystem, env: STASHBOX_STORAGE_BACKEND)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: STASHBOX_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: STASHBOX_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json (env: STASHBOX_LOG_FORMAT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
