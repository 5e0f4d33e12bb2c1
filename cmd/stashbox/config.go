package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/stashbox/config"
	"github.com/sagarc03/stashbox/tokenfile"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, config files, environment
variables and flags have been merged. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(redact(*cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// redact masks credentials in a copy of cfg.
func redact(cfg config.Config) config.Config {
	if cfg.Storage.MinIO.SecretKey != "" {
		cfg.Storage.MinIO.SecretKey = "********"
	}

	inline := make([]tokenfile.Entry, len(cfg.Tokens.Inline))
	for i, e := range cfg.Tokens.Inline {
		e.Value = "********"
		inline[i] = e
	}
	cfg.Tokens.Inline = inline
	return cfg
}
