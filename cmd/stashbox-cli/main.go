package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/client"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	server     string
	basePath   string
	token      string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:           "stashbox-cli",
	Version:       version,
	Short:         "Client for the stashbox file server",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `stashbox-cli uploads files to a stashbox server and downloads them
by link.

Uploads need an access token; downloads do not. Connection settings come
from a profile in ~/.stashbox/client.yaml, then environment variables, then
flags.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.stashbox/client.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: STASHBOX_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", "", "server URL (default: http://localhost:5708, env: STASHBOX_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&basePath, "base-path", "", "route prefix on the server (default: /v1, env: STASHBOX_BASE_PATH)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "access token (env: STASHBOX_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd, downloadCmd, configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// getConfigPath returns the profile file in use.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return client.DefaultConfigPath()
}

// buildConfig merges config from the profile file, env vars, and flags
// (flags take precedence).
func buildConfig() (*client.Config, error) {
	var configs []*client.Config

	if configPath := getConfigPath(); configPath != "" {
		fileCfg, err := client.LoadConfigFile(configPath)
		switch {
		case err == nil:
			name := profile
			if name == "" {
				name = client.ProfileFromEnv()
			}
			p, profileErr := fileCfg.GetProfile(name)
			if profileErr != nil && !(errors.Is(profileErr, client.ErrNoProfiles) && name == "") {
				return nil, profileErr
			}
			configs = append(configs, client.ConfigFromProfile(p))
		case cfgFile != "" || profile != "":
			// Only fail when the user asked for this file or a profile in it
			return nil, err
		}
	}

	configs = append(configs,
		client.ConfigFromEnv(),
		&client.Config{Endpoint: server, BasePath: basePath, Token: token},
	)

	return client.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() client.Formatter {
	return client.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*client.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg)
}

// handlePromptError handles promptui errors.
func handlePromptError(w io.Writer, err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		_, _ = fmt.Fprintln(w, "\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		_, _ = fmt.Fprintln(w, "Cancelled.")
		return nil
	}
	return err
}
