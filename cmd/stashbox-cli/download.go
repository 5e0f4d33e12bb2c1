package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/client"
)

var (
	downloadOutput string
	downloadStdout bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <link-or-name> [local-path]",
	Short: "Download a file",
	Long: `Download a file by its link or object name. No token is needed.

Examples:
  stashbox-cli download https://files.example.com/v1/4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.png
  stashbox-cli download 4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.png ./photo.png
  stashbox-cli download --stdout 4a1c2f0e-9b7d-4e3a-8c21-5f6d7e8a9b0c.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
}

func runDownload(cmd *cobra.Command, args []string) error {
	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	c, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := c.Download(cmd.Context(), client.DownloadOptions{
		Name:      args[0],
		LocalPath: localPath,
	})
	if err != nil {
		return err
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil {
			return err
		}
		// Metadata goes to stderr so stdout stays the file content
		if jsonOutput {
			return getFormatter().FormatDownload(cmd.ErrOrStderr(), result)
		}
		return nil
	}

	return getFormatter().FormatDownload(cmd.OutOrStdout(), result)
}
