package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/client"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files and print their links",
	Long: `Upload one or more files. Each file is stored under a new id and gets
a public link; the original name is kept only for its extension.

Examples:
  stashbox-cli upload ./photo.png
  stashbox-cli upload -q *.jpg > links.txt
  stashbox-cli upload --profile prod --json report.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	results, err := c.Upload(cmd.Context(), client.UploadOptions{Paths: args})
	if err != nil {
		return err
	}

	if err := getFormatter().FormatUpload(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if client.HasUploadErrors(results) {
		return errors.New("some uploads failed")
	}
	return nil
}
