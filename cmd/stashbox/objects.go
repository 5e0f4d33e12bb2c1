package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/config"
)

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "List a user's uploads with view counts",
	Long: `List the objects a user uploaded, newest first, with the number of
recorded downloads of each.

Examples:
  stashbox objects --user u1
  stashbox objects --user u1 --limit 20 --offset 40 --json`,
	Args: cobra.NoArgs,
	RunE: runObjects,
}

var (
	objectsUser   string
	objectsLimit  int
	objectsOffset int
	objectsJSON   bool
)

func init() {
	objectsCmd.Flags().StringVarP(&objectsUser, "user", "u", "", "user whose uploads are listed")
	objectsCmd.Flags().IntVarP(&objectsLimit, "limit", "l", 50, "maximum number of objects to list")
	objectsCmd.Flags().IntVar(&objectsOffset, "offset", 0, "number of objects to skip")
	objectsCmd.Flags().BoolVar(&objectsJSON, "json", false, "output as JSON")
	_ = objectsCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(objectsCmd)
}

func runObjects(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	userID := strings.TrimSpace(objectsUser)
	if userID == "" {
		return errors.New("user is required")
	}
	if objectsLimit < 1 || objectsOffset < 0 {
		return errors.New("limit must be positive and offset must not be negative")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	objects, err := db.Objects().ListByUser(ctx, userID, objectsLimit, objectsOffset)
	if err != nil {
		return err
	}

	if objectsJSON {
		return writeJSON(cmd.OutOrStdout(), objects)
	}
	return formatObjects(cmd.OutOrStdout(), objects)
}
