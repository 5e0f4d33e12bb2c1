package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/config"
	"github.com/sagarc03/stashbox/tokenfile"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage access tokens",
	Long: `Create, revoke, list and import the access tokens that authorize uploads.

Examples:
  # Issue a token for a user
  stashbox token create --user u1

  # Revoke without a confirmation prompt
  stashbox token revoke 0b6f8a52-3c1e-4a0d-9f77-2d5e8c1a9b34 --yes

  # Load tokens exported from another deployment
  stashbox token import tokens.json`,
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new access token",
	Args:  cobra.NoArgs,
	RunE:  runTokenCreate,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Revoke an access token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List access tokens",
	Args:  cobra.NoArgs,
	RunE:  runTokenList,
}

var tokenImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import access tokens from a JSON file",
	Long: `Import access tokens from a JSON array of objects with "value",
"user_id" and optionally "revoked" fields. Tokens that already exist keep
their usage count; their user and revoked state are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenImport,
}

var (
	tokenUser  string
	tokenYes   bool
	tokenJSON  bool
	listUser   string
	importUser string
)

func init() {
	tokenCreateCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user the token uploads for")
	_ = tokenCreateCmd.MarkFlagRequired("user")

	tokenRevokeCmd.Flags().BoolVarP(&tokenYes, "yes", "y", false, "skip the confirmation prompt")

	tokenListCmd.Flags().StringVarP(&listUser, "user", "u", "", "only list tokens of this user")
	tokenListCmd.Flags().BoolVar(&tokenJSON, "json", false, "output as JSON")

	tokenImportCmd.Flags().StringVarP(&importUser, "user", "u", "", "user for entries that do not name one")

	tokenCmd.AddCommand(tokenCreateCmd, tokenRevokeCmd, tokenListCmd, tokenImportCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	userID := strings.TrimSpace(tokenUser)
	if userID == "" {
		return errors.New("user is required")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tok := stashbox.AccessToken{
		Value:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Tokens().Create(ctx, tok); err != nil {
		return err
	}

	slog.Info("token created", "user_id", tok.UserID)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok.Value)
	return nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	value := strings.ToLower(strings.TrimSpace(args[0]))
	if !stashbox.IsValidToken(value) {
		return fmt.Errorf("invalid token: %s", args[0])
	}

	if !tokenYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Revoke token %s", value),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			return handlePromptError(promptErr)
		}
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Tokens().Revoke(ctx, value); err != nil {
		if errors.Is(err, stashbox.ErrNotFound) {
			return fmt.Errorf("token not found: %s", value)
		}
		return err
	}

	slog.Info("token revoked", "token", value)
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tokens, err := db.Tokens().List(ctx, strings.TrimSpace(listUser))
	if err != nil {
		return err
	}

	if tokenJSON {
		return writeJSON(cmd.OutOrStdout(), tokens)
	}
	return formatTokens(cmd.OutOrStdout(), tokens)
}

func runTokenImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	entries, err := tokenfile.ReadFile(args[0])
	if err != nil {
		return err
	}

	tokens, err := tokenfile.Resolve(entries, strings.TrimSpace(importUser), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if len(tokens) == 0 {
		slog.Info("no tokens to import")
		return nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	affected, err := db.Tokens().Import(ctx, tokens)
	if err != nil {
		return err
	}

	slog.Info("import complete", "tokens", len(tokens), "rows_affected", affected)
	return nil
}

func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
