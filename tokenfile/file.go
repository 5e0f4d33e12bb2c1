// Package tokenfile loads access token seeds from configuration and JSON files.
package tokenfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sagarc03/stashbox"
)

// Entry is one access token as written in a config or import file.
type Entry struct {
	Value   string `json:"value" mapstructure:"value" yaml:"value"`
	UserID  string `json:"user_id" mapstructure:"user_id" yaml:"user_id"`
	Revoked bool   `json:"revoked" mapstructure:"revoked" yaml:"revoked"`
}

// ReadFile loads token entries from a JSON file.
// The file should contain an array of entries:
//
//	[
//	  {"value": "0b6f8a52-3c1e-4a0d-9f77-2d5e8c1a9b34", "user_id": "u1"},
//	  {"value": "5d2c7f10-8e44-4b1a-a3c6-71f09d2e4b58", "user_id": "u2", "revoked": true}
//	]
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config or CLI argument
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse tokens file: %w", err)
	}

	return entries, nil
}

// Resolve checks entries and converts them to access tokens created at now.
// Values are lower-cased. Entries without a user take defaultUser; an entry
// that still has none, a malformed value or a repeated value fails the whole
// set.
func Resolve(entries []Entry, defaultUser string, now time.Time) ([]stashbox.AccessToken, error) {
	tokens := make([]stashbox.AccessToken, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for i, e := range entries {
		value := strings.ToLower(strings.TrimSpace(e.Value))
		if !stashbox.IsValidToken(value) {
			return nil, fmt.Errorf("entry %d: token %q: %w", i, e.Value, ErrInvalidEntry)
		}
		if seen[value] {
			return nil, fmt.Errorf("entry %d: duplicate token %s: %w", i, value, ErrInvalidEntry)
		}
		seen[value] = true

		userID := strings.TrimSpace(e.UserID)
		if userID == "" {
			userID = defaultUser
		}
		if userID == "" {
			return nil, fmt.Errorf("entry %d: missing user_id: %w", i, ErrInvalidEntry)
		}

		tokens = append(tokens, stashbox.AccessToken{
			Value:     value,
			UserID:    userID,
			Revoked:   e.Revoked,
			CreatedAt: now,
		})
	}

	return tokens, nil
}
