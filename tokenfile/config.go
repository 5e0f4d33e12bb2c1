package tokenfile

import (
	"time"

	"github.com/sagarc03/stashbox"
)

// Config holds access tokens to seed into the tokens table.
type Config struct {
	Inline []Entry `mapstructure:"inline" yaml:"inline,omitempty"` // Inline entries from config
	File   string  `mapstructure:"file" yaml:"file,omitempty"`     // Path to JSON file of entries
}

// Empty reports whether cfg seeds nothing.
func (c Config) Empty() bool {
	return len(c.Inline) == 0 && c.File == ""
}

// Load merges the inline and file entries of cfg into access tokens.
// File entries take precedence over inline entries with the same value.
func Load(cfg Config, now time.Time) ([]stashbox.AccessToken, error) {
	tokens, err := Resolve(cfg.Inline, "", now)
	if err != nil {
		return nil, err
	}

	if cfg.File == "" {
		return tokens, nil
	}

	entries, err := ReadFile(cfg.File)
	if err != nil {
		return nil, err
	}
	fileTokens, err := Resolve(entries, "", now)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(tokens))
	for i, t := range tokens {
		index[t.Value] = i
	}
	for _, t := range fileTokens {
		if i, ok := index[t.Value]; ok {
			tokens[i] = t
			continue
		}
		tokens = append(tokens, t)
	}

	return tokens, nil
}
