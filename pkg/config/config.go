// Package config loads the ragchat configuration from a TOML file and
// optionally watches it for changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the ragchat configuration. Zero values fall back to
// defaults; command-line flags override file values.
type Config struct {
	// BaseURL of the assistant backend.
	BaseURL string `toml:"base_url"`

	// UserID identifies the caller to the backend. Required for any
	// query; an empty value fails before any network call.
	UserID string `toml:"user_id"`

	// UseInterests biases retrieval toward the user's followed topics.
	UseInterests bool `toml:"use_interests"`

	// HistoryPath is the SQLite database for completed turns. Empty
	// means the default path next to the config file.
	HistoryPath string `toml:"history_path"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL: "http://localhost:6080",
	}
}

// DefaultPath returns the per-user config file location
// (~/.config/ragchat/config.toml on Linux).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "ragchat", "config.toml"), nil
}

// Load reads the config file at path over the defaults. A missing file
// is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(filepath.Dir(path), "history.db")
	}
	return cfg, nil
}
