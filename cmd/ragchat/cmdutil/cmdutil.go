// Package cmdutil carries the config and storage plumbing shared by
// the ragchat subcommands.
package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finlexvn/ragchat/pkg/config"
	"github.com/finlexvn/ragchat/pkg/history"
)

// Flags are the connection flags every query-issuing subcommand shares.
type Flags struct {
	ConfigPath string
	BaseURL    string
	UserID     string
	Interests  bool
	Debug      bool
}

// Register attaches the shared flags to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "Path to config file (default: ~/.config/ragchat/config.toml)")
	cmd.Flags().StringVar(&f.BaseURL, "base-url", "", "Assistant backend URL (overrides config)")
	cmd.Flags().StringVar(&f.UserID, "user", "", "User identity sent with each query (overrides config)")
	cmd.Flags().BoolVar(&f.Interests, "interests", false, "Bias retrieval toward followed topics")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging")
}

// Load resolves the config file, reads it, and applies flag overrides.
// It also returns the resolved path so callers can watch the file.
func (f *Flags) Load() (config.Config, string, error) {
	path := f.ConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, "", err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}

	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.UserID != "" {
		cfg.UserID = f.UserID
	}
	if f.Interests {
		cfg.UseInterests = true
	}
	if f.Debug {
		cfg.Debug = true
	}
	return cfg, path, nil
}

// OpenStore opens the history store named by the config. An empty path
// yields an in-memory store (nothing persisted).
func OpenStore(cfg config.Config) (history.Store, error) {
	if cfg.HistoryPath == "" {
		return history.NewMemoryStore(), nil
	}
	store, err := history.NewSQLiteStore(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", cfg.HistoryPath, err)
	}
	return store, nil
}
