package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the directory holding the per-tenant database files.
func DataDir() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.Home, nil
}

// EnsureDataDir returns DataDir after creating it if it does not exist.
func EnsureDataDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return d, nil
}

func defaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	// Use a dot-directory in the user's home on all platforms
	return filepath.Join(home, ".lunabot", "databases"), nil
}
