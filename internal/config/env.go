// Package config resolves lunabot settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment variable names.
const (
	EnvHome      = "LUNABOT_HOME"
	EnvLogLevel  = "LUNABOT_LOG_LEVEL"
	EnvLogFormat = "LUNABOT_LOG_FORMAT"
)

// Config holds process-wide settings.
type Config struct {
	// Home is the root directory for tenant database files.
	Home      string `env:"LUNABOT_HOME"`
	LogLevel  string `env:"LUNABOT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LUNABOT_LOG_FORMAT" envDefault:"console"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config and fills in the default data root.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Home == "" {
		d, err := defaultHome()
		if err != nil {
			return Config{}, err
		}
		cfg.Home = d
	}
	return cfg, nil
}
