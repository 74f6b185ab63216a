// Package config loads the application configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration. Every field has a usable default so a
// missing file is not an error.
type Config struct {
	// DBPath is the sqlite database location.
	DBPath string `yaml:"db_path"`

	// DefaultCurrency is applied to accounts created without one.
	DefaultCurrency string `yaml:"default_currency"`

	// RulesFile is an optional YAML rule file loaded at startup and
	// merged with the rules stored in the database.
	RulesFile string `yaml:"rules_file"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// Rates is a fixed exchange-rate table keyed by "FROM/TO".
	Rates map[string]string `yaml:"rates"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DBPath:          filepath.Join(home, ".finledger", "ledger.db"),
		DefaultCurrency: "USD",
		LogLevel:        "info",
	}
}

// Load reads the config at path, falling back to defaults for anything
// unset. A missing file returns the defaults without error; a malformed
// file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = Default().DBPath
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
