// Package config holds process settings and the schema/template snapshot
// the sync pipeline reads at the start of each cycle.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Settings are read from the environment; CLI flags override them.
type Settings struct {
	DBPath    string   `env:"WORLDSTATE_DB"`
	Schema    string   `env:"WORLDSTATE_SCHEMA"`
	Templates string   `env:"WORLDSTATE_TEMPLATES"`
	LogLevel  string   `env:"WORLDSTATE_LOG_LEVEL" envDefault:"info"`
	NameKeys  []string `env:"WORLDSTATE_NAME_KEYS" envSeparator:","`
}

// ParseEnv populates target from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings parses Settings and fills in the default database path.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	if s.DBPath == "" {
		s.DBPath = DefaultDBPath()
	}
	return s, nil
}

// DefaultDBPath is ~/.worldstate/state.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".worldstate", "state.db")
}
