package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{"WORLDSTATE_DB", "WORLDSTATE_LOG_LEVEL", "WORLDSTATE_NAME_KEYS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, filepath.Join(home, ".worldstate", "state.db"), s.DBPath)
	assert.Empty(t, s.NameKeys)
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("WORLDSTATE_DB", "/tmp/ws.db")
	t.Setenv("WORLDSTATE_SCHEMA", "/etc/ws/schema")
	t.Setenv("WORLDSTATE_TEMPLATES", "/etc/ws/templates.yaml")
	t.Setenv("WORLDSTATE_LOG_LEVEL", "debug")
	t.Setenv("WORLDSTATE_NAME_KEYS", "Name,称呼")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, Settings{
		DBPath:    "/tmp/ws.db",
		Schema:    "/etc/ws/schema",
		Templates: "/etc/ws/templates.yaml",
		LogLevel:  "debug",
		NameKeys:  []string{"Name", "称呼"},
	}, s)
}

func TestParseEnvWrapsErrors(t *testing.T) {
	var target struct {
		Port int `env:"WORLDSTATE_TEST_PORT"`
	}
	t.Setenv("WORLDSTATE_TEST_PORT", "not-a-number")
	err := ParseEnv(&target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
