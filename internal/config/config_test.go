// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers TOML and YAML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
[matrix]
homeserver = "https://matrix.example.org"
user_id = "@pulselog:example.org"
access_token = "${TEST_PULSELOG_TOKEN}"
allowed_users = ["@alice:example.org"]

[database]
path = "/tmp/pulselog.db"

[capture]
idle_timeout = "15m"

[bot]
language = "de"
timezone = "Europe/Berlin"
history_limit = 5

[logging]
level = "debug"
format = "json"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "syt_secret")
	t.Setenv(EnvDatabasePath, "")

	cfg, err := Load(writeConfig(t, "config.toml", validTOML))
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.Matrix.Homeserver)
	assert.Equal(t, "@pulselog:example.org", cfg.Matrix.UserID)
	assert.Equal(t, "syt_secret", cfg.Matrix.AccessToken)
	assert.Equal(t, []string{"@alice:example.org"}, cfg.Matrix.AllowedUsers)
	assert.Equal(t, "/tmp/pulselog.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Minute, cfg.Capture.IdleTimeout)
	assert.Equal(t, "de", cfg.Bot.Language)
	assert.Equal(t, 5, cfg.Bot.HistoryLimit)
	assert.Equal(t, "Europe/Berlin", cfg.Bot.Location.String())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv(EnvAccessToken, "from-env")
	t.Setenv(EnvDatabasePath, "")

	content := `
matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@pulselog:example.org"
database:
  path: "./pulselog.db"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)

	// Token falls back to the environment
	assert.Equal(t, "from-env", cfg.Matrix.AccessToken)

	// Defaults
	assert.Equal(t, DefaultIdleTimeout, cfg.Capture.IdleTimeout)
	assert.Equal(t, "en", cfg.Bot.Language)
	assert.Equal(t, DefaultHistoryLimit, cfg.Bot.HistoryLimit)
	assert.Equal(t, time.Local, cfg.Bot.Location)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_DatabaseEnvOverride(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "tok")
	t.Setenv(EnvDatabasePath, "/data/override.db")

	cfg, err := Load(writeConfig(t, "config.toml", validTOML))
	require.NoError(t, err)
	assert.Equal(t, "/data/override.db", cfg.Database.Path)
}

func TestLoad_IdleTimeoutDisabled(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "tok")
	t.Setenv(EnvDatabasePath, "")

	content := strings.Replace(validTOML, `idle_timeout = "15m"`, `idle_timeout = "0s"`, 1)
	cfg, err := Load(writeConfig(t, "config.toml", content))
	require.NoError(t, err)
	assert.Zero(t, cfg.Capture.IdleTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "tok")

	content := strings.Replace(validTOML, `"15m"`, `"soon"`, 1)
	_, err := Load(writeConfig(t, "config.toml", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_timeout")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "tok")

	content := strings.Replace(validTOML, `"Europe/Berlin"`, `"Mars/Olympus"`, 1)
	_, err := Load(writeConfig(t, "config.toml", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot.timezone")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Matrix: MatrixConfig{
				Homeserver:  "https://matrix.example.org",
				UserID:      "@bot:example.org",
				AccessToken: "tok",
			},
			Database: DatabaseConfig{Path: "x.db"},
			Bot:      BotConfig{Language: "en", HistoryLimit: 10},
			Logging:  LoggingConfig{Level: "info", Format: "text"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing homeserver", func(c *Config) { c.Matrix.Homeserver = "" }, "matrix.homeserver is required"},
		{"bad scheme", func(c *Config) { c.Matrix.Homeserver = "ftp://x" }, "http or https"},
		{"missing user", func(c *Config) { c.Matrix.UserID = "" }, "matrix.user_id is required"},
		{"malformed user", func(c *Config) { c.Matrix.UserID = "bot" }, "@name:server"},
		{"missing token", func(c *Config) { c.Matrix.AccessToken = "" }, EnvAccessToken},
		{"missing db", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"negative idle", func(c *Config) { c.Capture.IdleTimeout = -time.Second }, "idle_timeout"},
		{"bad language", func(c *Config) { c.Bot.Language = "fr" }, "bot.language"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PULSELOG_TEST_A", "alpha")

	assert.Equal(t, "x=alpha y=", expandEnvVars("x=${PULSELOG_TEST_A} y=${PULSELOG_TEST_UNSET}"))
}

func TestLoadDatabasePath_NoToken(t *testing.T) {
	t.Setenv("TEST_PULSELOG_TOKEN", "")
	t.Setenv(EnvAccessToken, "")
	t.Setenv(EnvDatabasePath, "")

	path := writeConfig(t, "config.toml", validTOML)

	// The full load rejects the missing token
	_, err := Load(path)
	require.Error(t, err)

	dbPath, err := LoadDatabasePath(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pulselog.db", dbPath)
}

func TestLoadDatabasePath_EnvOverride(t *testing.T) {
	t.Setenv(EnvDatabasePath, "/data/override.db")

	dbPath, err := LoadDatabasePath(writeConfig(t, "config.toml", validTOML))
	require.NoError(t, err)
	assert.Equal(t, "/data/override.db", dbPath)
}

func TestLoadDatabasePath_Errors(t *testing.T) {
	_, err := LoadDatabasePath(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)

	_, err = LoadDatabasePath(writeConfig(t, "config.toml", "[database\npath = "))
	assert.Error(t, err)
}
