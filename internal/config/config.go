// ABOUTME: Configuration loading and parsing for pulselog
// ABOUTME: Supports TOML or YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted after the file is parsed.
const (
	EnvAccessToken  = "PULSELOG_MATRIX_TOKEN"
	EnvDatabasePath = "PULSELOG_DB"
)

// Defaults applied when the file leaves a value unset.
const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultHistoryLimit = 10
	DefaultLanguage     = "en"
)

// Config represents the complete pulselog configuration
type Config struct {
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Capture  CaptureConfig  `yaml:"capture" toml:"capture"`
	Bot      BotConfig      `yaml:"bot" toml:"bot"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// MatrixConfig holds the Matrix account the bot runs as
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver" toml:"homeserver"`
	UserID       string   `yaml:"user_id" toml:"user_id"`
	AccessToken  string   `yaml:"access_token" toml:"access_token"`
	RecoveryKey  string   `yaml:"recovery_key" toml:"recovery_key"`
	AllowedUsers []string `yaml:"allowed_users" toml:"allowed_users"`
	AllowedRooms []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// CaptureConfig holds capture session settings
type CaptureConfig struct {
	// IdleTimeout expires an unfinished measurement; zero disables expiry.
	IdleTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	IdleTimeoutRaw string `yaml:"idle_timeout" toml:"idle_timeout"`
}

// BotConfig holds reply and rendering settings
type BotConfig struct {
	Language     string `yaml:"language" toml:"language"` // "en" or "de"
	Timezone     string `yaml:"timezone" toml:"timezone"` // IANA name, "Local" by default
	HistoryLimit int    `yaml:"history_limit" toml:"history_limit"`
	ExportDir    string `yaml:"export_dir" toml:"export_dir"` // parent of temporary export files

	Location *time.Location `yaml:"-" toml:"-"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(string(data), formatOf(path))
}

// LoadDatabasePath reads only database.path from the file at path, with
// PULSELOG_DB taking precedence. The Matrix section is not validated, so
// tools that open the store work without the bot's credentials. The result
// is empty when neither the file nor the environment names a database.
func LoadDatabasePath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := decode(string(data), formatOf(path))
	if err != nil {
		return "", err
	}
	return cfg.Database.Path, nil
}

// Format selects the config file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes config text, then applies environment overrides, defaults
// and validation.
func Parse(text string, format Format) (*Config, error) {
	cfg, err := decode(text, format)
	if err != nil {
		return nil, err
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// decode expands ${VAR} references, unmarshals the text and applies the
// environment fallbacks. Nothing is validated.
func decode(text string, format Format) (*Config, error) {
	expanded := expandEnvVars(text)

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv fills the access token from the environment when the file has
// none and lets PULSELOG_DB override the database path.
func applyEnv(cfg *Config) {
	if cfg.Matrix.AccessToken == "" {
		cfg.Matrix.AccessToken = os.Getenv(EnvAccessToken)
	}
	if p := os.Getenv(EnvDatabasePath); p != "" {
		cfg.Database.Path = p
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Capture.IdleTimeoutRaw == "" {
		cfg.Capture.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = DefaultLanguage
	}
	if cfg.Bot.HistoryLimit == 0 {
		cfg.Bot.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	switch cfg.Bot.Timezone {
	case "", "Local":
		cfg.Bot.Location = time.Local
	default:
		loc, err := time.LoadLocation(cfg.Bot.Timezone)
		if err != nil {
			return fmt.Errorf("loading bot.timezone %q: %w", cfg.Bot.Timezone, err)
		}
		cfg.Bot.Location = loc
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	u, err := url.Parse(c.Matrix.Homeserver)
	if err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("matrix.homeserver must use http or https scheme")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if !strings.HasPrefix(c.Matrix.UserID, "@") || !strings.Contains(c.Matrix.UserID, ":") {
		return fmt.Errorf("matrix.user_id must look like @name:server")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required (or set %s)", EnvAccessToken)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (or set %s)", EnvDatabasePath)
	}

	if c.Capture.IdleTimeout < 0 {
		return fmt.Errorf("capture.idle_timeout must not be negative")
	}

	if c.Bot.Language != "en" && c.Bot.Language != "de" {
		return fmt.Errorf("bot.language must be \"en\" or \"de\", got %q", c.Bot.Language)
	}
	if c.Bot.HistoryLimit < 0 {
		return fmt.Errorf("bot.history_limit must be positive")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Capture.IdleTimeoutRaw != "" {
		cfg.Capture.IdleTimeout, err = time.ParseDuration(cfg.Capture.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Capture.IdleTimeoutRaw, err)
		}
	}

	return nil
}
