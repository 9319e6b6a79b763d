// ABOUTME: Entry point for the pulselog Matrix bot
// ABOUTME: Wires config, storage, capture sessions and reports to a Matrix account

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/2389/pulselog/internal/bot"
	"github.com/2389/pulselog/internal/capture"
	"github.com/2389/pulselog/internal/config"
	"github.com/2389/pulselog/internal/dedupe"
	"github.com/2389/pulselog/internal/report"
	"github.com/2389/pulselog/internal/store"

	// Timezone names in bot.timezone must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

const banner = `
             _          _
 _ __  _   _| |___  ___| | ___   __ _
| '_ \| | | | / __|/ _ \ |/ _ \ / _' |
| |_) | |_| | \__ \  __/ | (_) | (_| |
| .__/ \__,_|_|___/\___|_|\___/ \__, |
|_|                             |___/
`

const (
	envConfigPath = "PULSELOG_CONFIG"

	// dedupeTTL covers the window in which a homeserver may redeliver an event.
	dedupeTTL     = 10 * time.Minute
	dedupeMaxSize = 10000
)

// getConfigPath returns the path to the config file.
// Priority: PULSELOG_CONFIG env var > XDG_CONFIG_HOME/pulselog/config.toml > ~/.config/pulselog/config.toml
func getConfigPath() string {
	if envPath := os.Getenv(envConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "pulselog", "config.toml")
}

// getDataPath returns the directory holding the database and crypto keys.
// Priority: XDG_DATA_HOME/pulselog > ~/.local/share/pulselog
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "pulselog")
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()
	dataPath := getDataPath()

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("User:       %s\n", cfg.Matrix.UserID)
	green.Print("    ▶ ")
	fmt.Printf("Database:   %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Language:   %s\n", cfg.Bot.Language)
	if cfg.Matrix.RecoveryKey != "" {
		green.Print("    ▶ ")
		fmt.Println("Encryption: enabled")
	}
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sessions := capture.NewTable(cfg.Capture.IdleTimeout, sweepInterval(cfg.Capture.IdleTimeout))
	defer sessions.Close()

	msgs := bot.CatalogFor(cfg.Bot.Language)
	machine := capture.NewMachine(sessions, st, logger)
	reports := report.New(st, report.Options{
		Location:   cfg.Bot.Location,
		Limit:      cfg.Bot.HistoryLimit,
		ExportDir:  cfg.Bot.ExportDir,
		DateHeader: msgs.DateHeader,
	}, logger)

	seen := dedupe.New(dedupeTTL, dedupeMaxSize)
	defer seen.Close()

	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}
	if err := whoami(ctx, client); err != nil {
		return fmt.Errorf("matrix whoami: %w", err)
	}
	logger.Info("authenticated", "user_id", client.UserID.String(), "device_id", client.DeviceID.String())

	var crypto *e2ee
	if cfg.Matrix.RecoveryKey != "" {
		crypto, err = setupCrypto(ctx, client, cfg.Matrix.RecoveryKey, dataPath, logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer crypto.Close()
	} else {
		logger.Info("encryption disabled (no recovery key)")
	}

	channel := newMatrixChannel(client, crypto != nil, logger)
	dispatcher := bot.New(machine, reports, channel, seen, msgs, logger)
	bridge := NewBridge(client, cfg.Matrix, dispatcher.Handle, logger)

	logger.Info("starting bot")
	return bridge.Run(ctx)
}

// whoami fills in the device ID the access token belongs to, which the
// crypto store is keyed by.
func whoami(ctx context.Context, client *mautrix.Client) error {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	resp, err := client.Whoami(ctx)
	if err != nil {
		return err
	}
	if resp.UserID != client.UserID {
		return fmt.Errorf("access token belongs to %s, not %s", resp.UserID, client.UserID)
	}
	client.DeviceID = resp.DeviceID
	return nil
}

// sweepInterval picks how often idle sessions are swept: a tenth of the
// timeout, at least every second and at most every minute.
func sweepInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		return 0
	}
	every := idle / 10
	if every < time.Second {
		every = time.Second
	}
	if every > time.Minute {
		every = time.Minute
	}
	return every
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func runInit() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	configPath := getConfigPath()
	reader := bufio.NewReader(os.Stdin)

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		fmt.Print("    Overwrite? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("    Aborted.")
			return nil
		}
		fmt.Println()
	}

	ask := func(prompt, fallback string) string {
		green.Print("    ▶ ")
		fmt.Print(prompt)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return fallback
		}
		return answer
	}

	homeserver := ask("Matrix homeserver URL [https://matrix.org]: ", "https://matrix.org")
	userID := ask("Bot user ID (e.g. @pulselog:matrix.org): ", "")
	recoveryKey := ask("Matrix recovery key (optional, for E2EE): ", "")
	language := ask("Reply language, en or de [en]: ", config.DefaultLanguage)
	timezone := ask("Timezone for history [Local]: ", "Local")
	dbPath := ask(fmt.Sprintf("Database path [%s]: ", filepath.Join(getDataPath(), "pulselog.db")),
		filepath.Join(getDataPath(), "pulselog.db"))

	text := fmt.Sprintf(`# pulselog configuration
# Generated by pulselog init

[matrix]
homeserver = %q
user_id = %q
# Set %s instead of storing the token here
access_token = "${%s}"
`, homeserver, userID, config.EnvAccessToken, config.EnvAccessToken)

	if recoveryKey != "" {
		text += fmt.Sprintf("recovery_key = %q\n", recoveryKey)
	}

	text += fmt.Sprintf(`# Only these users may talk to the bot (empty = everyone)
allowed_users = []
# Only respond in these rooms (empty = all joined rooms)
allowed_rooms = []

[database]
path = %q

[capture]
# Unfinished measurements are dropped after this long; "0s" keeps them forever
idle_timeout = "30m"

[bot]
language = %q
timezone = %q
history_limit = %d

[logging]
level = "info"
format = "text"
`, dbPath, language, timezone, config.DefaultHistoryLimit)

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(text), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Printf("    1. export %s=<bot access token>\n", config.EnvAccessToken)
	fmt.Println("    2. Run: pulselog")
	fmt.Println()

	return nil
}
