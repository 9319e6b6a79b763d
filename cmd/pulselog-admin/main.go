// ABOUTME: Operator CLI for inspecting the pulselog measurement database
// ABOUTME: Lists recent measurements and exports a user's history as CSV

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/pulselog/internal/config"
	"github.com/2389/pulselog/internal/report"
	"github.com/2389/pulselog/internal/store"
)

const banner = `
             _          _                          _           _
 _ __  _   _| |___  ___| | ___   __ _        __ _ __| |_ __ ___ (_)_ __
| '_ \| | | | / __|/ _ \ |/ _ \ / _' |_____ / _' / _' | '_ ' _ \| | '_ \
| |_) | |_| | \__ \  __/ | (_) | (_| |_____| (_| \__,_| | | | | | | | | |
| .__/ \__,_|_|___/\___|_|\___/ \__, |      \__,_|    |_| |_| |_|_|_| |_|
|_|                             |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	dbPath, err := databasePath()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	switch cmd {
	case "recent":
		err = cmdRecent(ctx, os.Stdout, st, args)
	case "export":
		err = cmdExport(ctx, os.Stdout, st, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: pulselog-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  recent <user-id> [n]       Show the n newest measurements (default 10)")
	fmt.Println("  export <user-id> [file]    Write all measurements as CSV (stdout if no file)")
	fmt.Println("  help                       Show this message")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PULSELOG_DB                Database path (overrides the config file)")
	fmt.Println("  PULSELOG_CONFIG            Config file to read database.path from")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  pulselog-admin recent @alice:example.org 20")
	fmt.Println("  pulselog-admin export @alice:example.org alice.csv")
	fmt.Println()
}

// databasePath resolves the database the bot writes to.
// Priority: PULSELOG_DB > database.path in the config file > XDG data dir.
// A config file that exists but cannot be read is an error, so a typo never
// silently opens an empty database.
func databasePath() (string, error) {
	if p := os.Getenv(config.EnvDatabasePath); p != "" {
		return p, nil
	}

	cfgPath := configPath()
	if _, err := os.Stat(cfgPath); err == nil {
		p, err := config.LoadDatabasePath(cfgPath)
		if err != nil {
			return "", fmt.Errorf("loading config from %s: %w", cfgPath, err)
		}
		if p != "" {
			return p, nil
		}
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "pulselog.db", nil // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "pulselog", "pulselog.db"), nil
}

func configPath() string {
	if envPath := os.Getenv("PULSELOG_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pulselog", "config.toml")
}

// cmdRecent prints the newest measurements for a user
func cmdRecent(ctx context.Context, out io.Writer, st store.MeasurementStore, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pulselog-admin recent <user-id> [n]")
	}
	userID := args[0]
	limit := report.DefaultLimit
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q: must be a positive integer", args[1])
		}
		limit = n
	}

	measurements, err := st.Recent(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("reading measurements: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(out)
	cyan.Fprintf(out, "  Measurements for %s\n", userID)
	cyan.Fprintln(out, "  ----------------")

	if len(measurements) == 0 {
		fmt.Fprintln(out, "  (no measurements)")
		fmt.Fprintln(out)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tSYS\tDIA\tPULS\tRECORDED (UTC)")
	fmt.Fprintln(w, "  --\t---\t---\t----\t--------------")
	for _, m := range measurements {
		fmt.Fprintf(w, "  %d\t%d\t%d\t%d\t%s\n", m.ID, m.Systolic, m.Diastolic, m.Pulse, m.Timestamp)
	}
	w.Flush()
	fmt.Fprintln(out)

	return nil
}

// cmdExport writes a user's full history as CSV to a file or stdout
func cmdExport(ctx context.Context, out io.Writer, st store.MeasurementStore, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pulselog-admin export <user-id> [file]")
	}
	userID := args[0]

	measurements, err := st.All(ctx, userID)
	if err != nil {
		return fmt.Errorf("reading measurements: %w", err)
	}
	if len(measurements) == 0 {
		return fmt.Errorf("no measurements for %s", userID)
	}

	if len(args) < 2 || args[1] == "-" {
		return report.WriteCSV(out, measurements)
	}

	path := args[1]
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteCSV(f, measurements); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ Exported %d measurements to %s\n", len(measurements), path)
	return nil
}
