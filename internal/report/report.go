// ABOUTME: Query/export service over the measurement store
// ABOUTME: Renders the recent-history table and writes temporary CSV export artifacts

package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389/pulselog/internal/store"
)

// DefaultLimit is the number of rows in the history table.
const DefaultLimit = 10

// displayLayout formats times in the history table.
const displayLayout = "02.01.2006 15:04"

// Reader is what the service needs from storage
type Reader interface {
	Recent(ctx context.Context, userID string, limit int) ([]store.Measurement, error)
	All(ctx context.Context, userID string) ([]store.Measurement, error)
}

// Options tunes rendering. Zero values pick defaults.
type Options struct {
	Location   *time.Location // display zone for the history table, default time.Local
	Limit      int            // history rows, default DefaultLimit
	ExportDir  string         // parent of temporary export files, default os.TempDir()
	DateHeader string         // first column title, default "Date/Time"
}

// Service renders measurement history for one user at a time.
type Service struct {
	store  Reader
	opts   Options
	logger *slog.Logger
}

// New creates a report Service.
func New(st Reader, opts Options, logger *slog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.DateHeader == "" {
		opts.DateHeader = "Date/Time"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		opts:   opts,
		logger: logger.With("component", "report"),
	}
}

// Recent renders the latest measurements as a fixed-width table, newest
// first. ok is false when the user has no measurements.
func (s *Service) Recent(ctx context.Context, userID string) (table string, ok bool, err error) {
	measurements, err := s.store.Recent(ctx, userID, s.opts.Limit)
	if err != nil {
		return "", false, fmt.Errorf("loading recent measurements: %w", err)
	}
	if len(measurements) == 0 {
		return "", false, nil
	}

	return s.renderTable(measurements), true, nil
}

func (s *Service) renderTable(measurements []store.Measurement) string {
	var b strings.Builder
	writeLine := func(format string, args ...any) {
		b.WriteString(strings.TrimRight(fmt.Sprintf(format, args...), " "))
		b.WriteByte('\n')
	}

	writeLine("%-20s%-6s%-6s%-6s", s.opts.DateHeader, "SYS", "DIA", "PULS")
	b.WriteString(strings.Repeat("-", 35))
	b.WriteByte('\n')
	for _, m := range measurements {
		when := m.RecordedAt.In(s.opts.Location).Format(displayLayout)
		writeLine("%-20s%-6d%-6d%-6d", when, m.Systolic, m.Diastolic, m.Pulse)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Artifact is a temporary export file awaiting delivery.
type Artifact struct {
	Name string // file name offered to the user
	Path string // location on disk
	Rows int

	dir string
}

// Bytes returns the artifact contents.
func (a *Artifact) Bytes() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// Remove deletes the artifact and its temporary directory.
func (a *Artifact) Remove() error {
	if a == nil || a.dir == "" {
		return nil
	}
	return os.RemoveAll(a.dir)
}

// Export writes every measurement of the user to a temporary CSV file.
// It returns nil, nil when the user has no measurements.
func (s *Service) Export(ctx context.Context, userID string) (*Artifact, error) {
	measurements, err := s.store.All(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading measurements: %w", err)
	}
	if len(measurements) == 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp(s.opts.ExportDir, "pulselog-export-*")
	if err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	a := &Artifact{
		Name: fmt.Sprintf("measurements_%s.csv", Slugify(userID)),
		Rows: len(measurements),
		dir:  dir,
	}
	a.Path = filepath.Join(dir, a.Name)

	if err := writeFile(a.Path, measurements); err != nil {
		a.Remove()
		return nil, err
	}

	s.logger.Debug("export written", "user_id", userID, "rows", a.Rows, "path", a.Path)
	return a, nil
}

func writeFile(path string, measurements []store.Measurement) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	if err := WriteCSV(f, measurements); err != nil {
		f.Close()
		return fmt.Errorf("writing export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	return nil
}

// Slugify converts a user ID to a filesystem-safe string, used for export
// file names and per-account key stores.
// Example: @alice:example.org -> alice_example.org
func Slugify(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '_' {
			result = append(result, c)
		} else if c == ':' {
			result = append(result, '_')
		}
	}
	if len(result) == 0 {
		return "user"
	}
	return string(result)
}
