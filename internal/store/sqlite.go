// ABOUTME: SQLite implementation of MeasurementStore using modernc.org/sqlite
// ABOUTME: Provides append-only measurement persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// SQLiteStore implements MeasurementStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// writeMu serializes appends so ids and timestamps stay monotonic
	writeMu sync.Mutex
	now     func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the measurements table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS measurements (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			systolic    INTEGER NOT NULL,
			diastolic   INTEGER NOT NULL,
			pulse       INTEGER NOT NULL,
			recorded_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// createIndexes runs after migrations because a legacy table only gains
// the recorded_at column once its columns are renamed.
func (s *SQLiteStore) createIndexes() error {
	_, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_measurements_user_recorded
			ON measurements(user_id, recorded_at);
	`)
	return err
}

// runMigrations upgrades tables written by the earlier bot, which used the
// column names sys, dia and timestamp. Idempotent.
func (s *SQLiteStore) runMigrations() error {
	renames := []struct {
		from string
		to   string
	}{
		{from: "sys", to: "systolic"},
		{from: "dia", to: "diastolic"},
		{from: "timestamp", to: "recorded_at"},
	}

	for _, r := range renames {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('measurements') WHERE name = ?`, r.from).Scan(&exists)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("inspecting column %s: %w", r.from, err)
		}
		stmt := fmt.Sprintf(`ALTER TABLE measurements RENAME COLUMN %s TO %s`, r.from, r.to)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("renaming %s to %s: %w", r.from, r.to, err)
		}
		s.logger.Info("applied migration", "column", r.to, "table", "measurements")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Append inserts a measurement and returns it with its assigned id and
// timestamp. The insert is a single statement, so it is all or nothing.
func (s *SQLiteStore) Append(ctx context.Context, userID string, systolic, diastolic, pulse int) (*Measurement, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recordedAt := s.now().UTC().Truncate(time.Second)
	ts := FormatTimestamp(recordedAt)

	query := `
		INSERT INTO measurements (user_id, systolic, diastolic, pulse, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, userID, systolic, diastolic, pulse, ts).Scan(&id); err != nil {
		return nil, &StorageError{Op: "append", Err: fmt.Errorf("inserting measurement: %w", err)}
	}

	s.logger.Debug("appended measurement", "id", id, "user_id", userID)
	return &Measurement{
		ID:         id,
		UserID:     userID,
		Systolic:   systolic,
		Diastolic:  diastolic,
		Pulse:      pulse,
		RecordedAt: recordedAt,
		Timestamp:  ts,
	}, nil
}

// Recent returns up to limit measurements for the user, newest first.
// A zero limit yields an empty result.
func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Measurement, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if limit == 0 {
		return []Measurement{}, nil
	}

	// CAST keeps the raw text even for legacy DATETIME columns, which the
	// driver would otherwise convert to time.Time.
	query := `
		SELECT id, user_id, systolic, diastolic, pulse, CAST(recorded_at AS TEXT)
		FROM measurements
		WHERE user_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`
	return s.queryMeasurements(ctx, "recent", query, userID, limit)
}

// All returns every measurement for the user, newest first.
func (s *SQLiteStore) All(ctx context.Context, userID string) ([]Measurement, error) {
	query := `
		SELECT id, user_id, systolic, diastolic, pulse, CAST(recorded_at AS TEXT)
		FROM measurements
		WHERE user_id = ?
		ORDER BY recorded_at DESC, id DESC
	`
	return s.queryMeasurements(ctx, "all", query, userID)
}

func (s *SQLiteStore) queryMeasurements(ctx context.Context, op, query string, args ...any) ([]Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: fmt.Errorf("querying measurements: %w", err)}
	}
	defer rows.Close()

	measurements := []Measurement{}
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.ID, &m.UserID, &m.Systolic, &m.Diastolic, &m.Pulse, &m.Timestamp); err != nil {
			return nil, &StorageError{Op: op, Err: fmt.Errorf("scanning measurement row: %w", err)}
		}

		m.RecordedAt, err = ParseTimestamp(m.Timestamp)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}

		measurements = append(measurements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: fmt.Errorf("iterating measurement rows: %w", err)}
	}

	return measurements, nil
}
