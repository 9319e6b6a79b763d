// ABOUTME: Store interface and data types for pulselog persistence
// ABOUTME: Defines the immutable Measurement record and the MeasurementStore contract

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the textual form of recorded_at, identical to SQLite's
// CURRENT_TIMESTAMP output (UTC, second resolution).
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidLimit is returned when a negative limit is passed to Recent.
var ErrInvalidLimit = errors.New("limit must not be negative")

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("store closed")

// Measurement is one persisted blood pressure reading. Records are never
// updated or deleted once written.
type Measurement struct {
	ID         int64
	UserID     string
	Systolic   int
	Diastolic  int
	Pulse      int
	RecordedAt time.Time // parsed from Timestamp, UTC
	Timestamp  string    // recorded_at exactly as stored
}

// MeasurementStore is the append-only, per-user measurement log.
type MeasurementStore interface {
	// Append persists a new record. The store assigns ID and the timestamp.
	Append(ctx context.Context, userID string, systolic, diastolic, pulse int) (*Measurement, error)

	// Recent returns up to limit records for userID, most recent first.
	Recent(ctx context.Context, userID string, limit int) ([]Measurement, error)

	// All returns every record for userID, most recent first.
	All(ctx context.Context, userID string) ([]Measurement, error)

	// Close releases any resources held by the store
	Close() error
}

// StorageError wraps a persistence fault. Callers must treat it as fatal
// for whatever operation triggered it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseTimestamp converts a stored recorded_at value to a UTC time.
// RFC 3339 is accepted as a fallback for rows written by other tools.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, raw, time.UTC)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339, raw); rfcErr == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", raw, err)
}

// FormatTimestamp renders t in the stored recorded_at form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
