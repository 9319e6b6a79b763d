// ABOUTME: Mock MeasurementStore implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage faults

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory MeasurementStore for tests. It follows the
// same ordering and isolation rules as SQLiteStore.
type MockStore struct {
	mu       sync.RWMutex
	byUser   map[string][]Measurement // keyed by user ID, insertion order
	nextID   int64
	closed   bool
	failNext error

	// Now supplies insert timestamps; defaults to time.Now.
	Now func() time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		byUser: make(map[string][]Measurement),
		nextID: 1,
		Now:    time.Now,
	}
}

// FailNextAppend makes the next Append return err wrapped in a StorageError.
func (m *MockStore) FailNextAppend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Append stores a new measurement.
func (m *MockStore) Append(ctx context.Context, userID string, systolic, diastolic, pulse int) (*Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, &StorageError{Op: "append", Err: ErrClosed}
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, &StorageError{Op: "append", Err: err}
	}

	recordedAt := m.Now().UTC().Truncate(time.Second)
	rec := Measurement{
		ID:         m.nextID,
		UserID:     userID,
		Systolic:   systolic,
		Diastolic:  diastolic,
		Pulse:      pulse,
		RecordedAt: recordedAt,
		Timestamp:  FormatTimestamp(recordedAt),
	}
	m.nextID++
	m.byUser[userID] = append(m.byUser[userID], rec)

	out := rec
	return &out, nil
}

// Recent returns up to limit measurements for the user, newest first.
func (m *MockStore) Recent(ctx context.Context, userID string, limit int) ([]Measurement, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	all, err := m.All(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// All returns every measurement for the user, newest first.
func (m *MockStore) All(ctx context.Context, userID string) ([]Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, &StorageError{Op: "all", Err: ErrClosed}
	}

	records := m.byUser[userID]
	out := make([]Measurement, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
	}

	// Insertion order already breaks ties by id; a stable sort by time
	// handles a clock that moved backwards.
	sortNewestFirst(out)
	return out, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func sortNewestFirst(ms []Measurement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].RecordedAt.Equal(ms[j].RecordedAt) {
			return ms[i].RecordedAt.After(ms[j].RecordedAt)
		}
		return ms[i].ID > ms[j].ID
	})
}
