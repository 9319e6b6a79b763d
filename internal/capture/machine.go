// ABOUTME: Capture state machine driving the systolic/diastolic/pulse dialogue
// ABOUTME: Validates each reply, advances the stage, and commits completed readings

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pulselog/internal/store"
	"github.com/2389/pulselog/internal/vitals"
)

// ErrNoSession is returned by Input when the user has no active session.
var ErrNoSession = errors.New("no capture session in progress")

// Stage is the position of a session in the dialogue.
type Stage int

const (
	AwaitingSystolic Stage = iota
	AwaitingDiastolic
	AwaitingPulse
	Completed
	Ended
)

func (s Stage) String() string {
	switch s {
	case AwaitingSystolic:
		return "awaiting_systolic"
	case AwaitingDiastolic:
		return "awaiting_diastolic"
	case AwaitingPulse:
		return "awaiting_pulse"
	case Completed:
		return "completed"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Field returns the value a stage is waiting for. ok is false for
// terminal stages.
func (s Stage) Field() (field vitals.Field, ok bool) {
	switch s {
	case AwaitingSystolic:
		return vitals.Systolic, true
	case AwaitingDiastolic:
		return vitals.Diastolic, true
	case AwaitingPulse:
		return vitals.Pulse, true
	}
	return 0, false
}

// Terminal reports whether the stage ends the session.
func (s Stage) Terminal() bool {
	return s == Completed || s == Ended
}

// Session is the in-progress state for one user.
type Session struct {
	ID        string
	UserID    string
	Stage     Stage
	Systolic  int // set once past AwaitingSystolic
	Diastolic int // set once past AwaitingDiastolic
	StartedAt time.Time
	UpdatedAt time.Time
}

// Result describes the outcome of one transition.
type Result struct {
	Session Session // snapshot after the transition

	// Prompt is the field the user should send next. Only meaningful while
	// Session.Stage is not terminal.
	Prompt vitals.Field

	// Rejected is set when the input failed validation; the stage is unchanged.
	Rejected *vitals.ValidationError

	// Record is the committed measurement on Completed.
	Record *store.Measurement

	// Restarted is set by Start when an unfinished session was discarded.
	Restarted bool
}

// Machine owns the session table and commits finished sessions to the store.
type Machine struct {
	sessions *Table
	store    store.MeasurementStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewMachine creates a Machine backed by the given table and store.
func NewMachine(sessions *Table, st store.MeasurementStore, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		sessions: sessions,
		store:    st,
		logger:   logger.With("component", "capture"),
		now:      time.Now,
	}
}

// Start opens a fresh session in AwaitingSystolic. An existing session for
// the user is discarded.
func (m *Machine) Start(userID string) Result {
	now := m.now()
	s := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Stage:     AwaitingSystolic,
		StartedAt: now,
		UpdatedAt: now,
	}
	restarted := m.sessions.Put(s)

	m.logger.Debug("capture started", "user_id", userID, "session_id", s.ID, "restarted", restarted)
	return Result{Session: s, Prompt: vitals.Systolic, Restarted: restarted}
}

// Active reports whether the user has a session in progress.
func (m *Machine) Active(userID string) bool {
	_, ok := m.sessions.Get(userID)
	return ok
}

// Cancel ends the user's session without writing anything. ok is false if
// there was no session to cancel.
func (m *Machine) Cancel(userID string) (Result, bool) {
	s, ok := m.sessions.Delete(userID)
	if !ok {
		return Result{}, false
	}

	s.Stage = Ended
	s.UpdatedAt = m.now()
	m.logger.Debug("capture cancelled", "user_id", userID, "session_id", s.ID)
	return Result{Session: s}, true
}

// Input feeds one user message to the current stage. Validation failures
// are reported in Result.Rejected with a nil error. A storage fault ends
// the session and is returned as a *store.StorageError.
func (m *Machine) Input(ctx context.Context, userID, text string) (Result, error) {
	s, ok := m.sessions.Get(userID)
	if !ok {
		return Result{}, ErrNoSession
	}

	field, ok := s.Stage.Field()
	if !ok {
		// Terminal sessions are never stored; treat a stray one as gone.
		m.sessions.DeleteIf(userID, s.ID)
		return Result{}, ErrNoSession
	}

	s.UpdatedAt = m.now()

	value, err := vitals.Validate(field, text)
	if err != nil {
		var vErr *vitals.ValidationError
		if !errors.As(err, &vErr) {
			return Result{}, fmt.Errorf("validating %s: %w", field, err)
		}
		m.sessions.Update(s)
		m.logger.Debug("input rejected", "user_id", userID, "field", field.String(), "kind", vErr.Kind.String())
		return Result{Session: s, Prompt: field, Rejected: vErr}, nil
	}

	switch s.Stage {
	case AwaitingSystolic:
		s.Systolic = value
		s.Stage = AwaitingDiastolic
	case AwaitingDiastolic:
		s.Diastolic = value
		s.Stage = AwaitingPulse
	case AwaitingPulse:
		return m.commit(ctx, s, value)
	}

	if !m.sessions.Update(s) {
		return Result{}, ErrNoSession
	}
	next, _ := s.Stage.Field()
	m.logger.Debug("input accepted", "user_id", userID, "field", field.String(), "next", next.String())
	return Result{Session: s, Prompt: next}, nil
}

// commit removes the session and appends the finished reading. Removing
// first guarantees a session is written at most once.
func (m *Machine) commit(ctx context.Context, s Session, pulse int) (Result, error) {
	if !m.sessions.DeleteIf(s.UserID, s.ID) {
		return Result{}, ErrNoSession
	}

	rec, err := m.store.Append(ctx, s.UserID, s.Systolic, s.Diastolic, pulse)
	if err != nil {
		s.Stage = Ended
		m.logger.Error("saving measurement failed", "user_id", s.UserID, "session_id", s.ID, "error", err)

		var sErr *store.StorageError
		if !errors.As(err, &sErr) {
			err = &store.StorageError{Op: "append", Err: err}
		}
		return Result{Session: s}, err
	}

	s.Stage = Completed
	m.logger.Info("measurement recorded", "user_id", s.UserID, "session_id", s.ID, "id", rec.ID)
	return Result{Session: s, Record: rec}, nil
}
