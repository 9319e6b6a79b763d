// ABOUTME: Thread-safe per-user table of in-progress capture sessions
// ABOUTME: Expires sessions that sit idle longer than a TTL

package capture

import (
	"sync"
	"time"
)

// Table holds at most one Session per user. A zero TTL disables expiry.
type Table struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
	closed   bool
}

// NewTable creates a session table. When ttl is positive a background
// goroutine sweeps idle sessions every sweepEvery; call Close to stop it.
func NewTable(ttl, sweepEvery time.Duration) *Table {
	t := &Table{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if ttl > 0 && sweepEvery > 0 {
		go t.sweep(sweepEvery)
	}
	return t
}

// Put stores s, replacing any session the user already had. It reports
// whether a live session was replaced.
func (t *Table) Put(s Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, replaced := t.liveLocked(s.UserID)
	t.sessions[s.UserID] = s
	return replaced
}

// Get returns a copy of the user's session if one exists and has not expired.
func (t *Table) Get(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.liveLocked(userID)
}

// Update stores s only if the user's current session is the same session
// (matching ID). A session cancelled or restarted in the meantime is not
// resurrected.
func (t *Table) Update(s Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.liveLocked(s.UserID)
	if !ok || cur.ID != s.ID {
		return false
	}
	t.sessions[s.UserID] = s
	return true
}

// Delete removes the user's session and reports whether a live one existed.
func (t *Table) Delete(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.liveLocked(userID)
	delete(t.sessions, userID)
	return s, ok
}

// DeleteIf removes the user's session only if its ID is sessionID.
func (t *Table) DeleteIf(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.liveLocked(userID)
	if !ok || cur.ID != sessionID {
		return false
	}
	delete(t.sessions, userID)
	return true
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// liveLocked returns the session for userID, dropping it if expired.
// Must be called with mu held.
func (t *Table) liveLocked(userID string) (Session, bool) {
	s, ok := t.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if t.expired(s) {
		delete(t.sessions, userID)
		return Session{}, false
	}
	return s, true
}

func (t *Table) expired(s Session) bool {
	return t.ttl > 0 && t.now().Sub(s.UpdatedAt) > t.ttl
}

func (t *Table) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.removeExpired()
		case <-t.done:
			return
		}
	}
}

// removeExpired drops all sessions idle past the TTL.
func (t *Table) removeExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for userID, s := range t.sessions {
		if t.expired(s) {
			delete(t.sessions, userID)
			removed++
		}
	}
	return removed
}

// Close stops the background sweep. It is safe to call multiple times.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		close(t.done)
		t.closed = true
	}
}
