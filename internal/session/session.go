// Package session tracks which account each user has unlocked in the current
// process. Nothing here is persisted: a restart clears every session, and
// users re-unlock with their MPIN.
package session

import (
	"sync"
	"time"
)

const (
	maxFailures   = 5
	lockoutWindow = 15 * time.Minute
)

type attemptState struct {
	failures    int
	lockedUntil time.Time
}

// Manager holds at most one active account per CRN plus the per-account
// failed-unlock counters behind the MPIN lockout.
type Manager struct {
	mu       sync.Mutex
	active   map[string]string // crn -> account id
	attempts map[string]*attemptState
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		active:   make(map[string]string),
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

// Activate marks accountID as the unlocked account for crn, replacing any
// previously active account.
func (m *Manager) Activate(crn, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[crn] = accountID
}

// Deactivate clears the active account for crn.
func (m *Manager) Deactivate(crn string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, crn)
}

// Active returns the unlocked account for crn, if any.
func (m *Manager) Active(crn string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[crn]
	return id, ok
}

// Forget drops session state for an account that no longer exists.
func (m *Manager) Forget(crn, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[crn] == accountID {
		delete(m.active, crn)
	}
	delete(m.attempts, accountID)
}

// IsLocked reports whether accountID's unlock path is currently locked out.
func (m *Manager) IsLocked(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.attempts[accountID]
	return ok && m.now().Before(state.lockedUntil)
}

// RecordFailure counts a failed unlock attempt and returns true once the
// account crosses the lockout threshold.
func (m *Manager) RecordFailure(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.attempts[accountID]
	if !ok {
		state = &attemptState{}
		m.attempts[accountID] = state
	}
	state.failures++
	if state.failures >= maxFailures {
		state.lockedUntil = m.now().Add(lockoutWindow)
		state.failures = 0
		return true
	}
	return false
}

// ResetFailures clears the failure counter after a successful unlock.
func (m *Manager) ResetFailures(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, accountID)
}
