package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivateReplacesActiveAccount(t *testing.T) {
	m := NewManager()

	_, ok := m.Active("CRN1")
	assert.False(t, ok)

	m.Activate("CRN1", "acc-1")
	m.Activate("CRN1", "acc-2")
	id, ok := m.Active("CRN1")
	assert.True(t, ok)
	assert.Equal(t, "acc-2", id)

	m.Deactivate("CRN1")
	_, ok = m.Active("CRN1")
	assert.False(t, ok)
}

func TestForget(t *testing.T) {
	m := NewManager()
	m.Activate("CRN1", "acc-1")
	m.RecordFailure("acc-1")

	// Forgetting a different account leaves the session alone.
	m.Forget("CRN1", "acc-other")
	_, ok := m.Active("CRN1")
	assert.True(t, ok)

	m.Forget("CRN1", "acc-1")
	_, ok = m.Active("CRN1")
	assert.False(t, ok)
}

func TestLockoutExpires(t *testing.T) {
	m := NewManager()
	current := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	for i := 0; i < maxFailures-1; i++ {
		assert.False(t, m.RecordFailure("acc-1"))
		assert.False(t, m.IsLocked("acc-1"))
	}
	assert.True(t, m.RecordFailure("acc-1"))
	assert.True(t, m.IsLocked("acc-1"))

	// Still locked just before the window ends.
	current = current.Add(lockoutWindow - time.Second)
	assert.True(t, m.IsLocked("acc-1"))

	current = current.Add(2 * time.Second)
	assert.False(t, m.IsLocked("acc-1"))
}

func TestResetFailuresClearsCounter(t *testing.T) {
	m := NewManager()

	for i := 0; i < maxFailures-1; i++ {
		assert.False(t, m.RecordFailure("acc-1"))
	}
	m.ResetFailures("acc-1")

	// The counter restarts; one more failure is nowhere near the threshold.
	assert.False(t, m.RecordFailure("acc-1"))
	assert.False(t, m.IsLocked("acc-1"))
}
