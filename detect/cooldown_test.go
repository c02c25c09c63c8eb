package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownTrackerSuppressesWithinInterval(t *testing.T) {
	tracker := NewCooldownTracker(100, time.Hour)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	assert.False(t, tracker.IsOnCooldown("alice", "rule-1", 15*time.Minute))

	tracker.MarkFired("alice", "rule-1")
	assert.True(t, tracker.IsOnCooldown("alice", "rule-1", 15*time.Minute))

	now = now.Add(14 * time.Minute)
	assert.True(t, tracker.IsOnCooldown("alice", "rule-1", 15*time.Minute))

	now = now.Add(time.Minute)
	assert.False(t, tracker.IsOnCooldown("alice", "rule-1", 15*time.Minute))
}

func TestCooldownTrackerKeysAreIndependent(t *testing.T) {
	tracker := NewCooldownTracker(100, time.Hour)
	tracker.MarkFired("alice", "rule-1")

	assert.True(t, tracker.IsOnCooldown("alice", "rule-1", time.Hour))
	assert.False(t, tracker.IsOnCooldown("alice", "rule-2", time.Hour))
	assert.False(t, tracker.IsOnCooldown("bob", "rule-1", time.Hour))
}

func TestCooldownTrackerZeroCooldownNeverSuppresses(t *testing.T) {
	tracker := NewCooldownTracker(100, time.Hour)
	tracker.MarkFired("alice", "rule-1")
	assert.False(t, tracker.IsOnCooldown("alice", "rule-1", 0))
}

func TestCooldownTrackerBoundedEntries(t *testing.T) {
	tracker := NewCooldownTracker(2, time.Hour)
	tracker.MarkFired("u1", "r")
	tracker.MarkFired("u2", "r")
	tracker.MarkFired("u3", "r")

	// Oldest entry evicted by the size bound; newest two retained.
	assert.False(t, tracker.IsOnCooldown("u1", "r", time.Hour))
	assert.True(t, tracker.IsOnCooldown("u2", "r", time.Hour))
	assert.True(t, tracker.IsOnCooldown("u3", "r", time.Hour))
}
