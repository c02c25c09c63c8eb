package detect

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCooldownEntries bounds how many (user, rule) pairs the tracker
// remembers at once.
const DefaultCooldownEntries = 10000

// DefaultCooldownRetention is how long a last-fired timestamp is retained.
// It only needs to exceed the longest rule cooldown in use.
const DefaultCooldownRetention = 24 * time.Hour

// CooldownTracker suppresses repeated firings of the same rule for the same
// user. It is the single mechanism preventing alert storms from a sustained
// anomalous pattern. Entries live in a size-bounded, TTL-evicting LRU so a
// storm of distinct users cannot grow memory without bound.
type CooldownTracker struct {
	entries *expirable.LRU[string, time.Time]
	now     func() time.Time
}

// NewCooldownTracker creates a tracker remembering at most maxEntries
// (user, rule) pairs, each retained for at most retention.
func NewCooldownTracker(maxEntries int, retention time.Duration) *CooldownTracker {
	if maxEntries <= 0 {
		maxEntries = DefaultCooldownEntries
	}
	if retention <= 0 {
		retention = DefaultCooldownRetention
	}
	return &CooldownTracker{
		entries: expirable.NewLRU[string, time.Time](maxEntries, nil, retention),
		now:     time.Now,
	}
}

// IsOnCooldown reports whether the (user, rule) pair fired within the last
// cooldown interval. A non-positive cooldown never suppresses.
func (c *CooldownTracker) IsOnCooldown(userID, ruleID string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	lastFired, ok := c.entries.Get(cooldownKey(userID, ruleID))
	if !ok {
		return false
	}
	return c.now().Sub(lastFired) < cooldown
}

// MarkFired records that the rule fired for the user now.
func (c *CooldownTracker) MarkFired(userID, ruleID string) {
	c.entries.Add(cooldownKey(userID, ruleID), c.now())
}

func cooldownKey(userID, ruleID string) string {
	return userID + "|" + ruleID
}
