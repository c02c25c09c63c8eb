package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"phiguard/core"
	"phiguard/metrics"
	"phiguard/storage"
)

// ruleKeyPrefix namespaces rule documents in the key-value store.
const ruleKeyPrefix = "rule:"

// ErrRuleNotFound is returned by operations targeting an unknown rule.
var ErrRuleNotFound = errors.New("detect: rule not found")

// RuleStore is the durable catalog of detection rules with an in-memory
// active set. Writes go through to the store and replace the active set in
// the same operation, so a successful admin write is immediately visible to
// evaluation and a failed one leaves the last-known-good set untouched.
type RuleStore struct {
	store  storage.KVStore
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	active map[string]core.AnomalyRule
}

// NewRuleStore creates a rule store backed by the given key-value store.
// Call Load before evaluation starts.
func NewRuleStore(store storage.KVStore, logger *zap.SugaredLogger) *RuleStore {
	return &RuleStore{
		store:  store,
		logger: logger,
		active: make(map[string]core.AnomalyRule),
	}
}

// Load reads all rules from durable storage into the active set. On an
// empty result or a storage failure it seeds and serves the built-in
// default rule set: failure to load must never prevent the engine from
// starting.
func (rs *RuleStore) Load(ctx context.Context) error {
	keys, err := rs.store.Keys(ctx, ruleKeyPrefix)
	if err != nil {
		rs.logger.Warnw("Rule storage unreachable, falling back to default rules", "error", err)
		metrics.RuleStoreFallbacks.Inc()
		rs.seedDefaults(ctx)
		return nil
	}

	loaded := make(map[string]core.AnomalyRule, len(keys))
	for _, key := range keys {
		var rule core.AnomalyRule
		if err := rs.store.Get(ctx, key, &rule); err != nil {
			rs.logger.Errorw("Failed to read stored rule, skipping", "key", key, "error", err)
			continue
		}
		if err := rule.Validate(); err != nil {
			rs.logger.Errorw("Stored rule is invalid, skipping", "rule_id", rule.ID, "error", err)
			continue
		}
		loaded[rule.ID] = rule
	}

	if len(loaded) == 0 {
		rs.logger.Info("No stored rules found, seeding default rule set")
		metrics.RuleStoreFallbacks.Inc()
		rs.seedDefaults(ctx)
		return nil
	}

	rs.mu.Lock()
	rs.active = loaded
	rs.mu.Unlock()
	rs.logger.Infow("Rules loaded", "count", len(loaded))
	return nil
}

// seedDefaults installs the built-in rules as the active set and
// best-effort persists them. Seed write failures are logged only: ambient
// detection continues against the in-memory defaults.
func (rs *RuleStore) seedDefaults(ctx context.Context) {
	defaults := DefaultRules()
	active := make(map[string]core.AnomalyRule, len(defaults))
	for _, rule := range defaults {
		active[rule.ID] = rule
		if err := rs.store.Set(ctx, ruleKeyPrefix+rule.ID, rule); err != nil {
			rs.logger.Warnw("Failed to persist default rule", "rule_id", rule.ID, "error", err)
		}
	}
	rs.mu.Lock()
	rs.active = active
	rs.mu.Unlock()
}

// Add validates the rule, writes it through to storage and publishes it to
// the active set. Adding an existing ID overwrites it.
func (rs *RuleStore) Add(ctx context.Context, rule core.AnomalyRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := rs.store.Set(ctx, ruleKeyPrefix+rule.ID, rule); err != nil {
		rs.logger.Errorw("Failed to persist rule, active set unchanged", "rule_id", rule.ID, "error", err)
		return fmt.Errorf("failed to persist rule %s: %w", rule.ID, err)
	}
	rs.swap(func(active map[string]core.AnomalyRule) {
		active[rule.ID] = rule
	})
	return nil
}

// Delete removes the rule from storage and the active set.
func (rs *RuleStore) Delete(ctx context.Context, id string) error {
	if _, ok := rs.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err := rs.store.Delete(ctx, ruleKeyPrefix+id); err != nil {
		rs.logger.Errorw("Failed to delete rule from storage, active set unchanged", "rule_id", id, "error", err)
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	rs.swap(func(active map[string]core.AnomalyRule) {
		delete(active, id)
	})
	return nil
}

// Toggle enables or disables a rule, writing through like Add.
func (rs *RuleStore) Toggle(ctx context.Context, id string, enabled bool) error {
	rule, ok := rs.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	return rs.Add(ctx, rule)
}

// Get returns the active rule with the given ID.
func (rs *RuleStore) Get(id string) (core.AnomalyRule, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	rule, ok := rs.active[id]
	return rule, ok
}

// List returns active rules passing the filter, sorted by ID.
func (rs *RuleStore) List(filter *core.RuleFilters) []core.AnomalyRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	rules := make([]core.AnomalyRule, 0, len(rs.active))
	for _, rule := range rs.active {
		if filter.Matches(&rule) {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// ActiveRules returns a snapshot of the full active set, sorted by ID.
// Disabled rules are included; the engine skips them at evaluation time.
func (rs *RuleStore) ActiveRules() []core.AnomalyRule {
	return rs.List(nil)
}

// swap applies a mutation to a copy of the active map and publishes the
// copy, so concurrent readers never observe a half-applied write.
func (rs *RuleStore) swap(mutate func(map[string]core.AnomalyRule)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	next := make(map[string]core.AnomalyRule, len(rs.active)+1)
	for id, rule := range rs.active {
		next[id] = rule
	}
	mutate(next)
	rs.active = next
}

// DefaultRules returns the built-in rule set used when storage is empty or
// unreachable. Conditions document the reproducible detector thresholds.
func DefaultRules() []core.AnomalyRule {
	now := time.Now().UTC()
	return []core.AnomalyRule{
		{
			ID:              "default-time",
			Name:            "Unusual access time",
			Description:     "Access outside business hours or on weekends",
			Type:            core.AnomalyUnusualAccessTime,
			Enabled:         true,
			DefaultSeverity: core.SeverityMedium,
			Conditions: map[string]interface{}{
				"business_hours_start": 8,
				"business_hours_end":   18,
				"weekend_factor":       1.5,
			},
			MinConfidence:   0.5,
			CooldownMinutes: 30,
			Tags:            []string{"builtin", "time"},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:              "default-volume",
			Name:            "Unusual access volume",
			Description:     "Access rate well above the user's historical average",
			Type:            core.AnomalyUnusualAccessVolume,
			Enabled:         true,
			DefaultSeverity: core.SeverityHigh,
			Conditions: map[string]interface{}{
				"time_window_minutes": 60,
				"threshold_factor":    2.0,
				"min_access_count":    10,
			},
			MinConfidence:   0.6,
			CooldownMinutes: 15,
			Tags:            []string{"builtin", "volume"},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:              "default-pattern",
			Name:            "Unusual access pattern",
			Description:     "Record diversity far outside the user's habitual set",
			Type:            core.AnomalyUnusualAccessPattern,
			Enabled:         true,
			DefaultSeverity: core.SeverityHigh,
			Conditions: map[string]interface{}{
				"lookback_minutes":            60,
				"min_unique_records":          5,
				"pattern_diversity_threshold": 0.7,
			},
			MinConfidence:   0.6,
			CooldownMinutes: 30,
			Tags:            []string{"builtin", "pattern"},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:              "default-authfail",
			Name:            "Multiple failed authentications",
			Description:     "Repeated authentication failures; evaluated once an auth-stream detector is registered",
			Type:            core.AnomalyMultipleFailedAuth,
			Enabled:         true,
			DefaultSeverity: core.SeverityCritical,
			Conditions: map[string]interface{}{
				"max_failures":   5,
				"window_minutes": 15,
			},
			MinConfidence:   0.7,
			CooldownMinutes: 10,
			Tags:            []string{"builtin", "auth"},
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
}
