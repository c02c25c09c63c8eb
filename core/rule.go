package core

import (
	"fmt"
	"time"
)

// AnomalyRule is a detection rule. Rules are immutable once loaded into the
// active set; administrative changes replace the whole record through the
// rule store's write path.
//
// Conditions is a free-form key to numeric/string map interpreted by the
// detector matching the rule's Type (business-hour bounds, threshold
// factors and the like).
type AnomalyRule struct {
	ID              string                 `json:"id" yaml:"id"`
	Name            string                 `json:"name" yaml:"name"`
	Description     string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Type            AnomalyType            `json:"anomaly_type" yaml:"anomaly_type"`
	Enabled         bool                   `json:"enabled" yaml:"enabled"`
	DefaultSeverity Severity               `json:"default_severity" yaml:"default_severity"`
	Conditions      map[string]interface{} `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	MinConfidence   float64                `json:"min_confidence" yaml:"min_confidence"`
	CooldownMinutes int                    `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	Tags            []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt       time.Time              `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the structural invariants of a rule. Detector-specific
// condition keys are validated lazily by the detector interpreting them.
func (r *AnomalyRule) Validate() error {
	if r == nil {
		return fmt.Errorf("cannot validate nil rule")
	}
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name cannot be empty", r.ID)
	}
	if r.Type == "" {
		return fmt.Errorf("rule %s: anomaly_type cannot be empty", r.ID)
	}
	if !r.DefaultSeverity.Valid() {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.DefaultSeverity)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("rule %s: min_confidence %v outside [0,1]", r.ID, r.MinConfidence)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("rule %s: cooldown_minutes cannot be negative", r.ID)
	}
	return nil
}

// Cooldown returns the rule's suppression interval as a duration.
func (r *AnomalyRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// RuleFilters narrows a rule listing. Zero-valued fields match everything.
type RuleFilters struct {
	Type    AnomalyType
	Enabled *bool
	Tags    []string
}

// Matches reports whether the rule passes every set filter. Tags filtering
// requires all requested tags to be present on the rule.
func (f *RuleFilters) Matches(r *AnomalyRule) bool {
	if f == nil {
		return true
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Enabled != nil && r.Enabled != *f.Enabled {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, got := range r.Tags {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
