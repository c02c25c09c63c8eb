// Package detect implements the anomaly detection engine: the cached rule
// store, the sliding event window, the per-type detector strategies,
// cooldown suppression, arbitration and the synchronous evaluation path.
package detect

import (
	"errors"
	"fmt"

	"phiguard/core"
)

// ErrMalformedRule marks a rule whose conditions cannot be interpreted by
// its detector. The rule is skipped; evaluation continues for other rules.
var ErrMalformedRule = errors.New("detect: malformed rule conditions")

// Candidate is a scored anomaly produced by a detector for a single event.
// The arbiter discards candidates whose confidence is below the originating
// rule's minimum and emits at most one of the rest.
type Candidate struct {
	Severity    core.Severity
	Confidence  float64
	Description string
	Evidence    map[string]interface{}
}

// Detector is the strategy contract shared by all anomaly types. A detector
// returns nil when the event is unremarkable under the given rule.
// Implementations must be stateless: all inputs arrive as arguments and the
// window and baseline are read-only.
type Detector interface {
	Type() core.AnomalyType
	Detect(rule core.AnomalyRule, event core.AccessEvent, window *EventWindow, baseline *core.UserBaseline) (*Candidate, error)
}

// floatCondition reads a numeric condition, falling back to def when the
// key is absent. A present value of the wrong type makes the rule
// malformed.
func floatCondition(rule core.AnomalyRule, key string, def float64) (float64, error) {
	raw, ok := rule.Conditions[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: rule %s condition %q has non-numeric value %T", ErrMalformedRule, rule.ID, key, raw)
	}
}

// intCondition reads an integer condition with a default, rejecting
// non-numeric and fractional values.
func intCondition(rule core.AnomalyRule, key string, def int) (int, error) {
	f, err := floatCondition(rule, key, float64(def))
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, fmt.Errorf("%w: rule %s condition %q must be an integer", ErrMalformedRule, rule.ID, key)
	}
	return n, nil
}

func clampConfidence(c float64) float64 {
	if c > 0.95 {
		return 0.95
	}
	if c < 0 {
		return 0
	}
	return c
}
