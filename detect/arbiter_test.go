package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phiguard/core"
)

func candidateFor(ruleID string, minConfidence float64, severity core.Severity, confidence float64) ruleCandidate {
	return ruleCandidate{
		rule: core.AnomalyRule{
			ID:              ruleID,
			Name:            ruleID,
			Type:            core.AnomalyUnusualAccessVolume,
			DefaultSeverity: severity,
			MinConfidence:   minConfidence,
		},
		candidate: &Candidate{Severity: severity, Confidence: confidence},
	}
}

func TestArbitrateSeverityDominatesConfidence(t *testing.T) {
	winner, ok := arbitrate([]ruleCandidate{
		candidateFor("medium-confident", 0.5, core.SeverityMedium, 0.9),
		candidateFor("high-hesitant", 0.5, core.SeverityHigh, 0.6),
	})
	require.True(t, ok)
	assert.Equal(t, "high-hesitant", winner.rule.ID)
}

func TestArbitrateConfidenceBreaksSeverityTie(t *testing.T) {
	winner, ok := arbitrate([]ruleCandidate{
		candidateFor("less-sure", 0.5, core.SeverityHigh, 0.6),
		candidateFor("more-sure", 0.5, core.SeverityHigh, 0.8),
	})
	require.True(t, ok)
	assert.Equal(t, "more-sure", winner.rule.ID)
}

func TestArbitrateDeterministicFullTie(t *testing.T) {
	winner, ok := arbitrate([]ruleCandidate{
		candidateFor("rule-b", 0.5, core.SeverityHigh, 0.7),
		candidateFor("rule-a", 0.5, core.SeverityHigh, 0.7),
	})
	require.True(t, ok)
	assert.Equal(t, "rule-a", winner.rule.ID)
}

func TestArbitrateDiscardsBelowMinConfidence(t *testing.T) {
	winner, ok := arbitrate([]ruleCandidate{
		candidateFor("sub-threshold-critical", 0.9, core.SeverityCritical, 0.8),
		candidateFor("eligible-low", 0.5, core.SeverityLow, 0.6),
	})
	require.True(t, ok)
	assert.Equal(t, "eligible-low", winner.rule.ID)
}

func TestArbitrateAllDiscarded(t *testing.T) {
	_, ok := arbitrate([]ruleCandidate{
		candidateFor("sub-threshold", 0.9, core.SeverityCritical, 0.8),
	})
	assert.False(t, ok)
}

func TestArbitrateEmpty(t *testing.T) {
	_, ok := arbitrate(nil)
	assert.False(t, ok)
}
