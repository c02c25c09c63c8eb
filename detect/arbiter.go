package detect

import (
	"sort"

	"phiguard/core"
)

// ruleCandidate pairs a detector candidate with the rule that produced it.
type ruleCandidate struct {
	rule      core.AnomalyRule
	candidate *Candidate
}

// arbitrate selects the single anomaly to emit when several detectors fire
// for one event. Candidates below their rule's minimum confidence are
// discarded; the rest are ordered by severity, then confidence, then rule
// ID for determinism. A single access event produces at most one actionable
// signal because downstream consumers do not deduplicate.
func arbitrate(candidates []ruleCandidate) (ruleCandidate, bool) {
	eligible := candidates[:0:0]
	for _, rc := range candidates {
		if rc.candidate.Confidence >= rc.rule.MinConfidence {
			eligible = append(eligible, rc)
		}
	}
	if len(eligible) == 0 {
		return ruleCandidate{}, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := eligible[i].candidate.Severity.Rank(), eligible[j].candidate.Severity.Rank()
		if si != sj {
			return si > sj
		}
		ci, cj := eligible[i].candidate.Confidence, eligible[j].candidate.Confidence
		if ci != cj {
			return ci > cj
		}
		return eligible[i].rule.ID < eligible[j].rule.ID
	})
	return eligible[0], true
}
