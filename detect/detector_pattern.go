package detect

import (
	"fmt"
	"time"

	"phiguard/core"
)

// patternDetector flags users touching an unusually diverse set of records
// compared to their habitual working set. Over the lookback window it
// collects the distinct data elements the user touched; once at least
// min_unique_records are involved, the share of elements outside the
// baseline's common set is compared against pattern_diversity_threshold.
// Without a baseline common set there is no reference to diverge from and
// the detector stays silent.
type patternDetector struct{}

// NewPatternDetector creates the UnusualAccessPattern strategy.
func NewPatternDetector() Detector { return patternDetector{} }

func (patternDetector) Type() core.AnomalyType { return core.AnomalyUnusualAccessPattern }

func (patternDetector) Detect(rule core.AnomalyRule, event core.AccessEvent, window *EventWindow, baseline *core.UserBaseline) (*Candidate, error) {
	lookbackMinutes, err := intCondition(rule, "lookback_minutes", 60)
	if err != nil {
		return nil, err
	}
	minUniqueRecords, err := intCondition(rule, "min_unique_records", 5)
	if err != nil {
		return nil, err
	}
	diversityThreshold, err := floatCondition(rule, "pattern_diversity_threshold", 0.7)
	if err != nil {
		return nil, err
	}

	since := event.Timestamp.Add(-time.Duration(lookbackMinutes) * time.Minute)
	accessed := window.ElementsSince(event.UserID, since)
	if len(accessed) < minUniqueRecords {
		return nil, nil
	}
	if baseline == nil || len(baseline.CommonDataElements) == 0 {
		return nil, nil
	}

	common := baseline.CommonElementSet()
	novel := 0
	for el := range accessed {
		if _, ok := common[el]; !ok {
			novel++
		}
	}
	unusualRatio := float64(novel) / float64(len(accessed))
	if unusualRatio < diversityThreshold {
		return nil, nil
	}

	return &Candidate{
		Severity:   rule.DefaultSeverity,
		Confidence: clampConfidence(unusualRatio - 0.1),
		Description: fmt.Sprintf("User %s touched %d distinct records in %d minutes, %.0f%% outside their usual set",
			event.UserID, len(accessed), lookbackMinutes, unusualRatio*100),
		Evidence: map[string]interface{}{
			"unique_records":   len(accessed),
			"novel_records":    novel,
			"unusual_ratio":    unusualRatio,
			"lookback_minutes": lookbackMinutes,
		},
	}, nil
}
