package detect

import (
	"fmt"
	"time"

	"phiguard/core"
)

// volumeDetector flags users whose access count over a recent window
// exceeds their historical rate. With a baseline, the expected count for
// the window is derived from the user's daily average and the candidate
// fires when actual is at least min_access_count and strictly exceeds
// expected * threshold_factor. Without a baseline the detector falls back
// to a higher fixed threshold (twice min_access_count) at a fixed 0.7
// confidence, so first-seen users are still covered without overstating
// certainty.
type volumeDetector struct{}

// NewVolumeDetector creates the UnusualAccessVolume strategy.
func NewVolumeDetector() Detector { return volumeDetector{} }

func (volumeDetector) Type() core.AnomalyType { return core.AnomalyUnusualAccessVolume }

func (volumeDetector) Detect(rule core.AnomalyRule, event core.AccessEvent, window *EventWindow, baseline *core.UserBaseline) (*Candidate, error) {
	windowMinutes, err := intCondition(rule, "time_window_minutes", 60)
	if err != nil {
		return nil, err
	}
	thresholdFactor, err := floatCondition(rule, "threshold_factor", 2.0)
	if err != nil {
		return nil, err
	}
	minAccessCount, err := intCondition(rule, "min_access_count", 10)
	if err != nil {
		return nil, err
	}

	since := event.Timestamp.Add(-time.Duration(windowMinutes) * time.Minute)
	actual := window.CountSince(event.UserID, since)

	if baseline == nil || baseline.DailyAverageAccessCount <= 0 {
		// No expected reference: require twice the usual floor.
		if actual < 2*minAccessCount {
			return nil, nil
		}
		return &Candidate{
			Severity:   rule.DefaultSeverity,
			Confidence: 0.7,
			Description: fmt.Sprintf("User %s made %d accesses in %d minutes with no established baseline",
				event.UserID, actual, windowMinutes),
			Evidence: map[string]interface{}{
				"actual_count":        actual,
				"time_window_minutes": windowMinutes,
				"baseline_present":    false,
			},
		}, nil
	}

	expected := baseline.DailyAverageAccessCount / 24 * (float64(windowMinutes) / 60)
	if actual < minAccessCount || float64(actual) <= expected*thresholdFactor {
		return nil, nil
	}

	confidence := clampConfidence(0.5 + (float64(actual)/expected)*0.1)
	return &Candidate{
		Severity:   rule.DefaultSeverity,
		Confidence: confidence,
		Description: fmt.Sprintf("User %s made %d accesses in %d minutes, expected about %.1f",
			event.UserID, actual, windowMinutes, expected),
		Evidence: map[string]interface{}{
			"actual_count":        actual,
			"expected_count":      expected,
			"threshold_factor":    thresholdFactor,
			"time_window_minutes": windowMinutes,
			"baseline_present":    true,
		},
	}, nil
}
