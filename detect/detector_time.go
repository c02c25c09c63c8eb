package detect

import (
	"fmt"

	"phiguard/core"
)

// timeDetector scores accesses by when they happen. The bands are a
// documented heuristic table, not a statistical test:
//
//	weekday inside business hours            -> no candidate
//	weekday outside business hours           -> 0.5 to 0.7, scaled by how
//	                                            many hours outside the bounds
//	weekend                                  -> 0.5 base
//	weekend between 22:00 and 06:00          -> 0.8 base
//
// Weekend confidence is multiplied by the weekend_factor condition and the
// final score is clamped to 0.95.
type timeDetector struct{}

// NewTimeDetector creates the UnusualAccessTime strategy.
func NewTimeDetector() Detector { return timeDetector{} }

func (timeDetector) Type() core.AnomalyType { return core.AnomalyUnusualAccessTime }

func (timeDetector) Detect(rule core.AnomalyRule, event core.AccessEvent, window *EventWindow, baseline *core.UserBaseline) (*Candidate, error) {
	startHour, err := intCondition(rule, "business_hours_start", 8)
	if err != nil {
		return nil, err
	}
	endHour, err := intCondition(rule, "business_hours_end", 18)
	if err != nil {
		return nil, err
	}
	weekendFactor, err := floatCondition(rule, "weekend_factor", 1.0)
	if err != nil {
		return nil, err
	}

	hour := event.Timestamp.Hour()
	weekday := event.Timestamp.Weekday()
	isWeekend := weekday == 0 || weekday == 6 // Sunday, Saturday

	var confidence float64
	var reason string
	switch {
	case isWeekend:
		confidence = 0.5
		reason = "weekend access"
		if hour >= 22 || hour < 6 {
			confidence = 0.8
			reason = "weekend night access"
		}
		confidence *= weekendFactor
	case hour < startHour || hour >= endHour:
		// Hours outside the business window; further out scores higher.
		var distance int
		if hour < startHour {
			distance = startHour - hour
		} else {
			distance = hour - endHour + 1
		}
		confidence = 0.5 + 0.05*float64(distance)
		if confidence > 0.7 {
			confidence = 0.7
		}
		reason = "weekday access outside business hours"
	default:
		return nil, nil
	}

	return &Candidate{
		Severity:   rule.DefaultSeverity,
		Confidence: clampConfidence(confidence),
		Description: fmt.Sprintf("Access by user %s at %02d:00 flagged: %s",
			event.UserID, hour, reason),
		Evidence: map[string]interface{}{
			"hour":                 hour,
			"weekday":              weekday.String(),
			"is_weekend":           isWeekend,
			"business_hours_start": startHour,
			"business_hours_end":   endHour,
		},
	}, nil
}
