package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phiguard/core"
)

func timeRule(conditions map[string]interface{}) core.AnomalyRule {
	return core.AnomalyRule{
		ID:              "time-rule",
		Name:            "Unusual access time",
		Type:            core.AnomalyUnusualAccessTime,
		Enabled:         true,
		DefaultSeverity: core.SeverityMedium,
		Conditions:      conditions,
		MinConfidence:   0.5,
	}
}

// 2024-01-02 is a Tuesday, 2024-01-06 a Saturday.
func weekdayAt(hour int) core.AccessEvent {
	return accessAt(time.Date(2024, 1, 2, hour, 0, 0, 0, time.UTC), "alice")
}

func weekendAt(hour int) core.AccessEvent {
	return accessAt(time.Date(2024, 1, 6, hour, 0, 0, 0, time.UTC), "alice")
}

func TestTimeDetectorBusinessHoursQuiet(t *testing.T) {
	d := NewTimeDetector()
	cand, err := d.Detect(timeRule(nil), weekdayAt(10), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestTimeDetectorWeekendNightBeatsWeekdayMorning(t *testing.T) {
	d := NewTimeDetector()
	rule := timeRule(nil)

	saturdayNight, err := d.Detect(rule, weekendAt(3), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, saturdayNight)
	assert.InDelta(t, 0.8, saturdayNight.Confidence, 1e-9)

	tuesdayMorning, err := d.Detect(rule, weekdayAt(10), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, tuesdayMorning, "Tuesday 10:00 must score strictly lower than Saturday 03:00")
}

func TestTimeDetectorWeekendBase(t *testing.T) {
	d := NewTimeDetector()

	cand, err := d.Detect(timeRule(nil), weekendAt(14), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.5, cand.Confidence, 1e-9)
}

func TestTimeDetectorWeekendFactorScales(t *testing.T) {
	d := NewTimeDetector()
	rule := timeRule(map[string]interface{}{"weekend_factor": 1.5})

	cand, err := d.Detect(rule, weekendAt(14), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.75, cand.Confidence, 1e-9)

	// Night weekend access is clamped at 0.95.
	cand, err = d.Detect(rule, weekendAt(23), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.95, cand.Confidence, 1e-9)
}

func TestTimeDetectorWeekdayOutsideHoursScalesWithDistance(t *testing.T) {
	d := NewTimeDetector()
	rule := timeRule(map[string]interface{}{
		"business_hours_start": 8,
		"business_hours_end":   18,
	})

	nearMiss, err := d.Detect(rule, weekdayAt(7), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, nearMiss)
	assert.InDelta(t, 0.55, nearMiss.Confidence, 1e-9)

	evening, err := d.Detect(rule, weekdayAt(20), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, evening)
	assert.InDelta(t, 0.65, evening.Confidence, 1e-9)

	// Far outside the bounds the weekday band caps at 0.7.
	midnight, err := d.Detect(rule, weekdayAt(0), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, midnight)
	assert.InDelta(t, 0.7, midnight.Confidence, 1e-9)
}

func TestTimeDetectorMalformedConditions(t *testing.T) {
	d := NewTimeDetector()
	rule := timeRule(map[string]interface{}{"business_hours_start": "eight"})

	_, err := d.Detect(rule, weekdayAt(3), nil, nil)
	assert.ErrorIs(t, err, ErrMalformedRule)
}
