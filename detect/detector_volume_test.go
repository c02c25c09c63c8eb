package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phiguard/core"
)

func volumeRule() core.AnomalyRule {
	return core.AnomalyRule{
		ID:              "volume-rule",
		Name:            "Unusual access volume",
		Type:            core.AnomalyUnusualAccessVolume,
		Enabled:         true,
		DefaultSeverity: core.SeverityHigh,
		Conditions: map[string]interface{}{
			"time_window_minutes": 60,
			"threshold_factor":    2.0,
			"min_access_count":    10,
		},
		MinConfidence: 0.6,
	}
}

// windowWithAccesses builds a window holding count accesses for the user
// inside the last hour, returning the event to evaluate (the newest one).
func windowWithAccesses(userID string, count int) (*EventWindow, core.AccessEvent) {
	w := NewEventWindow(DefaultWindowCapacity)
	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	var last core.AccessEvent
	for i := 0; i < count; i++ {
		last = accessAt(base.Add(time.Duration(i)*time.Second), userID)
		w.Push(last)
	}
	return w, last
}

func TestVolumeDetectorExactBoundary(t *testing.T) {
	d := NewVolumeDetector()
	// daily average 240 = 10/hour, so expected over 60 minutes is 10 and
	// the firing threshold is strictly more than 20.
	baseline := &core.UserBaseline{UserID: "alice", DailyAverageAccessCount: 240}

	w, ev := windowWithAccesses("alice", 20)
	cand, err := d.Detect(volumeRule(), ev, w, baseline)
	require.NoError(t, err)
	assert.Nil(t, cand, "20 accesses is not strictly above expected*factor")

	w, ev = windowWithAccesses("alice", 21)
	cand, err = d.Detect(volumeRule(), ev, w, baseline)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.71, cand.Confidence, 1e-9)
	assert.Equal(t, core.SeverityHigh, cand.Severity)
	assert.Equal(t, 21, cand.Evidence["actual_count"])
}

func TestVolumeDetectorBelowMinimumCount(t *testing.T) {
	d := NewVolumeDetector()
	// Tiny expected volume, but below the absolute floor of 10.
	baseline := &core.UserBaseline{UserID: "alice", DailyAverageAccessCount: 1}

	w, ev := windowWithAccesses("alice", 9)
	cand, err := d.Detect(volumeRule(), ev, w, baseline)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestVolumeDetectorConfidenceClamped(t *testing.T) {
	d := NewVolumeDetector()
	baseline := &core.UserBaseline{UserID: "alice", DailyAverageAccessCount: 24}

	w, ev := windowWithAccesses("alice", 100)
	cand, err := d.Detect(volumeRule(), ev, w, baseline)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.95, cand.Confidence, 1e-9)
}

func TestVolumeDetectorNoBaselineVariant(t *testing.T) {
	d := NewVolumeDetector()

	w, ev := windowWithAccesses("alice", 19)
	cand, err := d.Detect(volumeRule(), ev, w, nil)
	require.NoError(t, err)
	assert.Nil(t, cand, "below twice min_access_count must not fire without a baseline")

	w, ev = windowWithAccesses("alice", 20)
	cand, err = d.Detect(volumeRule(), ev, w, nil)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.7, cand.Confidence, 1e-9)
	assert.Equal(t, false, cand.Evidence["baseline_present"])
}

func TestVolumeDetectorZeroAverageTreatedAsNoBaseline(t *testing.T) {
	d := NewVolumeDetector()
	baseline := &core.UserBaseline{UserID: "alice"}

	w, ev := windowWithAccesses("alice", 20)
	cand, err := d.Detect(volumeRule(), ev, w, baseline)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.InDelta(t, 0.7, cand.Confidence, 1e-9)
}

func TestVolumeDetectorMalformedConditions(t *testing.T) {
	d := NewVolumeDetector()
	rule := volumeRule()
	rule.Conditions["threshold_factor"] = "double"

	w, ev := windowWithAccesses("alice", 30)
	_, err := d.Detect(rule, ev, w, nil)
	assert.ErrorIs(t, err, ErrMalformedRule)
}
