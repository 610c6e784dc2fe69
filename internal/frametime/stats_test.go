package frametime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateIntervalStatsEmpty(t *testing.T) {
	stats := CalculateIntervalStats(nil)
	assert.Equal(t, 0, stats.Samples)
	assert.False(t, stats.IsStable)
}

func TestCalculateIntervalStatsSteady(t *testing.T) {
	intervals := make([]time.Duration, 60)
	for i := range intervals {
		intervals[i] = frame
	}

	stats := CalculateIntervalStats(intervals)
	assert.Equal(t, 60, stats.Samples)
	assert.InDelta(t, 60.0, stats.FPSMean, 0.01)
	assert.InDelta(t, 0.0, stats.FPSStdDev, 1e-9)
	assert.InDelta(t, 0.0, stats.JitterMax, 1e-9)
	assert.True(t, stats.IsStable)
}

func TestCalculateIntervalStatsUnstable(t *testing.T) {
	intervals := []time.Duration{
		5 * time.Millisecond, 40 * time.Millisecond,
		5 * time.Millisecond, 40 * time.Millisecond,
	}

	stats := CalculateIntervalStats(intervals)
	assert.False(t, stats.IsStable)
	assert.InDelta(t, 200.0, stats.FPSMax, 0.01)
	assert.InDelta(t, 25.0, stats.FPSMin, 0.01)
	assert.Greater(t, stats.JitterMean, 0.0)
}

func TestTimerStatsUsesHistory(t *testing.T) {
	clock := newFakeClock()
	timer := New(WithClock(clock), WithHistorySize(8))

	timer.SetSyncTime(0)
	for i := 1; i <= 20; i++ {
		clock.Advance(frame)
		timer.SetSyncTime(uint32(i))
	}

	stats := timer.Stats()
	assert.Equal(t, 8, stats.Samples)
	assert.InDelta(t, float64(frame), float64(stats.MeanInterval), float64(time.Microsecond))
	assert.True(t, stats.IsStable)
}
