package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "sub-minute", seconds: 42, want: "42s"},
		{name: "zero", seconds: 0, want: "0s"},
		{name: "negative clamps to zero", seconds: -5, want: "0s"},
		{name: "exact minute drops seconds", seconds: 60, want: "1m"},
		{name: "minutes and seconds", seconds: 200, want: "3m 20s"},
		{name: "rounds fractional seconds", seconds: 59.6, want: "1m"},
		{name: "long duration", seconds: 1830, want: "30m 30s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  float64
		expected float64
		want     int
	}{
		{name: "zero expected reads zero", elapsed: 30, expected: 0, want: 0},
		{name: "negative expected reads zero", elapsed: 30, expected: -1, want: 0},
		{name: "halfway", elapsed: 30, expected: 60, want: 50},
		{name: "rounds", elapsed: 1, expected: 3, want: 33},
		{name: "clamps above full", elapsed: 90, expected: 60, want: 100},
		{name: "negative elapsed clamps to zero", elapsed: -10, expected: 60, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.elapsed, tt.expected))
		})
	}
}

func TestConfirmationPercentage(t *testing.T) {
	assert.Equal(t, 100, ConfirmationPercentage(5, 2), "counts above the requirement present as complete")
	assert.Equal(t, 50, ConfirmationPercentage(1, 2))
	assert.Equal(t, 0, ConfirmationPercentage(1, 0))
}

func TestLabelPerformance(t *testing.T) {
	tests := []struct {
		ratio float64
		want  PerformanceLabel
	}{
		{ratio: 0.5, want: PerformanceAhead},
		{ratio: 0.79, want: PerformanceAhead},
		{ratio: 0.8, want: PerformanceOnTrack},
		{ratio: 1.19, want: PerformanceOnTrack},
		{ratio: 1.2, want: PerformanceSlightlyDelayed},
		{ratio: 1.49, want: PerformanceSlightlyDelayed},
		{ratio: 1.5, want: PerformanceBehind},
		{ratio: 3, want: PerformanceBehind},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelPerformance(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestTickAdvancesByWallClockDelta(t *testing.T) {
	v := NewDefaultTiming(StageInput)
	require.True(t, v.UsingDefaults)
	require.Equal(t, "10m", v.RemainingFormatted)

	v = Tick(v, StageInput, 90)
	assert.Equal(t, float64(90), v.ElapsedSeconds)
	assert.Equal(t, "8m 30s", v.RemainingFormatted)

	// A suspended tab resuming after minutes applies one large delta.
	v = Tick(v, StageInput, 300)
	assert.Equal(t, float64(390), v.ElapsedSeconds)
	assert.Equal(t, "3m 30s", v.RemainingFormatted)
}

func TestTickNeverRegressesElapsed(t *testing.T) {
	v := NewDefaultTiming(StageProcessing)
	v = Tick(v, StageProcessing, 120)
	before := v.ElapsedSeconds

	v = Tick(v, StageProcessing, -60)
	assert.Equal(t, before, v.ElapsedSeconds, "negative deltas are clamped")
}

func TestTickCountdownWithDefaultsOnly(t *testing.T) {
	// No timing ever supplied by the upstream: the countdown runs from the
	// default input-stage estimate and never goes negative.
	v := NewDefaultTiming(StageInput)
	for i := 0; i < 700; i++ {
		v = Tick(v, StageInput, 1)
		assert.True(t, v.UsingDefaults)
		assert.NotContains(t, v.RemainingFormatted, "-")
	}
	assert.Equal(t, "0s", v.RemainingFormatted)
	assert.Equal(t, finalizingMessage, v.ReassuranceMessage)
}

func TestTickSwapsReassuranceMessageAtZeroRemaining(t *testing.T) {
	v := NewServerTiming(StageOutput, TimingUpdate{ElapsedSeconds: 0, StageExpectedSeconds: 10})
	require.False(t, v.UsingDefaults)
	assert.Equal(t, reassuranceMessages[StageOutput], v.ReassuranceMessage)

	v = Tick(v, StageOutput, 10)
	assert.Equal(t, finalizingMessage, v.ReassuranceMessage)
	assert.Equal(t, "0s", v.RemainingFormatted)
}

func TestNewServerTimingClampsNegativeInputs(t *testing.T) {
	v := NewServerTiming(StageInput, TimingUpdate{ElapsedSeconds: -30, StageExpectedSeconds: -1})
	assert.Equal(t, float64(0), v.ElapsedSeconds)
	assert.Equal(t, float64(0), v.StageExpectedSeconds)
}
