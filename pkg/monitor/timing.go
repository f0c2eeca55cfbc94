package monitor

import (
	"fmt"
	"math"
)

// PerformanceLabel describes actual versus expected swap duration.
type PerformanceLabel string

const (
	PerformanceAhead           PerformanceLabel = "ahead"
	PerformanceOnTrack         PerformanceLabel = "on_track"
	PerformanceSlightlyDelayed PerformanceLabel = "slightly_delayed"
	PerformanceBehind          PerformanceLabel = "behind"
)

// Default stage durations used to seed a plausible countdown before the
// upstream supplies an estimate. They never gate correctness.
const (
	defaultInputSeconds      = 600 // deposits usually confirm within 5-10 minutes
	defaultProcessingSeconds = 900 // protocol routing runs 10-20 minutes
	defaultOutputSeconds     = 750 // destination confirmation runs 10-15 minutes
)

const finalizingMessage = "Almost there. Finalizing your swap..."

var reassuranceMessages = map[Stage]string{
	StageInput:      "Waiting for your deposit to confirm on the source chain.",
	StageProcessing: "The protocol is routing your swap. This is the longest step.",
	StageOutput:     "Funds detected on the destination chain. Confirming now.",
}

// DefaultStageSeconds returns the fallback expected duration for a stage.
func DefaultStageSeconds(stage Stage) float64 {
	switch stage {
	case StageProcessing:
		return defaultProcessingSeconds
	case StageOutput:
		return defaultOutputSeconds
	default:
		return defaultInputSeconds
	}
}

// FormatDuration renders a second count as "42s" or "3m 20s", dropping the
// seconds term when it is zero.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Round(seconds))
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	m := total / 60
	s := total % 60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}

// Percentage converts elapsed/expected into an integer percent clamped to
// [0,100]. Zero or negative expectations read as no progress.
func Percentage(elapsed, expected float64) int {
	if expected <= 0 {
		return 0
	}
	pct := int(math.Round(elapsed / expected * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ConfirmationPercentage is Percentage over confirmation counts, clamped the
// same way so counts above the requirement present as complete.
func ConfirmationPercentage(confirmations, required int) int {
	return Percentage(float64(confirmations), float64(required))
}

// LabelPerformance buckets an actual/expected duration ratio.
func LabelPerformance(ratio float64) PerformanceLabel {
	switch {
	case ratio < 0.8:
		return PerformanceAhead
	case ratio < 1.2:
		return PerformanceOnTrack
	case ratio < 1.5:
		return PerformanceSlightlyDelayed
	default:
		return PerformanceBehind
	}
}

// NewDefaultTiming seeds a TimingView from the fallback duration table.
func NewDefaultTiming(stage Stage) TimingView {
	expected := DefaultStageSeconds(stage)
	return TimingView{
		ElapsedSeconds:       0,
		StageExpectedSeconds: expected,
		RemainingFormatted:   FormatDuration(expected),
		ReassuranceMessage:   reassuranceMessages[stage],
		UsingDefaults:        true,
	}
}

// NewServerTiming builds a TimingView from an upstream estimate.
func NewServerTiming(stage Stage, u TimingUpdate) TimingView {
	v := TimingView{
		ElapsedSeconds:       math.Max(0, u.ElapsedSeconds),
		StageExpectedSeconds: math.Max(0, u.StageExpectedSeconds),
		UsingDefaults:        false,
	}
	return refresh(v, stage)
}

// Tick advances a TimingView by the wall-clock delta since the last update.
// The delta is measured, not accumulated one second at a time, so the
// countdown stays correct across suspension and resume. Elapsed never moves
// backwards.
func Tick(previous TimingView, stage Stage, deltaSeconds float64) TimingView {
	if deltaSeconds < 0 {
		deltaSeconds = 0
	}
	previous.ElapsedSeconds += deltaSeconds
	return refresh(previous, stage)
}

func refresh(v TimingView, stage Stage) TimingView {
	remaining := v.StageExpectedSeconds - v.ElapsedSeconds
	if remaining < 0 {
		remaining = 0
	}
	v.RemainingFormatted = FormatDuration(remaining)
	if remaining == 0 {
		v.ReassuranceMessage = finalizingMessage
	} else {
		v.ReassuranceMessage = reassuranceMessages[stage]
	}
	return v
}
