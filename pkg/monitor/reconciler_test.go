package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusPtr(s StatusToken) *StatusToken { return &s }
func intPtr(i int) *int                    { return &i }

func newTestReconciler(txHash string) (*Reconciler, *captureRecorder) {
	rec := &captureRecorder{}
	return NewReconciler(txHash, NewClassifier(rec)), rec
}

func TestApplySeedsRecord(t *testing.T) {
	r, _ := newTestReconciler("0xabc")

	res := r.Apply(StatusUpdate{
		Status:                statusPtr(StatusPending),
		Confirmations:         intPtr(0),
		RequiredConfirmations: intPtr(2),
	}, SourcePoll)

	require.True(t, res.Applied)
	require.True(t, res.Seeded)
	assert.Equal(t, "0xabc", res.Record.TxHash)
	assert.Equal(t, StatusPending, res.Record.Status)
	assert.Equal(t, StageInput, res.Record.Stage)
	assert.Equal(t, SourceInitial, res.Record.LastUpdateSource, "first write always reads as the initial seed")
	assert.True(t, res.Record.Timing.UsingDefaults)
}

func TestApplyInputLegProgressWithoutStatusChange(t *testing.T) {
	// Seed pending 0/2, then confirmations reach the requirement while the
	// status token is unchanged: the stage stays input at 100% progress.
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{
		Status:                statusPtr(StatusPending),
		Confirmations:         intPtr(0),
		RequiredConfirmations: intPtr(2),
	}, SourceInitial)

	res := r.Apply(StatusUpdate{Confirmations: intPtr(2)}, SourcePoll)

	require.True(t, res.Applied)
	assert.Equal(t, StageInput, res.Record.Stage)
	assert.Equal(t, StatusPending, res.Record.Status)
	assert.Equal(t, 100, ConfirmationPercentage(res.Record.Confirmations, res.Record.RequiredConfirmations))
	assert.Equal(t, SourcePoll, res.Record.LastUpdateSource)
}

func TestApplyRejectsStageRegression(t *testing.T) {
	r, anomalies := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusPending)}, SourceInitial)

	res := r.Apply(StatusUpdate{Status: statusPtr(StatusConfirming)}, SourcePush)
	require.Equal(t, StageProcessing, res.Record.Stage)

	// An out-of-order stale poll reports pending again.
	res = r.Apply(StatusUpdate{Status: statusPtr(StatusPending)}, SourcePoll)

	require.True(t, res.Applied, "the write is absorbed, only the stage transition is rejected")
	assert.Equal(t, StageProcessing, res.Record.Stage)
	assert.Equal(t, StatusConfirming, res.Record.Status)
	assert.Contains(t, anomalies.kinds(), AnomalyStageRegression)
}

func TestApplyMergesPartialUpdatesFromBothChannels(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusConfirming)}, SourceInitial)

	// Update A carries only input-leg fields.
	r.Apply(StatusUpdate{
		Confirmations:         intPtr(1),
		RequiredConfirmations: intPtr(2),
	}, SourcePoll)

	// Update B carries only output-leg fields.
	res := r.Apply(StatusUpdate{
		Status:                        statusPtr(StatusOutputDetected),
		OutboundConfirmations:         intPtr(3),
		OutboundRequiredConfirmations: intPtr(10),
		RouterData:                    &RouterData{OutboundTxHash: "0xout"},
	}, SourcePush)

	assert.Equal(t, 1, res.Record.Confirmations, "push must not erase what poll populated")
	assert.Equal(t, 2, res.Record.RequiredConfirmations)
	assert.Equal(t, 3, res.Record.OutboundConfirmations)
	assert.Equal(t, 10, res.Record.OutboundRequiredConfirmations)
	assert.Equal(t, "0xout", res.Record.RouterData.OutboundTxHash)
	assert.Equal(t, StageOutput, res.Record.Stage)
}

func TestApplyClampsConfirmations(t *testing.T) {
	r, _ := newTestReconciler("0xabc")

	res := r.Apply(StatusUpdate{
		Status:                        statusPtr(StatusOutputConfirming),
		Confirmations:                 intPtr(5),
		RequiredConfirmations:         intPtr(2),
		OutboundConfirmations:         intPtr(15),
		OutboundRequiredConfirmations: intPtr(10),
	}, SourceInitial)

	assert.Equal(t, 2, res.Record.Confirmations, "counts are clamped to the requirement, never above")
	assert.Equal(t, 10, res.Record.OutboundConfirmations)
}

func TestApplyTerminalFreezesRecord(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusOutputConfirming)}, SourceInitial)
	r.Apply(StatusUpdate{Status: statusPtr(StatusCompleted)}, SourcePush)
	require.True(t, r.Terminal())

	res := r.Apply(StatusUpdate{
		Status:        statusPtr(StatusOutputDetected),
		Confirmations: intPtr(99),
	}, SourcePoll)

	assert.False(t, res.Applied, "no channel write may alter a terminal record")
	assert.Equal(t, StatusCompleted, res.Record.Status)
	assert.Zero(t, res.Record.Confirmations)
}

func TestApplyTerminalAttachesLateOutboundHash(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusCompleted)}, SourceInitial)

	res := r.Apply(StatusUpdate{RouterData: &RouterData{OutboundTxHash: "0xlate"}}, SourcePoll)
	require.True(t, res.Applied)
	assert.Equal(t, "0xlate", res.Record.RouterData.OutboundTxHash)

	// Only the first late attach lands.
	res = r.Apply(StatusUpdate{RouterData: &RouterData{OutboundTxHash: "0xother"}}, SourcePush)
	assert.False(t, res.Applied)
	assert.Equal(t, "0xlate", res.Record.RouterData.OutboundTxHash)
}

func TestApplyOutboundThresholdWithoutTerminalToken(t *testing.T) {
	r, anomalies := newTestReconciler("0xabc")

	res := r.Apply(StatusUpdate{
		Status:                        statusPtr(StatusOutputConfirming),
		OutboundConfirmations:         intPtr(10),
		OutboundRequiredConfirmations: intPtr(10),
	}, SourceInitial)

	assert.Equal(t, StageOutput, res.Record.Stage)
	assert.False(t, r.Terminal(), "completion is only asserted from an explicit terminal token")
	assert.Contains(t, anomalies.kinds(), AnomalyConfirmedWithoutTerminal)
}

func TestApplyIgnoresForeignTxHash(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusConfirming)}, SourceInitial)

	res := r.Apply(StatusUpdate{TxHash: "0xother", Status: statusPtr(StatusCompleted)}, SourcePush)

	assert.False(t, res.Applied)
	snap, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, StatusConfirming, snap.Status)
}

func TestApplyServerTimingNeverRewindsElapsed(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{
		Status: statusPtr(StatusConfirming),
		Timing: &TimingUpdate{ElapsedSeconds: 100, StageExpectedSeconds: 300},
	}, SourceInitial)

	res := r.Apply(StatusUpdate{
		Timing: &TimingUpdate{ElapsedSeconds: 40, StageExpectedSeconds: 300},
	}, SourcePoll)

	assert.Equal(t, float64(100), res.Record.Timing.ElapsedSeconds, "an authoritative update may move elapsed forward, never back")
	assert.False(t, res.Record.Timing.UsingDefaults)
}

func TestApplyStageAdvanceRestartsDefaultCountdown(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusPending)}, SourceInitial)

	res := r.Apply(StatusUpdate{Status: statusPtr(StatusConfirming)}, SourcePush)

	require.True(t, res.Record.Timing.UsingDefaults)
	assert.Equal(t, DefaultStageSeconds(StageProcessing), res.Record.Timing.StageExpectedSeconds)
	assert.Equal(t, reassuranceMessages[StageProcessing], res.Record.Timing.ReassuranceMessage)
}

func TestAdvanceTimingUsesMeasuredDelta(t *testing.T) {
	r, _ := newTestReconciler("0xabc")

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	r.Apply(StatusUpdate{Status: statusPtr(StatusPending)}, SourceInitial)

	now = base.Add(45 * time.Second)
	rec, ok := r.AdvanceTiming()
	require.True(t, ok)
	assert.Equal(t, float64(45), rec.Timing.ElapsedSeconds)

	// Resume after a long suspension: one large delta, no drift.
	now = base.Add(10 * time.Minute)
	rec, ok = r.AdvanceTiming()
	require.True(t, ok)
	assert.Equal(t, float64(600), rec.Timing.ElapsedSeconds)
}

func TestAdvanceTimingStopsAtTerminal(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusCompleted)}, SourceInitial)

	_, ok := r.AdvanceTiming()
	assert.False(t, ok)
}

func TestApplyNewlyPopulatedError(t *testing.T) {
	r, _ := newTestReconciler("0xabc")
	r.Apply(StatusUpdate{Status: statusPtr(StatusConfirming)}, SourceInitial)

	swapErr := &SwapError{Kind: "slippage_exceeded", Severity: "warning", UserMessage: "Slippage exceeded, refund triggered"}
	res := r.Apply(StatusUpdate{Error: swapErr}, SourcePoll)
	assert.True(t, res.ErrorPopulated)

	// The same error reported again is not "newly populated".
	res = r.Apply(StatusUpdate{Error: swapErr}, SourcePush)
	assert.False(t, res.ErrorPopulated)
}
