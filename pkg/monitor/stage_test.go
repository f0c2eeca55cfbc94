package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRecorder struct {
	mu        sync.Mutex
	anomalies []Anomaly
}

func (c *captureRecorder) Record(a Anomaly) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anomalies = append(c.anomalies, a)
}

func (c *captureRecorder) kinds() []AnomalyKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []AnomalyKind
	for _, a := range c.anomalies {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		status        StatusToken
		outbound      int
		outboundReq   int
		want          Stage
		wantAnomalies []AnomalyKind
	}{
		{name: "pending is input", status: StatusPending, want: StageInput},
		{name: "confirming is processing", status: StatusConfirming, want: StageProcessing},
		{name: "output detected", status: StatusOutputDetected, outbound: 1, outboundReq: 10, want: StageOutput},
		{name: "output confirming", status: StatusOutputConfirming, outbound: 5, outboundReq: 10, want: StageOutput},
		{name: "output confirmed is terminal output", status: StatusOutputConfirmed, outbound: 10, outboundReq: 10, want: StageOutput},
		{name: "completed is terminal output", status: StatusCompleted, want: StageOutput},
		{name: "failed keeps furthest point", status: StatusFailed, want: StageOutput},
		{name: "refunded keeps furthest point", status: StatusRefunded, want: StageOutput},
		{
			name:          "unknown token fails safe to input",
			status:        StatusToken("mystery_state"),
			want:          StageInput,
			wantAnomalies: []AnomalyKind{AnomalyUnknownStatus},
		},
		{
			name:          "outbound threshold met without terminal token",
			status:        StatusOutputConfirming,
			outbound:      10,
			outboundReq:   10,
			want:          StageOutput,
			wantAnomalies: []AnomalyKind{AnomalyConfirmedWithoutTerminal},
		},
		{
			name:          "outbound above threshold without terminal token",
			status:        StatusConfirming,
			outbound:      12,
			outboundReq:   10,
			want:          StageOutput,
			wantAnomalies: []AnomalyKind{AnomalyConfirmedWithoutTerminal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captureRecorder{}
			c := NewClassifier(rec)

			got := c.Classify("0xabc", tt.status, tt.outbound, tt.outboundReq)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAnomalies, rec.kinds())
		})
	}
}

func TestClassifyTerminalTokenIgnoresThresholdCheck(t *testing.T) {
	rec := &captureRecorder{}
	c := NewClassifier(rec)

	got := c.Classify("0xabc", StatusCompleted, 10, 10)

	assert.Equal(t, StageOutput, got)
	assert.Empty(t, rec.kinds(), "terminal tokens at threshold are consistent, not anomalous")
}

func TestMonotonic(t *testing.T) {
	rec := &captureRecorder{}
	c := NewClassifier(rec)

	assert.Equal(t, StageProcessing, c.Monotonic("0xabc", StageInput, StageProcessing), "forward transitions pass through")
	assert.Equal(t, StageOutput, c.Monotonic("0xabc", StageOutput, StageOutput), "same stage passes through")
	require.Empty(t, rec.kinds())

	assert.Equal(t, StageOutput, c.Monotonic("0xabc", StageOutput, StageProcessing), "regressions keep the higher stage")
	assert.Equal(t, []AnomalyKind{AnomalyStageRegression}, rec.kinds())
}
