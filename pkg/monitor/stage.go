package monitor

import "fmt"

// Classifier maps a status token plus confirmation counters to a Stage.
// It never throws: unrecognized tokens fall back to the input stage and an
// anomaly is recorded, so the view keeps rendering whatever the upstream
// sends next.
type Classifier struct {
	anomalies AnomalyRecorder
}

// NewClassifier builds a Classifier reporting into the given recorder.
func NewClassifier(anomalies AnomalyRecorder) *Classifier {
	if anomalies == nil {
		anomalies = NopAnomalyRecorder{}
	}
	return &Classifier{anomalies: anomalies}
}

// Classify returns the stage implied by the reported fields, in priority
// order: terminal success tokens, output-leg tokens, protocol processing,
// then pending. An unknown token classifies as input rather than stalling.
func (c *Classifier) Classify(txHash string, status StatusToken, outboundConfirmations, outboundRequired int) Stage {
	stage := c.stageOf(txHash, status)

	// Output-leg confirmations at threshold with a non-terminal token means
	// the upstream should already have flipped to a terminal status. The
	// stage still reads output, but completion is only ever asserted from
	// an explicit terminal token.
	if outboundRequired > 0 && outboundConfirmations >= outboundRequired && !status.Terminal() {
		c.anomalies.Record(Anomaly{
			Kind:   AnomalyConfirmedWithoutTerminal,
			TxHash: txHash,
			Detail: fmt.Sprintf("outbound confirmations %d/%d but status %q is not terminal", outboundConfirmations, outboundRequired, status),
		})
		return StageOutput
	}

	return stage
}

func (c *Classifier) stageOf(txHash string, status StatusToken) Stage {
	switch status {
	case StatusCompleted, StatusOutputConfirmed:
		return StageOutput
	case StatusOutputDetected, StatusOutputConfirming:
		return StageOutput
	case StatusFailed, StatusRefunded:
		// A failure or refund still confirms on the destination or refund
		// leg; keep the indicator at its furthest point.
		return StageOutput
	case StatusConfirming:
		// Input-leg confirmation counts stay attached for display, but a
		// confirming deposit means the protocol is processing the swap.
		return StageProcessing
	case StatusPending:
		return StageInput
	default:
		c.anomalies.Record(Anomaly{
			Kind:   AnomalyUnknownStatus,
			TxHash: txHash,
			Detail: fmt.Sprintf("unrecognized status token %q", status),
		})
		return StageInput
	}
}

// Monotonic applies the non-decreasing stage rule: if next would regress
// below prev, prev is kept and the regression is recorded.
func (c *Classifier) Monotonic(txHash string, prev, next Stage) Stage {
	if prev > next {
		c.anomalies.Record(Anomaly{
			Kind:   AnomalyStageRegression,
			TxHash: txHash,
			Detail: fmt.Sprintf("update implies stage %s but %s already reached", next, prev),
		})
		return prev
	}
	return next
}
