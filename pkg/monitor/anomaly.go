package monitor

import (
	"sync"

	"go.uber.org/zap"
)

// AnomalyKind classifies an internally detected inconsistency between
// reported swap fields. Anomalies are diagnostics only and are never
// surfaced to the user.
type AnomalyKind string

const (
	// AnomalyStageRegression means an inbound update implied a lower stage
	// than the one already recorded. The update's stage is discarded.
	AnomalyStageRegression AnomalyKind = "stage_regression"

	// AnomalyUnknownStatus means the upstream sent a status token this
	// package does not recognize. The classifier falls back to the input
	// stage rather than stalling.
	AnomalyUnknownStatus AnomalyKind = "unknown_status"

	// AnomalyConfirmedWithoutTerminal means output-leg confirmations meet
	// the required threshold while the status token is not yet terminal.
	// Completion is never asserted from confirmation counts alone.
	AnomalyConfirmedWithoutTerminal AnomalyKind = "confirmed_without_terminal"
)

// Anomaly is one recorded inconsistency.
type Anomaly struct {
	Kind   AnomalyKind
	TxHash string
	Detail string
}

// AnomalyRecorder receives reconciliation anomalies for observability.
type AnomalyRecorder interface {
	Record(a Anomaly)
}

type zapAnomalyRecorder struct {
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewAnomalyRecorder returns a recorder that logs anomalies at warn level.
// A persisting condition re-triggers on every poll and push cycle, so each
// distinct txHash+kind pair is logged once.
func NewAnomalyRecorder(logger *zap.Logger) AnomalyRecorder {
	return &zapAnomalyRecorder{
		logger: logger.Named("anomaly"),
		seen:   make(map[string]struct{}),
	}
}

func (r *zapAnomalyRecorder) Record(a Anomaly) {
	key := a.TxHash + "/" + string(a.Kind)
	r.mu.Lock()
	_, dup := r.seen[key]
	r.seen[key] = struct{}{}
	r.mu.Unlock()
	if dup {
		return
	}

	r.logger.Warn("reconciliation anomaly",
		zap.String("kind", string(a.Kind)),
		zap.String("txHash", a.TxHash),
		zap.String("detail", a.Detail),
	)
}

// NopAnomalyRecorder discards all anomalies.
type NopAnomalyRecorder struct{}

func (NopAnomalyRecorder) Record(Anomaly) {}
