package monitor

import "time"

// StatusToken is the normalized status of an in-flight cross-chain swap.
type StatusToken string

const (
	StatusPending          StatusToken = "pending"
	StatusConfirming       StatusToken = "confirming"
	StatusOutputDetected   StatusToken = "output_detected"
	StatusOutputConfirming StatusToken = "output_confirming"
	StatusOutputConfirmed  StatusToken = "output_confirmed"
	StatusCompleted        StatusToken = "completed"
	StatusFailed           StatusToken = "failed"
	StatusRefunded         StatusToken = "refunded"
)

// Known reports whether the token is one of the statuses this package understands.
func (s StatusToken) Known() bool {
	switch s {
	case StatusPending, StatusConfirming, StatusOutputDetected, StatusOutputConfirming,
		StatusOutputConfirmed, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further progression is expected after this token.
func (s StatusToken) Terminal() bool {
	switch s {
	case StatusCompleted, StatusOutputConfirmed, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Succeeded reports whether the token represents a successfully settled swap.
// Only these tokens may fire the one-shot completion side effect.
func (s StatusToken) Succeeded() bool {
	return s == StatusCompleted || s == StatusOutputConfirmed
}

// Stage is one of the three ordered phases of a cross-chain swap.
type Stage int

const (
	StageInput      Stage = 1 // waiting on source-chain confirmation
	StageProcessing Stage = 2 // protocol routing
	StageOutput     Stage = 3 // destination-chain confirmation
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageProcessing:
		return "processing"
	case StageOutput:
		return "output"
	default:
		return "unknown"
	}
}

// UpdateSource identifies which channel produced a status update.
type UpdateSource string

const (
	SourceInitial UpdateSource = "initial"
	SourcePush    UpdateSource = "push"
	SourcePoll    UpdateSource = "poll"
	SourceManual  UpdateSource = "manual"
)

// RouterData is opaque pass-through from the swap routing protocol.
type RouterData struct {
	OutboundTxHash string `json:"outboundTxHash,omitempty"`
	RouterStatus   string `json:"routerStatus,omitempty"`
}

// SwapError is a protocol-reported swap-level error, surfaced verbatim to callers.
type SwapError struct {
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	UserMessage string `json:"userMessage"`
	Actionable  bool   `json:"actionable"`
	Raw         string `json:"raw,omitempty"`
}

func (e SwapError) Error() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Kind
}

// TimingView is the presentation view of swap timing. It is recomputed
// whenever the upstream supplies an estimate and locally advanced by Tick
// between authoritative updates.
type TimingView struct {
	ElapsedSeconds       float64 `json:"elapsedSeconds"`
	StageExpectedSeconds float64 `json:"stageExpectedSeconds"`
	RemainingFormatted   string  `json:"remainingFormatted"`
	ReassuranceMessage   string  `json:"reassuranceMessage"`
	UsingDefaults        bool    `json:"usingDefaults"`
}

// SwapRecord is the canonical state of one monitored swap, keyed by the
// deposit transaction hash. It is owned exclusively by a Reconciler.
type SwapRecord struct {
	TxHash                        string       `json:"txHash"`
	Status                        StatusToken  `json:"status"`
	Stage                         Stage        `json:"stage"`
	Confirmations                 int          `json:"confirmations"`
	RequiredConfirmations         int          `json:"requiredConfirmations"`
	OutboundConfirmations         int          `json:"outboundConfirmations"`
	OutboundRequiredConfirmations int          `json:"outboundRequiredConfirmations"`
	OutputDetectedAt              *time.Time   `json:"outputDetectedAt,omitempty"`
	RouterData                    RouterData   `json:"routerData"`
	Timing                        TimingView   `json:"timing"`
	Error                         *SwapError   `json:"error,omitempty"`
	LastUpdateSource              UpdateSource `json:"lastUpdateSource"`
	LastUpdateAt                  time.Time    `json:"lastUpdateAt"`
}

// TimingUpdate is a server-supplied timing estimate. When present on an
// update it replaces the locally ticked view wholesale.
type TimingUpdate struct {
	ElapsedSeconds       float64
	StageExpectedSeconds float64
}

// StatusUpdate is a partial swap state delivered by one of the channels.
// Nil fields mean "not reported", not "absent": the reconciler merges
// field-by-field so one channel never erases what another populated.
type StatusUpdate struct {
	TxHash                        string
	Status                        *StatusToken
	Confirmations                 *int
	RequiredConfirmations         *int
	OutboundConfirmations         *int
	OutboundRequiredConfirmations *int
	OutputDetectedAt              *time.Time
	RouterData                    *RouterData
	Timing                        *TimingUpdate
	Error                         *SwapError
}
