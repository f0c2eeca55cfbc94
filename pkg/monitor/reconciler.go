package monitor

import (
	"sync"
	"time"
)

// Reconciler owns the SwapRecord for one monitored swap. Push events, poll
// results, and manual refreshes all funnel through Apply, which serializes
// writes and enforces the merge, clamping, and monotonicity rules. No
// ordering between channels is assumed: applying the same or an
// older-implied state twice is a no-op with respect to stage and completion.
type Reconciler struct {
	mu         sync.Mutex
	txHash     string
	classifier *Classifier
	now        func() time.Time

	record      *SwapRecord
	lastAdvance time.Time
	terminal    bool
}

// ApplyResult reports what an Apply call did to the record.
type ApplyResult struct {
	Record SwapRecord
	// Applied is false when the update was ignored outright: a foreign
	// txHash, or a write after the record reached a terminal status that
	// carried nothing new.
	Applied bool
	// Seeded is true for the first write.
	Seeded bool
	// ErrorPopulated is true when this update newly attached a swap error.
	ErrorPopulated bool
}

// NewReconciler builds a Reconciler for a single transaction hash.
func NewReconciler(txHash string, classifier *Classifier) *Reconciler {
	return &Reconciler{
		txHash:     txHash,
		classifier: classifier,
		now:        time.Now,
	}
}

// Apply merges an inbound update into the record and returns the resulting
// view. The first write seeds the record; later writes merge field-by-field
// so partial updates from different channels never erase each other.
func (r *Reconciler) Apply(u StatusUpdate, source UpdateSource) ApplyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.TxHash != "" && u.TxHash != r.txHash {
		var zero SwapRecord
		if r.record != nil {
			zero = *r.record
		}
		return ApplyResult{Record: zero}
	}

	if r.record == nil {
		return r.seed(u)
	}

	if r.terminal {
		return r.applyTerminal(u)
	}

	return r.merge(u, source)
}

func (r *Reconciler) seed(u StatusUpdate) ApplyResult {
	status := StatusPending
	if u.Status != nil {
		status = *u.Status
	}

	rec := &SwapRecord{
		TxHash: r.txHash,
		Status: status,
	}
	if u.Confirmations != nil {
		rec.Confirmations = *u.Confirmations
	}
	if u.RequiredConfirmations != nil {
		rec.RequiredConfirmations = *u.RequiredConfirmations
	}
	if u.OutboundConfirmations != nil {
		rec.OutboundConfirmations = *u.OutboundConfirmations
	}
	if u.OutboundRequiredConfirmations != nil {
		rec.OutboundRequiredConfirmations = *u.OutboundRequiredConfirmations
	}
	clampConfirmations(rec)
	rec.OutputDetectedAt = u.OutputDetectedAt
	if u.RouterData != nil {
		rec.RouterData = *u.RouterData
	}
	rec.Error = u.Error

	rec.Stage = r.classifier.Classify(r.txHash, status, rec.OutboundConfirmations, rec.OutboundRequiredConfirmations)
	if u.Timing != nil {
		rec.Timing = NewServerTiming(rec.Stage, *u.Timing)
	} else {
		rec.Timing = NewDefaultTiming(rec.Stage)
	}

	now := r.now()
	rec.LastUpdateSource = SourceInitial
	rec.LastUpdateAt = now
	r.lastAdvance = now
	r.record = rec
	r.terminal = status.Terminal()

	return ApplyResult{Record: *rec, Applied: true, Seeded: true, ErrorPopulated: rec.Error != nil}
}

// applyTerminal handles writes after a terminal status: the record is
// frozen except for a late-arriving outbound transaction hash.
func (r *Reconciler) applyTerminal(u StatusUpdate) ApplyResult {
	if u.RouterData != nil && u.RouterData.OutboundTxHash != "" && r.record.RouterData.OutboundTxHash == "" {
		r.record.RouterData.OutboundTxHash = u.RouterData.OutboundTxHash
		return ApplyResult{Record: *r.record, Applied: true}
	}
	return ApplyResult{Record: *r.record}
}

func (r *Reconciler) merge(u StatusUpdate, source UpdateSource) ApplyResult {
	rec := r.record
	prevStage := rec.Stage

	if u.Confirmations != nil {
		rec.Confirmations = *u.Confirmations
	}
	if u.RequiredConfirmations != nil {
		rec.RequiredConfirmations = *u.RequiredConfirmations
	}
	if u.OutboundConfirmations != nil {
		rec.OutboundConfirmations = *u.OutboundConfirmations
	}
	if u.OutboundRequiredConfirmations != nil {
		rec.OutboundRequiredConfirmations = *u.OutboundRequiredConfirmations
	}
	clampConfirmations(rec)

	if u.OutputDetectedAt != nil && rec.OutputDetectedAt == nil {
		rec.OutputDetectedAt = u.OutputDetectedAt
	}
	if u.RouterData != nil {
		if u.RouterData.OutboundTxHash != "" {
			rec.RouterData.OutboundTxHash = u.RouterData.OutboundTxHash
		}
		if u.RouterData.RouterStatus != "" {
			rec.RouterData.RouterStatus = u.RouterData.RouterStatus
		}
	}

	errorPopulated := false
	if u.Error != nil {
		errorPopulated = rec.Error == nil
		rec.Error = u.Error
	}

	// Stage transitions filter through the monotonicity rule: an update
	// implying a lower stage keeps the recorded status and stage, while its
	// other fields above still merged.
	candidate := rec.Status
	if u.Status != nil {
		candidate = *u.Status
	}
	next := r.classifier.Classify(r.txHash, candidate, rec.OutboundConfirmations, rec.OutboundRequiredConfirmations)
	if r.classifier.Monotonic(r.txHash, prevStage, next) == next {
		rec.Status = candidate
		rec.Stage = next
	}

	now := r.now()
	if u.Timing != nil {
		fresh := *u.Timing
		// A server estimate is authoritative but may never rewind the
		// locally ticked elapsed time.
		if fresh.ElapsedSeconds < rec.Timing.ElapsedSeconds {
			fresh.ElapsedSeconds = rec.Timing.ElapsedSeconds
		}
		rec.Timing = NewServerTiming(rec.Stage, fresh)
		r.lastAdvance = now
	} else if rec.Stage != prevStage && rec.Timing.UsingDefaults {
		// No upstream estimate yet: restart the fallback countdown for the
		// stage just entered without rewinding elapsed time.
		rec.Timing.StageExpectedSeconds = rec.Timing.ElapsedSeconds + DefaultStageSeconds(rec.Stage)
		rec.Timing = Tick(rec.Timing, rec.Stage, 0)
	} else if rec.Stage != prevStage {
		rec.Timing = Tick(rec.Timing, rec.Stage, 0)
	}

	rec.LastUpdateSource = source
	rec.LastUpdateAt = now
	r.terminal = rec.Status.Terminal()

	return ApplyResult{Record: *rec, Applied: true, ErrorPopulated: errorPopulated}
}

// AdvanceTiming moves the local countdown forward by the measured wall-clock
// delta since the previous advance or authoritative update. Returns the
// updated record and whether there was anything to advance.
func (r *Reconciler) AdvanceTiming() (SwapRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.record == nil || r.terminal {
		var zero SwapRecord
		if r.record != nil {
			zero = *r.record
		}
		return zero, false
	}

	now := r.now()
	delta := now.Sub(r.lastAdvance).Seconds()
	r.lastAdvance = now
	r.record.Timing = Tick(r.record.Timing, r.record.Stage, delta)
	return *r.record, true
}

// Snapshot returns the current record, if seeded.
func (r *Reconciler) Snapshot() (SwapRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return SwapRecord{}, false
	}
	return *r.record, true
}

// Terminal reports whether the record reached a terminal status.
func (r *Reconciler) Terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal
}

// Confirmation counts are clamped before display, never trusted verbatim.
func clampConfirmations(rec *SwapRecord) {
	if rec.Confirmations < 0 {
		rec.Confirmations = 0
	}
	if rec.OutboundConfirmations < 0 {
		rec.OutboundConfirmations = 0
	}
	if rec.RequiredConfirmations > 0 && rec.Confirmations > rec.RequiredConfirmations {
		rec.Confirmations = rec.RequiredConfirmations
	}
	if rec.OutboundRequiredConfirmations > 0 && rec.OutboundConfirmations > rec.OutboundRequiredConfirmations {
		rec.OutboundConfirmations = rec.OutboundRequiredConfirmations
	}
}
