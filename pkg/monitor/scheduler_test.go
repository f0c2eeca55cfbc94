package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource scripts pull responses: each call consumes the next entry,
// repeating the last one once the script runs out. When the recheck gate
// channels are set, RequestRecheck signals entry and parks until released.
type fakeSource struct {
	mu             sync.Mutex
	script         []StatusUpdate
	err            error
	calls          int
	rechecks       int
	recheckEntered chan struct{}
	recheckRelease chan struct{}
}

func (f *fakeSource) InitialStatus(_ context.Context, txHash string) (StatusUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return StatusUpdate{}, f.err
	}
	if len(f.script) == 0 {
		return StatusUpdate{TxHash: txHash}, nil
	}
	u := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	u.TxHash = txHash
	return u, nil
}

func (f *fakeSource) RequestRecheck(context.Context, string) error {
	f.mu.Lock()
	f.rechecks++
	entered, release := f.recheckEntered, f.recheckRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return nil
}

// fakeStream delivers pushed events to the one subscribed handler, filtered
// by txHash at the subscription boundary.
type fakeStream struct {
	mu        sync.Mutex
	txHash    string
	handler   func(StatusUpdate)
	available bool
	subErr    error
	unsubbed  int
}

func (f *fakeStream) Subscribe(txHash string, handler func(StatusUpdate)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.txHash = txHash
	f.handler = handler
	f.available = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handler = nil
		f.available = false
		f.unsubbed++
	}, nil
}

func (f *fakeStream) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeStream) Emit(u StatusUpdate) {
	f.mu.Lock()
	handler := f.handler
	txHash := f.txHash
	f.mu.Unlock()
	if handler != nil && u.TxHash == txHash {
		handler(u)
	}
}

// recordingHandlers counts callback invocations.
type recordingHandlers struct {
	mu        sync.Mutex
	updates   []SwapRecord
	completes int
	errors    []SwapError
}

func (h *recordingHandlers) handlers() Handlers {
	return Handlers{
		OnUpdate: func(rec SwapRecord) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.updates = append(h.updates, rec)
		},
		OnComplete: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completes++
		},
		OnError: func(e SwapError) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errors = append(h.errors, e)
		},
	}
}

func (h *recordingHandlers) completeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completes
}

func (h *recordingHandlers) lastUpdate() (SwapRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return SwapRecord{}, false
	}
	return h.updates[len(h.updates)-1], true
}

// blockUntilCanceled parks the poll and tick loops so tests drive all
// updates explicitly.
func blockUntilCanceled(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestScheduler(t *testing.T, source *fakeSource, stream EventStream) (*Scheduler, *recordingHandlers) {
	t.Helper()
	h := &recordingHandlers{}
	s, err := NewScheduler("0xabc", source, stream, NewCompletionGate(), zap.NewNop(), h.handlers())
	require.NoError(t, err)
	s.sleep = blockUntilCanceled
	return s, h
}

func TestPollInterval(t *testing.T) {
	assert.Equal(t, 60*time.Second, PollInterval(true), "polling is a catch-up mechanism while push is live")
	assert.Equal(t, 30*time.Second, PollInterval(false), "polling is primary without push")
}

func TestSchedulerSeedsFromInitialPull(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{
		Status:                statusPtr(StatusConfirming),
		Confirmations:         intPtr(1),
		RequiredConfirmations: intPtr(2),
	}}}
	s, h := newTestScheduler(t, source, &fakeStream{})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, StatusConfirming, rec.Status)
	assert.Equal(t, StageProcessing, rec.Stage)
	last, ok := h.lastUpdate()
	require.True(t, ok)
	assert.Equal(t, SourceInitial, last.LastUpdateSource)
}

func TestSchedulerSeedsOptimisticallyWhenPullFails(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	s, _ := newTestScheduler(t, source, &fakeStream{})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, StageInput, rec.Stage)
}

func TestSchedulerCompletionFiresOnceAcrossChannels(t *testing.T) {
	// Scenario: output detected at seed, then push and poll independently
	// report completion, then a manual refresh reports it a third time.
	source := &fakeSource{script: []StatusUpdate{
		{
			Status:                        statusPtr(StatusOutputDetected),
			OutboundConfirmations:         intPtr(1),
			OutboundRequiredConfirmations: intPtr(10),
		},
		{Status: statusPtr(StatusCompleted)},
	}}
	stream := &fakeStream{}
	s, h := newTestScheduler(t, source, stream)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	stream.Emit(StatusUpdate{TxHash: "0xabc", Status: statusPtr(StatusCompleted)})
	s.pollOnce(context.Background(), SourcePoll)
	s.ForceRefresh()

	assert.Equal(t, 1, h.completeCount(), "three channels observed completion, the gate fired once")

	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, StageOutput, rec.Stage)
}

func TestSchedulerIgnoresEventsForOtherSwaps(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{Status: statusPtr(StatusPending)}}}
	stream := &fakeStream{}
	s, h := newTestScheduler(t, source, stream)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	stream.Emit(StatusUpdate{TxHash: "0xother", Status: statusPtr(StatusCompleted)})

	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 0, h.completeCount())
}

func TestSchedulerForceRefreshRequestsRecheck(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{Status: statusPtr(StatusPending)}}}
	s, _ := newTestScheduler(t, source, &fakeStream{})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	seedCalls := source.calls

	s.ForceRefresh()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 1, source.rechecks)
	assert.Equal(t, seedCalls+1, source.calls)
}

func TestSchedulerForceRefreshBeforeStartIsNoop(t *testing.T) {
	source := &fakeSource{}
	s, _ := newTestScheduler(t, source, nil)

	s.ForceRefresh()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Zero(t, source.rechecks)
	assert.Zero(t, source.calls)
}

func TestSchedulerSurfacesProtocolErrors(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{
		{Status: statusPtr(StatusConfirming)},
		{Error: &SwapError{Kind: "refund_triggered", Severity: "warning", UserMessage: "Refund triggered"}},
	}}
	s, h := newTestScheduler(t, source, &fakeStream{})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	s.pollOnce(context.Background(), SourcePoll)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.errors, 1)
	assert.Equal(t, "refund_triggered", h.errors[0].Kind)
}

func TestSchedulerSubscriptionFailureFallsBackToPolling(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{Status: statusPtr(StatusPending)}}}
	stream := &fakeStream{subErr: errors.New("dial refused")}
	s, _ := newTestScheduler(t, source, stream)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	assert.False(t, s.pushAvailable())
	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestSchedulerStopExcludesInFlightRefresh(t *testing.T) {
	// A refresh caught mid-flight by Stop must not write to the record:
	// Stop cancels the scheduler's context and then waits the refresh out,
	// so once Stop returns the record is frozen.
	source := &fakeSource{
		script:         []StatusUpdate{{Status: statusPtr(StatusConfirming)}},
		recheckEntered: make(chan struct{}),
		recheckRelease: make(chan struct{}),
	}
	s, h := newTestScheduler(t, source, &fakeStream{})
	require.NoError(t, s.Start(context.Background()))
	runCtx := s.ctx

	refreshDone := make(chan struct{})
	go func() {
		s.ForceRefresh()
		close(refreshDone)
	}()
	<-source.recheckEntered

	stopDone := make(chan struct{})
	go func() {
		s.Stop()
		close(stopDone)
	}()

	// Stop cancels before it waits; release the parked recheck only once
	// cancellation is observable so the refresh resumes into a stopped
	// scheduler.
	<-runCtx.Done()
	close(source.recheckRelease)
	<-stopDone
	<-refreshDone

	rec, ok := s.Record()
	require.True(t, ok)
	assert.Equal(t, SourceInitial, rec.LastUpdateSource, "canceled refresh must not reach the record")

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.updates, 1, "only the seed update was dispatched")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{Status: statusPtr(StatusPending)}}}
	stream := &fakeStream{}
	s, _ := newTestScheduler(t, source, stream)

	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	s.Stop()

	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.Equal(t, 1, stream.unsubbed, "only the first stop unsubscribes")
}

func TestSchedulerStartTwiceFails(t *testing.T) {
	source := &fakeSource{script: []StatusUpdate{{Status: statusPtr(StatusPending)}}}
	s, _ := newTestScheduler(t, source, nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
}
