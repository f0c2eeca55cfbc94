package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrSwapNotFound is returned by a StatusSource when the upstream has no
// record of the swap yet.
var ErrSwapNotFound = errors.New("swap not found")

// StatusSource is the pull channel: a point-in-time status fetch plus an
// optional upstream re-check nudge used by manual refresh.
type StatusSource interface {
	InitialStatus(ctx context.Context, txHash string) (StatusUpdate, error)
	RequestRecheck(ctx context.Context, txHash string) error
}

// EventStream is the push channel. Subscribe registers a handler for events
// matching txHash only; correlation filtering happens at the subscription
// boundary, not in the handler. The returned func unsubscribes and is safe
// to call more than once.
type EventStream interface {
	Subscribe(txHash string, handler func(StatusUpdate)) (func(), error)
	Available() bool
}

// Handlers are the callbacks a Scheduler fires toward presentation code.
type Handlers struct {
	// OnUpdate fires after every applied update, including local timing ticks.
	OnUpdate func(SwapRecord)
	// OnComplete fires exactly once per swap, gated by the CompletionGate.
	OnComplete func()
	// OnError fires when the upstream newly reports a swap-level error.
	OnError func(SwapError)
}

const (
	// With a live push channel polling is a redundancy mechanism; without
	// one it is the primary channel and runs twice as often.
	pollIntervalWithPush    = 60 * time.Second
	pollIntervalWithoutPush = 30 * time.Second

	tickInterval = time.Second
)

// PollInterval is the cadence policy: how long to wait before the next poll
// given the push channel's availability.
func PollInterval(pushAvailable bool) time.Duration {
	if pushAvailable {
		return pollIntervalWithPush
	}
	return pollIntervalWithoutPush
}

// Scheduler owns the concurrency model for one monitored swap: it seeds the
// reconciler with an immediate pull, subscribes to the push channel, runs
// the poll loop, advances the local countdown, and exposes a coalesced
// manual refresh. All three channels funnel into the same Reconciler, so
// updates never interleave partially.
type Scheduler struct {
	txHash     string
	source     StatusSource
	stream     EventStream
	reconciler *Reconciler
	gate       *CompletionGate
	handlers   Handlers
	logger     *zap.Logger

	sleep   func(context.Context, time.Duration) error
	refresh singleflight.Group

	mu          sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewScheduler builds a Scheduler for txHash. stream may be nil when no
// push channel is configured; polling then runs at its primary cadence.
func NewScheduler(txHash string, source StatusSource, stream EventStream, gate *CompletionGate, logger *zap.Logger, handlers Handlers) (*Scheduler, error) {
	if txHash == "" {
		return nil, errors.New("txHash is required")
	}
	if source == nil {
		return nil, errors.New("status source is required")
	}
	if gate == nil {
		gate = NewCompletionGate()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("txHash", txHash))

	return &Scheduler{
		txHash:     txHash,
		source:     source,
		stream:     stream,
		reconciler: NewReconciler(txHash, NewClassifier(NewAnomalyRecorder(logger))),
		gate:       gate,
		handlers:   handlers,
		logger:     logger,
		sleep:      sleepWithContext,
	}, nil
}

// Start performs one immediate pull to seed the record, subscribes to the
// push channel, and starts the poll and tick loops. It returns once the
// seed is in place; monitoring continues until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler for %s already started", s.txHash)
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx
	s.cancel = cancel

	s.seed(ctx)

	if s.stream != nil {
		unsubscribe, err := s.stream.Subscribe(s.txHash, func(u StatusUpdate) {
			s.dispatch(s.reconciler.Apply(u, SourcePush))
		})
		if err != nil {
			// Transport-level only: monitoring continues on the poll channel.
			s.logger.Warn("push subscription failed, falling back to polling", zap.Error(err))
		} else {
			s.unsubscribe = unsubscribe
		}
	}

	s.wg.Add(2)
	go s.pollLoop(ctx)
	go s.tickLoop(ctx)

	return nil
}

// ForceRefresh asks the upstream to re-check the swap, then pulls the fresh
// status. Concurrent calls while one is in flight coalesce into it. The
// refresh runs under the scheduler's own context and is tracked by the same
// wait group as the loops, so Stop both cancels it and waits it out.
func (s *Scheduler) ForceRefresh() {
	s.mu.Lock()
	ctx := s.ctx
	active := s.cancel != nil
	if active {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if !active {
		return
	}
	defer s.wg.Done()

	_, _, _ = s.refresh.Do(s.txHash, func() (interface{}, error) {
		if err := s.source.RequestRecheck(ctx, s.txHash); err != nil {
			s.logger.Warn("upstream recheck failed", zap.Error(err))
		}
		s.pollOnce(ctx, SourceManual)
		return nil, nil
	})
}

// Stop cancels the poll and tick loops and unsubscribes the push listener.
// Once it returns no further writes reach the record. Safe to call multiple
// times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	unsubscribe := s.unsubscribe
	s.cancel = nil
	s.unsubscribe = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	s.wg.Wait()
}

// Record returns the current view of the swap, if seeded.
func (s *Scheduler) Record() (SwapRecord, bool) {
	return s.reconciler.Snapshot()
}

func (s *Scheduler) seed(ctx context.Context) {
	u, err := s.source.InitialStatus(ctx, s.txHash)
	if err != nil {
		// Seed optimistically: the deposit was just broadcast, so a
		// not-found or transport error simply means the upstream has not
		// seen it yet. The next cycle catches up.
		s.logger.Info("initial status unavailable, seeding as pending", zap.Error(err))
		u = StatusUpdate{TxHash: s.txHash}
	}
	s.dispatch(s.reconciler.Apply(u, SourceInitial))
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if err := s.sleep(ctx, PollInterval(s.pushAvailable())); err != nil {
			return
		}
		s.pollOnce(ctx, SourcePoll)
	}
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if err := s.sleep(ctx, tickInterval); err != nil {
			return
		}
		if rec, ok := s.reconciler.AdvanceTiming(); ok {
			if s.handlers.OnUpdate != nil {
				s.handlers.OnUpdate(rec)
			}
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context, source UpdateSource) {
	if ctx.Err() != nil {
		return
	}
	u, err := s.source.InitialStatus(ctx, s.txHash)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Swallowed: a single failed poll is not a swap failure.
		s.logger.Warn("status poll failed", zap.String("source", string(source)), zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.dispatch(s.reconciler.Apply(u, source))
}

func (s *Scheduler) pushAvailable() bool {
	s.mu.Lock()
	subscribed := s.unsubscribe != nil
	s.mu.Unlock()
	return subscribed && s.stream != nil && s.stream.Available()
}

func (s *Scheduler) dispatch(res ApplyResult) {
	if !res.Applied {
		return
	}
	if s.handlers.OnUpdate != nil {
		s.handlers.OnUpdate(res.Record)
	}
	if res.ErrorPopulated && res.Record.Error != nil && s.handlers.OnError != nil {
		s.handlers.OnError(*res.Record.Error)
	}
	if res.Record.Status.Succeeded() && s.gate.TryComplete(s.txHash) {
		if s.handlers.OnComplete != nil {
			s.handlers.OnComplete()
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
