package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crosswallet/pkg/monitor"
)

const (
	dialTimeout      = 10 * time.Second
	reconnectBackoff = 5 * time.Second
)

// SwapEventStream implements the monitor's push channel over a websocket
// feed of swap status events. Subscriptions are filtered by transaction
// hash at the subscription boundary, so handlers never see events for other
// swaps. Disconnects are transport errors: the stream reconnects with
// backoff and reports unavailable in between, which is the signal the
// scheduler uses to tighten its poll cadence.
type SwapEventStream struct {
	url    string
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    int
	subs      map[string]map[int]func(monitor.StatusUpdate)

	cancel context.CancelFunc
	done   chan struct{}
}

// swapEvent is the wire shape of one pushed status event. Fields other than
// txHash are optional: events carry whichever subset changed.
type swapEvent struct {
	TxHash                        string             `json:"txHash"`
	Status                        string             `json:"status,omitempty"`
	Confirmations                 *int               `json:"confirmations,omitempty"`
	RequiredConfirmations         *int               `json:"requiredConfirmations,omitempty"`
	OutboundConfirmations         *int               `json:"outboundConfirmations,omitempty"`
	OutboundRequiredConfirmations *int               `json:"outboundRequiredConfirmations,omitempty"`
	OutputDetectedAt              *time.Time         `json:"outputDetectedAt,omitempty"`
	OutboundTxHash                string             `json:"outboundTxHash,omitempty"`
	RouterStatus                  string             `json:"routerStatus,omitempty"`
	ElapsedSeconds                *float64           `json:"elapsedSeconds,omitempty"`
	StageExpectedSeconds          *float64           `json:"stageExpectedSeconds,omitempty"`
	Error                         *monitor.SwapError `json:"error,omitempty"`
}

// NewSwapEventStream creates a stream for the given websocket URL. An empty
// URL yields a stream that never becomes available; the scheduler then
// polls at its primary cadence.
func NewSwapEventStream(url string, logger *zap.Logger) *SwapEventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapEventStream{
		url:    url,
		logger: logger.Named("events"),
		subs:   make(map[string]map[int]func(monitor.StatusUpdate)),
	}
}

// Start connects and keeps the connection alive until the context is
// canceled or Close is called.
func (s *SwapEventStream) Start(ctx context.Context) {
	if s.url == "" {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Close tears the connection down. Safe to call without Start or twice.
func (s *SwapEventStream) Close() {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.cancel = nil
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// Available reports whether the push channel currently has a live
// connection.
func (s *SwapEventStream) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Subscribe registers a handler for events whose txHash matches. The
// returned func removes the subscription and may be called more than once.
func (s *SwapEventStream) Subscribe(txHash string, handler func(monitor.StatusUpdate)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.subs[txHash] == nil {
		s.subs[txHash] = make(map[int]func(monitor.StatusUpdate))
	}
	s.subs[txHash][id] = handler

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if handlers, ok := s.subs[txHash]; ok {
				delete(handlers, id)
				if len(handlers) == 0 {
					delete(s.subs, txHash)
				}
			}
		})
	}
	return unsubscribe, nil
}

func (s *SwapEventStream) run(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("websocket connect failed, retrying", zap.Error(err))
			if !sleepCtx(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		s.readLoop(ctx)

		s.mu.Lock()
		s.connected = false
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("websocket connection lost, reconnecting")
		if !sleepCtx(ctx, reconnectBackoff) {
			return
		}
	}
}

func (s *SwapEventStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("push channel connected", zap.String("url", s.url))
	return nil
}

func (s *SwapEventStream) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var ev swapEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("dropping malformed swap event", zap.Error(err))
			continue
		}
		if ev.TxHash == "" {
			continue
		}

		s.deliver(ev)
	}
}

func (s *SwapEventStream) deliver(ev swapEvent) {
	u := eventToUpdate(ev)

	s.mu.Lock()
	handlers := make([]func(monitor.StatusUpdate), 0, len(s.subs[ev.TxHash]))
	for _, h := range s.subs[ev.TxHash] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(u)
	}
}

func eventToUpdate(ev swapEvent) monitor.StatusUpdate {
	u := monitor.StatusUpdate{
		TxHash:                        ev.TxHash,
		Confirmations:                 ev.Confirmations,
		RequiredConfirmations:         ev.RequiredConfirmations,
		OutboundConfirmations:         ev.OutboundConfirmations,
		OutboundRequiredConfirmations: ev.OutboundRequiredConfirmations,
		OutputDetectedAt:              ev.OutputDetectedAt,
		Error:                         ev.Error,
	}
	if ev.Status != "" {
		token := monitor.StatusToken(ev.Status)
		u.Status = &token
	}
	if ev.OutboundTxHash != "" || ev.RouterStatus != "" {
		u.RouterData = &monitor.RouterData{
			OutboundTxHash: ev.OutboundTxHash,
			RouterStatus:   ev.RouterStatus,
		}
	}
	if ev.ElapsedSeconds != nil || ev.StageExpectedSeconds != nil {
		timing := monitor.TimingUpdate{}
		if ev.ElapsedSeconds != nil {
			timing.ElapsedSeconds = *ev.ElapsedSeconds
		}
		if ev.StageExpectedSeconds != nil {
			timing.StageExpectedSeconds = *ev.StageExpectedSeconds
		}
		u.Timing = &timing
	}
	return u
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
