package monitor

import "sync"

// CompletionGate is a one-shot latch per transaction hash. Push, poll, and
// manual refresh can all observe the same completion; anything that needs a
// terminal side effect (celebration, completion callback) routes through
// TryComplete instead of testing the status token directly.
type CompletionGate struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewCompletionGate builds an empty gate. State lives for the monitoring
// session only.
func NewCompletionGate() *CompletionGate {
	return &CompletionGate{seen: make(map[string]struct{})}
}

// TryComplete returns true only the first time it is called for txHash.
func (g *CompletionGate) TryComplete(txHash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[txHash]; ok {
		return false
	}
	g.seen[txHash] = struct{}{}
	return true
}

// Completed reports whether txHash already passed through the gate.
func (g *CompletionGate) Completed(txHash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[txHash]
	return ok
}
