package engine

import (
	"sync"
	"time"
)

// CadenceGate throttles pipeline dispatches per (pipeline, tenant) key.
//
// A window is consumed on a dispatched (non-gated) attempt, before the
// action is invoked, and a failing action does NOT reclaim the slot: the
// next eligible attempt waits out the full window. This trades prompt
// retry for protection against runaway retry storms under persistent
// failure.
type CadenceGate struct {
	mu    sync.Mutex
	last  map[string]time.Time
	clock Clock
}

// NewCadenceGate creates a gate reading time from the given clock.
func NewCadenceGate(clock Clock) *CadenceGate {
	return &CadenceGate{
		last:  make(map[string]time.Time),
		clock: clock,
	}
}

// Ready reports whether the key's window has elapsed (or was never
// consumed). It does not consume the slot.
func (g *CadenceGate) Ready(key string, window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.last[key]
	if !ok {
		return true
	}
	return !g.clock.Now().Before(last.Add(window))
}

// Consume marks the key's window as spent at the current instant.
func (g *CadenceGate) Consume(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[key] = g.clock.Now()
}

// LastDispatch returns when the key was last consumed.
// Used for diagnostics and testing.
func (g *CadenceGate) LastDispatch(key string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.last[key]
	return t, ok
}
