package registry

import (
	"sync"
	"time"
)

// GuardState is the per-key mutual-exclusion state.
type GuardState int

const (
	GuardIdle GuardState = iota
	GuardInFlight
)

// Guard is an explicit per-key mutual-exclusion token with a hard expiry:
// Idle -> InFlight on Acquire, back to Idle on Release or after the
// expiry elapses. It keeps at most one in-flight rebalance per user.
type Guard struct {
	mu      sync.Mutex
	held    map[string]time.Time
	expiry  time.Duration
	nowFunc func() time.Time
}

// NewGuard creates a guard with the given hard expiry.
func NewGuard(expiry time.Duration) *Guard {
	return &Guard{
		held:    make(map[string]time.Time),
		expiry:  expiry,
		nowFunc: time.Now,
	}
}

// Acquire takes the token for the key. Returns false while the key is
// in flight and its expiry has not elapsed.
func (g *Guard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if since, ok := g.held[key]; ok && g.nowFunc().Sub(since) < g.expiry {
		return false
	}
	g.held[key] = g.nowFunc()
	return true
}

// Release returns the key to Idle.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

// State reports the current state for the key, force-clearing it when
// the expiry has elapsed.
func (g *Guard) State(key string) GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()

	since, ok := g.held[key]
	if !ok {
		return GuardIdle
	}
	if g.nowFunc().Sub(since) >= g.expiry {
		delete(g.held, key)
		return GuardIdle
	}
	return GuardInFlight
}

// Len returns the number of keys currently in flight.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	now := g.nowFunc()
	for key, since := range g.held {
		if now.Sub(since) >= g.expiry {
			delete(g.held, key)
			continue
		}
		n++
	}
	return n
}
