package playback

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrTransitionInFlight is returned when a transition is requested while
// another one holds the guard. The request is rejected outright, never
// queued: the in-flight transition is responsible for reaching a terminal
// state on its own.
var ErrTransitionInFlight = errors.New("a transition is already in flight")

// Guard is the per-guild exclusive flag serializing transitions. Acquired
// before any normalize + state change, released on every exit path.
type Guard struct {
	held atomic.Bool
}

// TryAcquire attempts to take the guard without blocking.
func (g *Guard) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the guard. Safe to call when not held; the connection
// supervisor force-releases during disconnect cleanup.
func (g *Guard) Release() {
	g.held.Store(false)
}

// Held reports whether a transition currently holds the guard.
func (g *Guard) Held() bool {
	return g.held.Load()
}
