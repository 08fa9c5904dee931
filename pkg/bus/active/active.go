// Package active implements a capability-based active-reference lifecycle
// state machine: a single atomic counter encoding {new, active(n),
// deactivated(n), release-direct, release, drained}, a wait-queue-backed
// drain protocol, and wait-free acquire/release of short-lived
// references.
//
// The counter bands onto one int64:
//
//	new              -> sentinel NEW
//	active(n)        -> n >= 0
//	deactivated(n)   -> BIAS + n, n >= 0
//	release-direct   -> sentinel RELEASE_DIRECT
//	release          -> sentinel RELEASE
//	drained          -> sentinel DRAINED
//
// Deactivate adds BIAS to whatever active count was outstanding so that
// every reference still holding a Guard can find and decrement the same
// counter down through the deactivated(n) band; the last one to reach
// exactly BIAS wakes the Drain waiter.
package active

import (
	"sync"
	"sync/atomic"

	"github.com/jabolina/go-bus/pkg/bus/definition"
)

// Sentinel and bias encodings for the counter. BIAS is chosen far enough
// from zero that no realistic active count collides with it, and its
// negation does not overflow int64.
const (
	// NEW marks an object that activate has never succeeded on.
	NEW int64 = -1 << 62

	// BIAS is added to the active count on deactivate, so any
	// deactivated(n) encoding (BIAS+n, n>=0) stays below any possible
	// active(n) encoding (n>=0) and away from the sentinels.
	BIAS int64 = -1 << 32

	// RELEASEDIRECT marks "deactivated while still new": never activated.
	RELEASEDIRECT int64 = -1<<62 + 1

	// RELEASE marks "a thread is running the release callback".
	RELEASE int64 = -1<<62 + 2

	// DRAINED marks "release callback has completed".
	DRAINED int64 = -1<<62 + 3
)

// ReleaseFunc is the single-entry callback invoked exactly once, by
// exactly one caller of Drain, once every acquired reference has been
// released. No polymorphism beyond "one function to run" is needed.
type ReleaseFunc func()

// Active is the lifecycle state machine. Zero value is not usable; build
// one with New.
type Active struct {
	count int64

	mu       sync.Mutex
	cond     *sync.Cond
	draining bool
}

// New returns an Active in the "new" state.
func New() *Active {
	a := &Active{count: NEW}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Activate transitions new -> active(0). Returns true exactly once per
// object; subsequent calls (concurrent or not) return false.
func (a *Active) Activate() bool {
	return atomic.CompareAndSwapInt64(&a.count, NEW, 0)
}

// Guard is the handle returned by a successful Acquire. It MUST be
// released exactly once via Release.
type Guard struct {
	a *Active
}

// Release drops the reference this guard represents.
func (g *Guard) Release() {
	g.a.release()
}

// Acquire atomically increments count iff count >= 0 (i.e. the object is
// active). Returns (nil, false) if the object is new or deactivated —
// callers must treat failure as "shutting down".
func (a *Active) Acquire() (*Guard, bool) {
	for {
		v := atomic.LoadInt64(&a.count)
		if v < 0 {
			return nil, false
		}
		if atomic.CompareAndSwapInt64(&a.count, v, v+1) {
			return &Guard{a: a}, true
		}
	}
}

// release is the inverse of Acquire's increment. If the post-decrement
// value lands exactly on BIAS, the drain waiter (if any) is woken.
func (a *Active) release() {
	v := atomic.AddInt64(&a.count, -1)
	if v == BIAS {
		a.mu.Lock()
		a.cond.Broadcast()
		a.mu.Unlock()
	}
}

// Deactivate stops new acquisitions from succeeding. Idempotent: a second
// concurrent call is a no-op. If the object was still new, it jumps
// straight to RELEASEDIRECT (never having been active); otherwise BIAS is
// added to the current active count so outstanding references can still
// find and decrement it down through the deactivated(n) band.
func (a *Active) Deactivate() {
	if atomic.CompareAndSwapInt64(&a.count, NEW, RELEASEDIRECT) {
		return
	}
	for {
		v := atomic.LoadInt64(&a.count)
		if v < 0 {
			// Already deactivated (or mid/post release) by someone else.
			return
		}
		if atomic.CompareAndSwapInt64(&a.count, v, v+BIAS) {
			return
		}
	}
}

// Drain blocks until every acquired reference has been released, then
// runs releaseCB exactly once across however many concurrent Drain callers
// there are, and publishes DRAINED. Precondition: Deactivate has already
// been called (or been observed to have returned) by the caller or a
// concurrent caller. Returns whether THIS caller performed the release.
//
// Drain is not cancellable once entered; it may block arbitrarily long
// if holders never release.
func (a *Active) Drain(releaseCB ReleaseFunc) bool {
	a.mu.Lock()
	for {
		v := atomic.LoadInt64(&a.count)
		if v == RELEASEDIRECT || v == BIAS {
			break
		}
		if v == RELEASE || v == DRAINED {
			// Someone else is already running (or has run) the release.
			break
		}
		a.cond.Wait()
	}
	a.mu.Unlock()

	if atomic.CompareAndSwapInt64(&a.count, RELEASEDIRECT, RELEASE) ||
		atomic.CompareAndSwapInt64(&a.count, BIAS, RELEASE) {
		releaseCB()
		atomic.StoreInt64(&a.count, DRAINED)
		a.mu.Lock()
		a.cond.Broadcast()
		a.mu.Unlock()
		return true
	}

	a.mu.Lock()
	for atomic.LoadInt64(&a.count) != DRAINED {
		a.cond.Wait()
	}
	a.mu.Unlock()
	return false
}

// Destroy asserts the object has fully drained. A violation is logged as
// a Fatal-class invariant violation rather than panicking the caller's
// goroutine outright; callers that need a hard stop should check the
// returned bool.
func (a *Active) Destroy() bool {
	v := atomic.LoadInt64(&a.count)
	if v != DRAINED {
		definition.LogInvariantViolation("active.Destroy", errNotDrained(v))
		return false
	}
	return true
}

// IsDrained reports whether the release callback has completed.
func (a *Active) IsDrained() bool {
	return atomic.LoadInt64(&a.count) == DRAINED
}

// State is a human-readable snapshot of the current band, useful for
// logging and tests; it is not part of the synchronization protocol.
type State int

const (
	StateNew State = iota
	StateActive
	StateDeactivated
	StateReleaseDirect
	StateRelease
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	case StateReleaseDirect:
		return "release-direct"
	case StateRelease:
		return "release"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// Snapshot returns the current band and, for active/deactivated, the
// outstanding count n.
func (a *Active) Snapshot() (State, int64) {
	v := atomic.LoadInt64(&a.count)
	switch {
	case v == NEW:
		return StateNew, 0
	case v == RELEASEDIRECT:
		return StateReleaseDirect, 0
	case v == RELEASE:
		return StateRelease, 0
	case v == DRAINED:
		return StateDrained, 0
	case v >= 0:
		return StateActive, v
	default:
		return StateDeactivated, v - BIAS
	}
}
