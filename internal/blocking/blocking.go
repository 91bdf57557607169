// Package blocking implements cross-client wakeup for BLPOP/BRPOP/
// BRPOPLPUSH: a handler that finds nothing to pop waits on a broadcast
// signal that any list push raises, re-checking its own keys each time it
// wakes, until data appears or its timeout elapses (spec.md §4.6).
package blocking

import (
	"sync"
	"time"
)

// Registry is the process-wide (or per-database) wakeup broadcaster. A
// single broadcast channel is swapped out on every NotifyPush so that every
// currently-waiting goroutine observes the close and re-evaluates; this is
// a simpler stand-in for the per-key waiter lists the original keeps, and
// is documented as such in DESIGN.md.
type Registry struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{ch: make(chan struct{})}
}

// Signal returns the current wakeup channel; it closes the moment any push
// happens anywhere, regardless of key, so callers must re-check their own
// keys after waking.
func (r *Registry) Signal() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

// NotifyPush wakes every waiter. Called after any command pushes into a
// list and transitions a key from absent/empty to non-empty.
func (r *Registry) NotifyPush() {
	r.mu.Lock()
	old := r.ch
	r.ch = make(chan struct{})
	r.mu.Unlock()
	close(old)
}

// Wait blocks until NotifyPush fires, deadline elapses (zero deadline means
// wait indefinitely), or done fires (the client's connection closed).
// It reports which of those happened.
func (r *Registry) Wait(deadline time.Time, done <-chan struct{}) (woken bool) {
	signal := r.Signal()
	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return false
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case <-signal:
		return true
	case <-timeoutCh:
		return false
	case <-done:
		return false
	}
}
