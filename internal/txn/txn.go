// Package txn holds the pure per-connection transaction state MULTI/EXEC/
// WATCH/DISCARD manipulate (spec.md §4.5). It only tracks state; the
// dispatcher in internal/command performs the actual queuing and replay.
package txn

import "time"

// WatchEntry snapshots a watched key's last-modified time (and whether it
// existed at all) at the moment WATCH ran, so EXEC can detect any write that
// happened since — including a delete or a fresh creation.
type WatchEntry struct {
	DBIndex      int
	Key          string
	Existed      bool
	LastModified time.Time
}

// State is embedded in a connection's session to track queued commands and
// watched keys between MULTI and EXEC/DISCARD.
type State struct {
	InMulti bool
	Dirty   bool // set once if a command was rejected while queuing (bad arity, unknown command)
	Queue   [][]string
	Watches []WatchEntry
}

// Multi begins queuing. It is an error (left to the caller) to call this
// when already in a transaction.
func (s *State) Multi() {
	s.InMulti = true
	s.Dirty = false
	s.Queue = nil
}

// Enqueue appends a validated command to the queue.
func (s *State) Enqueue(args []string) {
	s.Queue = append(s.Queue, args)
}

// MarkDirty records that queuing itself failed (EXEC must then abort without
// running anything), per spec.md §4.5.
func (s *State) MarkDirty() {
	s.Dirty = true
}

// Reset clears transaction state, used by both DISCARD and EXEC once they've
// taken a copy of the queue.
func (s *State) Reset() {
	s.InMulti = false
	s.Dirty = false
	s.Queue = nil
	s.Watches = nil
}

// Watch records a key to observe. It does not check InMulti; rejecting
// WATCH inside MULTI is left to the caller.
func (s *State) Watch(e WatchEntry) {
	for _, existing := range s.Watches {
		if existing.DBIndex == e.DBIndex && existing.Key == e.Key {
			return
		}
	}
	s.Watches = append(s.Watches, e)
}

// Unwatch clears the watch set without touching transaction queuing state.
func (s *State) Unwatch() {
	s.Watches = nil
}
