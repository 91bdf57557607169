package txn

import (
	"testing"
	"time"
)

func TestResetClearsQueueAndDirty(t *testing.T) {
	var s State
	s.Multi()
	s.Enqueue([]string{"SET", "k", "v"})
	s.MarkDirty()
	if !s.InMulti || !s.Dirty || len(s.Queue) != 1 {
		t.Fatalf("state after enqueue+dirty = %+v", s)
	}
	s.Reset()
	if s.InMulti || s.Dirty || s.Queue != nil || s.Watches != nil {
		t.Fatalf("state after Reset = %+v", s)
	}
}

func TestWatchDeduplicatesSameKey(t *testing.T) {
	var s State
	now := time.Now()
	s.Watch(WatchEntry{DBIndex: 0, Key: "k", Existed: true, LastModified: now})
	s.Watch(WatchEntry{DBIndex: 0, Key: "k", Existed: true, LastModified: now.Add(time.Second)})
	if len(s.Watches) != 1 {
		t.Fatalf("expected dedup to 1 watch, got %d", len(s.Watches))
	}
	// Different DB index for the same key name is a distinct watch.
	s.Watch(WatchEntry{DBIndex: 1, Key: "k", Existed: true, LastModified: now})
	if len(s.Watches) != 2 {
		t.Fatalf("expected 2 watches across DBs, got %d", len(s.Watches))
	}
}

func TestUnwatchClearsWatchesOnly(t *testing.T) {
	var s State
	s.Multi()
	s.Watch(WatchEntry{DBIndex: 0, Key: "k"})
	s.Unwatch()
	if len(s.Watches) != 0 {
		t.Fatal("expected watches cleared")
	}
	if !s.InMulti {
		t.Fatal("Unwatch must not touch transaction queuing state")
	}
}
