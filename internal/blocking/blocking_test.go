package blocking

import (
	"testing"
	"time"
)

func TestWaitWakesOnNotifyPush(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	woke := make(chan bool, 1)
	go func() {
		woke <- r.Wait(time.Time{}, done)
	}()
	time.Sleep(10 * time.Millisecond)
	r.NotifyPush()
	select {
	case w := <-woke:
		if !w {
			t.Fatal("expected Wait to report woken=true")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after NotifyPush")
	}
}

func TestWaitTimesOut(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	deadline := time.Now().Add(20 * time.Millisecond)
	if woke := r.Wait(deadline, done); woke {
		t.Fatal("expected timeout, not woken")
	}
}

func TestWaitReturnsImmediatelyIfDeadlinePassed(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	if woke := r.Wait(time.Now().Add(-time.Second), done); woke {
		t.Fatal("expected immediate false for an already-past deadline")
	}
}

func TestWaitUnblocksOnDone(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	woke := make(chan bool, 1)
	go func() {
		woke <- r.Wait(time.Time{}, done)
	}()
	time.Sleep(10 * time.Millisecond)
	close(done)
	select {
	case w := <-woke:
		if w {
			t.Fatal("expected woken=false when done fires")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after done closed")
	}
}

func TestNotifyPushWakesAllWaiters(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	const n = 5
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() { results <- r.Wait(time.Time{}, done) }()
	}
	time.Sleep(10 * time.Millisecond)
	r.NotifyPush()
	for i := 0; i < n; i++ {
		select {
		case w := <-results:
			if !w {
				t.Fatal("expected all waiters to wake")
			}
		case <-time.After(time.Second):
			t.Fatal("not all waiters woke")
		}
	}
}
