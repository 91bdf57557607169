package repl

import (
	"bytes"
	"testing"
	"time"

	"github.com/k0kubun/redisd/internal/logutil"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
)

func newTestFollower(id int64) (*session.Client, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	c := session.New(id, "follower", resp.NewWriter(buf))
	return c, buf
}

func TestOnWriteFansOutToFollowers(t *testing.T) {
	h := NewHub(logutil.NullLogger{})
	f1, buf1 := newTestFollower(1)
	f2, buf2 := newTestFollower(2)
	h.AddFollower(f1)
	h.AddFollower(f2)

	h.OnWrite([]string{"SET", "k", "v"}, time.Now(), 0)

	want := resp.EncodeRequest([]string{"SET", "k", "v"})
	if buf1.String() != string(want) || buf2.String() != string(want) {
		t.Fatalf("follower feeds = %q, %q", buf1.String(), buf2.String())
	}
}

func TestOnWritePrependsSelectOnDBChange(t *testing.T) {
	h := NewHub(logutil.NullLogger{})
	f, buf := newTestFollower(1)
	h.AddFollower(f)

	h.OnWrite([]string{"SET", "k", "v"}, time.Now(), 2)
	want := string(resp.EncodeRequest([]string{"SELECT", "2"})) + string(resp.EncodeRequest([]string{"SET", "k", "v"}))
	if buf.String() != want {
		t.Fatalf("first write on db 2 = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	h.OnWrite([]string{"SET", "k2", "v2"}, time.Now(), 2)
	if buf.String() != string(resp.EncodeRequest([]string{"SET", "k2", "v2"})) {
		t.Fatalf("second write on same db should not re-SELECT, got %q", buf.String())
	}

	buf.Reset()
	h.OnWrite([]string{"SET", "k3", "v3"}, time.Now(), 0)
	want = string(resp.EncodeRequest([]string{"SELECT", "0"})) + string(resp.EncodeRequest([]string{"SET", "k3", "v3"}))
	if buf.String() != want {
		t.Fatalf("db switch back to 0 = %q, want %q", buf.String(), want)
	}
}

func TestRemoveFollowerStopsFanOut(t *testing.T) {
	h := NewHub(logutil.NullLogger{})
	f, buf := newTestFollower(1)
	h.AddFollower(f)
	h.RemoveFollower(f.ID)

	h.OnWrite([]string{"SET", "k", "v"}, time.Now(), 0)
	if buf.Len() != 0 {
		t.Fatalf("removed follower should receive nothing, got %q", buf.String())
	}
}

func TestOnWriteFeedsMonitors(t *testing.T) {
	h := NewHub(logutil.NullLogger{})
	m, buf := newTestFollower(1)
	h.AddMonitor(m)

	h.OnWrite([]string{"SET", "k", "v"}, time.Now(), 0)
	if buf.Len() == 0 {
		t.Fatal("expected a monitor log line")
	}
	if buf.String()[0] != '+' {
		t.Fatalf("monitor line should be a status reply, got %q", buf.String())
	}
}
