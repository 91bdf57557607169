package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
	"github.com/k0kubun/redisd/internal/store"
)

func newTestRig() (*Dispatcher, *store.Store, *session.Client, *bytes.Buffer) {
	d := NewDispatcher()
	st := store.NewStore(2)
	buf := &bytes.Buffer{}
	w := resp.NewWriter(buf)
	client := session.New(1, "test", w)
	return d, st, client, buf
}

func exec(d *Dispatcher, st *store.Store, client *session.Client, buf *bytes.Buffer, args ...string) string {
	buf.Reset()
	d.Execute(st, client, client.Writer, args, time.Now())
	client.Writer.Flush()
	return buf.String()
}

func TestSetGetRoundTrip(t *testing.T) {
	d, st, client, buf := newTestRig()
	if got := exec(d, st, client, buf, "SET", "k", "v"); got != "+OK\r\n" {
		t.Fatalf("SET = %q", got)
	}
	if got := exec(d, st, client, buf, "GET", "k"); got != "$1\r\nv\r\n" {
		t.Fatalf("GET = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	d, st, client, buf := newTestRig()
	got := exec(d, st, client, buf, "NOSUCHCMD", "x")
	if !strings.HasPrefix(got, "-ERR unknown command") {
		t.Fatalf("got %q", got)
	}
}

func TestArityRejected(t *testing.T) {
	d, st, client, buf := newTestRig()
	got := exec(d, st, client, buf, "GET")
	if !strings.HasPrefix(got, "-ERR syntax error") {
		t.Fatalf("got %q", got)
	}
}

func TestAuthGate(t *testing.T) {
	d, st, client, buf := newTestRig()
	d.Password = "secret"

	got := exec(d, st, client, buf, "GET", "k")
	if !strings.HasPrefix(got, "-NOAUTH") {
		t.Fatalf("expected NOAUTH before AUTH, got %q", got)
	}

	got = exec(d, st, client, buf, "AUTH", "wrong")
	if !strings.HasPrefix(got, "-ERR invalid password") {
		t.Fatalf("expected invalid password, got %q", got)
	}

	got = exec(d, st, client, buf, "AUTH", "secret")
	if got != "+OK\r\n" {
		t.Fatalf("AUTH = %q", got)
	}
	got = exec(d, st, client, buf, "GET", "k")
	if got != "$-1\r\n" {
		t.Fatalf("GET after auth = %q", got)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	d, st, client, buf := newTestRig()
	d.ReadOnly = func() bool { return true }

	got := exec(d, st, client, buf, "SET", "k", "v")
	if !strings.HasPrefix(got, "-READONLY") {
		t.Fatalf("expected READONLY, got %q", got)
	}
	// Reads still pass through.
	got = exec(d, st, client, buf, "GET", "k")
	if got != "$-1\r\n" {
		t.Fatalf("GET under read-only = %q", got)
	}
}

func TestMultiExecQueuesAndReplays(t *testing.T) {
	d, st, client, buf := newTestRig()

	if got := exec(d, st, client, buf, "MULTI"); got != "+OK\r\n" {
		t.Fatalf("MULTI = %q", got)
	}
	if got := exec(d, st, client, buf, "SET", "k", "v"); got != "+QUEUED\r\n" {
		t.Fatalf("queued SET = %q", got)
	}
	if got := exec(d, st, client, buf, "GET", "k"); got != "+QUEUED\r\n" {
		t.Fatalf("queued GET = %q", got)
	}
	got := exec(d, st, client, buf, "EXEC")
	if got != "*2\r\n+OK\r\n$1\r\nv\r\n" {
		t.Fatalf("EXEC = %q", got)
	}
}

func TestMultiDirtyAbortsExec(t *testing.T) {
	d, st, client, buf := newTestRig()
	exec(d, st, client, buf, "MULTI")
	got := exec(d, st, client, buf, "NOSUCHCMD")
	if !strings.HasPrefix(got, "-ERR unknown command") {
		t.Fatalf("queue-time unknown command = %q", got)
	}
	got = exec(d, st, client, buf, "EXEC")
	if !strings.HasPrefix(got, "-EXECABORT") {
		t.Fatalf("expected EXECABORT, got %q", got)
	}
}

func TestWatchAbortsExecOnExternalWrite(t *testing.T) {
	d, st, client, buf := newTestRig()
	exec(d, st, client, buf, "SET", "k", "v1")
	exec(d, st, client, buf, "WATCH", "k")
	exec(d, st, client, buf, "MULTI")
	exec(d, st, client, buf, "GET", "k")

	// A different connection mutates the watched key before EXEC.
	other := session.New(2, "other", client.Writer)
	otherBuf := &bytes.Buffer{}
	otherW := resp.NewWriter(otherBuf)
	d.Execute(st, other, otherW, []string{"SET", "k", "v2"}, time.Now())

	got := exec(d, st, client, buf, "EXEC")
	if got != "*-1\r\n" {
		t.Fatalf("expected aborted EXEC, got %q", got)
	}
}

func TestOnWriteFiresForWritesOnly(t *testing.T) {
	d, st, client, buf := newTestRig()
	var calls []string
	var dbSeen []int
	d.OnWrite = func(args []string, dbIndex int) {
		calls = append(calls, args[0])
		dbSeen = append(dbSeen, dbIndex)
	}
	exec(d, st, client, buf, "GET", "k")
	exec(d, st, client, buf, "SET", "k", "v")
	if len(calls) != 1 || calls[0] != "SET" {
		t.Fatalf("OnWrite calls = %v", calls)
	}
	if dbSeen[0] != 0 {
		t.Fatalf("OnWrite dbIndex = %v", dbSeen)
	}
}

func TestCoordinatorBackedAdminCommands(t *testing.T) {
	d, st, client, buf := newTestRig()
	var saved bool
	d.Coordinator = &Coordinator{
		Databases:    2,
		Save:         func() error { saved = true; return nil },
		LastSaveUnix: func() int64 { return 42 },
	}

	if got := exec(d, st, client, buf, "LASTSAVE"); got != ":42\r\n" {
		t.Fatalf("LASTSAVE = %q", got)
	}
	if got := exec(d, st, client, buf, "SAVE"); got != "+OK\r\n" || !saved {
		t.Fatalf("SAVE = %q, saved=%v", got, saved)
	}
	if got := exec(d, st, client, buf, "CONFIG", "GET", "databases"); got != "*2\r\n$9\r\ndatabases\r\n$1\r\n2\r\n" {
		t.Fatalf("CONFIG GET databases = %q", got)
	}
}

func TestDumpRestoreRoundTrip(t *testing.T) {
	d, st, client, buf := newTestRig()
	exec(d, st, client, buf, "SET", "k", "hello")

	buf.Reset()
	d.Execute(st, client, client.Writer, []string{"DUMP", "k"}, time.Now())
	client.Writer.Flush()
	dumped := buf.String()
	if !strings.HasPrefix(dumped, "$") {
		t.Fatalf("DUMP = %q", dumped)
	}
	// Extract the bulk payload body between the header and trailing CRLF.
	body := dumped[strings.Index(dumped, "\r\n")+2 : len(dumped)-2]

	got := exec(d, st, client, buf, "RESTORE", "k2", "0", body)
	if got != "+OK\r\n" {
		t.Fatalf("RESTORE = %q", got)
	}
	if got := exec(d, st, client, buf, "GET", "k2"); got != "$5\r\nhello\r\n" {
		t.Fatalf("GET k2 after RESTORE = %q", got)
	}

	got = exec(d, st, client, buf, "RESTORE", "k2", "0", body)
	if !strings.HasPrefix(got, "-BUSYKEY") {
		t.Fatalf("expected BUSYKEY, got %q", got)
	}
}
