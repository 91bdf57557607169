package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/k0kubun/redisd/internal/config"
	"github.com/k0kubun/redisd/internal/logutil"
)

// startTestServer binds an ephemeral loopback port and runs the accept loop
// in the background for the life of the test binary; there is no graceful
// shutdown call here because Server.Shutdown calls os.Exit, which would kill
// the test process itself.
func startTestServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Databases = 2
	s := New(cfg, logutil.NullLogger{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	deadline := time.Now().Add(time.Second)
	for s.listener == nil {
		select {
		case err := <-errCh:
			t.Fatalf("ListenAndServe exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("server never started listening")
		}
		time.Sleep(time.Millisecond)
	}
	return s.listener.Addr().String()
}

func TestServerRespondsToPing(t *testing.T) {
	addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if line != "+PONG\r\n" {
		t.Fatalf("PING reply = %q", line)
	}
}

func TestServerSetGetOverTheWire(t *testing.T) {
	addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$5\r\nhello\r\n"))
	line, _ := br.ReadString('\n')
	if line != "+OK\r\n" {
		t.Fatalf("SET reply = %q", line)
	}

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	line, _ = br.ReadString('\n')
	if line != "$5\r\n" {
		t.Fatalf("GET bulk header = %q", line)
	}
	body, _ := br.ReadString('\n')
	if body != "hello\r\n" {
		t.Fatalf("GET bulk body = %q", body)
	}
}
