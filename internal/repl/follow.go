package repl

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/k0kubun/redisd/internal/command"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
	"github.com/k0kubun/redisd/internal/snapshot"
	"github.com/k0kubun/redisd/internal/store"
)

// Link is the follower-side bootstrap and streaming client started by
// SLAVEOF/REPLICAOF (spec.md §9, original_source/master.cpp). It connects
// to a primary, loads the initial snapshot it replies with, then applies
// every subsequently streamed write command to st.
type Link struct {
	following int32
	cancel    func()
}

// Following reports whether this process currently has a live master link.
func (l *Link) Following() bool {
	return l != nil && atomic.LoadInt32(&l.following) == 1
}

// Stop tears down the current link, if any. Safe to call with no link active.
func (l *Link) Stop() {
	if l == nil || l.cancel == nil {
		return
	}
	l.cancel()
}

// Follow dials addr, performs the SYNC handshake, loads the received
// snapshot into st, and then streams+applies write commands forever (or
// until the connection drops or Stop is called). It returns once the
// snapshot is loaded; the streaming runs in its own goroutine, which calls
// onDone when the link ends.
func Follow(addr string, st *store.Store, dispatcher *command.Dispatcher, onDone func(error)) (*Link, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	link := &Link{}
	atomic.StoreInt32(&link.following, 1)
	link.cancel = func() {
		atomic.StoreInt32(&link.following, 0)
		conn.Close()
	}

	bw := bufio.NewWriter(conn)
	bw.WriteString("*1\r\n$4\r\nSYNC\r\n")
	if err := bw.Flush(); err != nil {
		conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	size, err := readBulkHeader(br)
	if err != nil {
		conn.Close()
		return nil, err
	}
	snapshotBytes := make([]byte, size)
	if _, err := io.ReadFull(br, snapshotBytes); err != nil {
		conn.Close()
		return nil, err
	}
	now := time.Now()
	if err := snapshot.Load(newByteReader(snapshotBytes), st, now); err != nil {
		conn.Close()
		return nil, err
	}

	go func() {
		defer func() {
			atomic.StoreInt32(&link.following, 0)
			conn.Close()
			if onDone != nil {
				onDone(err)
			}
		}()
		reader := resp.NewReader(br)
		replicaClient := session.New(-1, addr, resp.NewWriter(io.Discard))
		for {
			args, readErr := reader.ReadRequest()
			if readErr != nil {
				err = readErr
				return
			}
			if len(args) == 0 {
				continue
			}
			dispatcher.Dispatch(st, replicaClient, replicaClient.Writer, args, time.Now(), false)
		}
	}()

	return link, nil
}

func readBulkHeader(br *bufio.Reader) (int, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if len(line) == 0 || line[0] != '$' {
		return 0, fmt.Errorf("repl: expected bulk snapshot header, got %q", line)
	}
	return strconv.Atoi(line[1:])
}

type byteReader struct {
	b []byte
	i int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
