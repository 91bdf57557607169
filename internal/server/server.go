// Package server wires every other package together: the accept loop, one
// goroutine per connection, the SYNC handshake a follower's SLAVEOF
// triggers on this side, and the SHUTDOWN coordinator (SPEC_FULL.md §0).
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/k0kubun/redisd/internal/command"
	"github.com/k0kubun/redisd/internal/config"
	"github.com/k0kubun/redisd/internal/logutil"
	"github.com/k0kubun/redisd/internal/repl"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
	"github.com/k0kubun/redisd/internal/snapshot"
	"github.com/k0kubun/redisd/internal/store"
)

// Server owns the listener, the keyspace, and every process-wide
// coordinator object (replication hub, master link, dispatcher). This is
// the single place that holds what spec.md §9 calls "shared process state",
// rather than scattering it across package-level globals.
type Server struct {
	cfg        config.Config
	store      *store.Store
	dispatcher *command.Dispatcher
	hub        *repl.Hub
	logger     logutil.Logger

	nextClientID int64
	lastSaveUnix int64

	muLink sync.Mutex
	link   *repl.Link

	listener net.Listener
	wg       sync.WaitGroup
	closing  int32
}

func New(cfg config.Config, logger logutil.Logger) *Server {
	if logger == nil {
		logger = logutil.NullLogger{}
	}
	st := store.NewStore(cfg.Databases)
	hub := repl.NewHub(logger)
	s := &Server{cfg: cfg, store: st, hub: hub, logger: logger}

	d := command.NewDispatcher()
	d.Password = cfg.Password
	d.OnWrite = func(args []string, dbIndex int) { hub.OnWrite(args, time.Now(), dbIndex) }
	d.ReadOnly = func() bool {
		s.muLink.Lock()
		defer s.muLink.Unlock()
		return s.link.Following()
	}
	d.Coordinator = &command.Coordinator{
		SnapshotPath:    cfg.SnapshotPath,
		Databases:       cfg.Databases,
		Save:            s.saveSnapshot,
		LastSaveUnix:    func() int64 { return atomic.LoadInt64(&s.lastSaveUnix) },
		RequestShutdown: s.Shutdown,
		ReplicaOf:       s.setReplicaOf,
	}
	s.dispatcher = d
	return s
}

// ListenAndServe binds cfg.Host:cfg.Port and accepts connections until
// Shutdown is called or the listener errors. It also loads an existing
// snapshot at startup and starts following cfg.ReplicaOf, if set.
func (s *Server) ListenAndServe() error {
	signal.Ignore(syscall.SIGPIPE)

	if s.cfg.SnapshotPath != "" {
		if _, err := os.Stat(s.cfg.SnapshotPath); err == nil {
			if err := s.loadSnapshot(); err != nil {
				s.logger.Printf("server: snapshot load failed: %v", err)
			} else {
				s.logger.Printf("server: loaded snapshot from %s", s.cfg.SnapshotPath)
			}
		}
	}

	if s.cfg.ReplicaOf != "" {
		if err := s.setReplicaOf(s.cfg.ReplicaOf); err != nil {
			s.logger.Printf("server: initial SLAVEOF failed: %v", err)
		}
	}

	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Printf("server: listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closing) == 1 {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops the accept loop and, if save is true (or a snapshot path
// is configured and the caller didn't say NOSAVE), writes a final snapshot
// first. It never blocks the calling connection's own reply.
func (s *Server) Shutdown(save bool) {
	if save && s.cfg.SnapshotPath != "" {
		if err := s.saveSnapshot(); err != nil {
			s.logger.Printf("server: snapshot save on shutdown failed: %v", err)
		}
	}
	atomic.StoreInt32(&s.closing, 1)
	if s.listener != nil {
		s.listener.Close()
	}
	go func() {
		s.wg.Wait()
		os.Exit(0)
	}()
}

func (s *Server) saveSnapshot() error {
	f, err := os.Create(s.cfg.SnapshotPath + ".tmp")
	if err != nil {
		return err
	}
	if err := snapshot.Save(f, s.store, time.Now()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.Name(), s.cfg.SnapshotPath); err != nil {
		return err
	}
	atomic.StoreInt64(&s.lastSaveUnix, time.Now().Unix())
	return nil
}

func (s *Server) loadSnapshot() error {
	f, err := os.Open(s.cfg.SnapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return snapshot.Load(f, s.store, time.Now())
}

func (s *Server) setReplicaOf(addr string) error {
	s.muLink.Lock()
	defer s.muLink.Unlock()
	if s.link != nil {
		s.link.Stop()
		s.link = nil
	}
	if addr == "" {
		return nil
	}
	link, err := repl.Follow(addr, s.store, s.dispatcher, func(err error) {
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Printf("server: master link closed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.link = link
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	id := atomic.AddInt64(&s.nextClientID, 1)
	br := bufio.NewReader(conn)
	w := resp.NewWriter(conn)
	client := session.New(id, conn.RemoteAddr().String(), w)
	client.DBIndex = 0
	defer func() {
		client.Close()
		s.hub.Remove(id)
	}()

	reader := resp.NewReader(br)
	for {
		args, err := reader.ReadRequest()
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		if len(args) == 1 && len(args[0]) == 4 && upperEqual(args[0], "SYNC") {
			s.serveSync(conn, client, w)
			return
		}
		s.dispatcher.Execute(s.store, client, w, args, time.Now())
		w.Flush()
		if client.Monitor {
			s.hub.AddMonitor(client)
		}
		select {
		case <-client.Done:
			return
		default:
		}
	}
}

// serveSync implements the primary side of initial sync (spec.md §4.7):
// generate a consistent snapshot, ship it as a bulk reply with no trailing
// CRLF (resp.Writer.File's convention for this same reason), then register
// the connection as a follower so every subsequent write streams to it.
func (s *Server) serveSync(conn net.Conn, client *session.Client, w *resp.Writer) {
	var buf writeBuffer
	now := time.Now()
	if err := snapshot.Save(&buf, s.store, now); err != nil {
		w.Error("ERR snapshot generation failed")
		w.Flush()
		return
	}
	w.Raw([]byte("$" + strconv.Itoa(len(buf.b)) + "\r\n"))
	w.Raw(buf.b)
	w.Flush()
	s.hub.AddFollower(client)

	// A follower only ever sends the initial SYNC; block here discarding
	// anything further until it disconnects, so the deferred cleanup in
	// handleConn runs at the right time.
	io.Copy(io.Discard, conn)
}

func upperEqual(s, upper string) bool {
	if len(s) != len(upper) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != upper[i] {
			return false
		}
	}
	return true
}

type writeBuffer struct{ b []byte }

func (w *writeBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
