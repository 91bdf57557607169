// Package session holds per-connection state that outlives any single
// command: the selected database, authentication, transaction/watch state,
// and the small set of connection modes (MONITOR, replication link) a
// command can switch a connection into (spec.md §4.2, §4.5).
package session

import (
	"sync"

	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/txn"
)

// Client is one accepted connection's state. Command handlers reach it
// through command.Context; the server loop owns its lifetime.
type Client struct {
	mu sync.Mutex

	ID         int64
	RemoteAddr string
	Name       string

	DBIndex       int
	Authenticated bool

	txn.State

	Monitor bool // this connection issued MONITOR and receives the command feed
	Replica bool // this connection issued SYNC and receives the write feed

	// WriteMu guards Writer for connections that can receive output from a
	// goroutine other than their own (replication and MONITOR fan-out);
	// internal/repl holds it around every fan-out write.
	WriteMu sync.Mutex
	Writer  *resp.Writer
	Done    chan struct{} // closed when the connection goroutine exits
}

func New(id int64, remoteAddr string, w *resp.Writer) *Client {
	return &Client{
		ID:         id,
		RemoteAddr: remoteAddr,
		Writer:     w,
		Done:       make(chan struct{}),
	}
}

func (c *Client) Lock()   { c.mu.Lock() }
func (c *Client) Unlock() { c.mu.Unlock() }

func (c *Client) Close() {
	select {
	case <-c.Done:
	default:
		close(c.Done)
	}
}
