// Package repl implements the replication and MONITOR fan-out (spec.md
// §4.7): a registry of follower and monitor connections a primary writes
// every executed write command (or, for monitors, a human-readable log
// line) to, plus the follower-side thin client that bootstraps from a
// SLAVEOF/REPLICAOF command (spec.md §9's "encapsulate global state behind
// a small interface", grounded on original_source/master.cpp).
package repl

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/k0kubun/redisd/internal/logutil"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
)

// Hub is the process-wide fan-out coordinator for replication and MONITOR,
// the "global state encapsulated behind a small interface" spec.md §9 asks
// for instead of ambient package-level state.
type Hub struct {
	mu         sync.Mutex
	followers  map[int64]*session.Client
	monitors   map[int64]*session.Client
	lastDBSent int
	Logger     logutil.Logger
}

func NewHub(logger logutil.Logger) *Hub {
	if logger == nil {
		logger = logutil.NullLogger{}
	}
	return &Hub{
		followers: make(map[int64]*session.Client),
		monitors:  make(map[int64]*session.Client),
		Logger:    logger,
	}
}

// AddFollower registers c to receive every subsequent write command,
// serialized in RESP, until it disconnects or RemoveFollower is called.
func (h *Hub) AddFollower(c *session.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Replica = true
	h.followers[c.ID] = c
}

func (h *Hub) RemoveFollower(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.followers, id)
}

// AddMonitor registers c to receive the human-readable command feed.
func (h *Hub) AddMonitor(c *session.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Monitor = true
	h.monitors[c.ID] = c
}

func (h *Hub) RemoveMonitor(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.monitors, id)
}

// Remove drops id from both registries, called once on connection close.
func (h *Hub) Remove(id int64) {
	h.RemoveFollower(id)
	h.RemoveMonitor(id)
}

// OnWrite fans args out to every follower (as a RESP request) and every
// monitor (as a timestamped one-line log), per spec.md §4.7. A failed write
// to one follower is logged and does not abort the fan-out for the rest;
// the follower stays registered until its connection closes. The command
// that triggered the write has already succeeded and is not rolled back.
func (h *Hub) OnWrite(args []string, now time.Time, dbIndex int) {
	h.mu.Lock()
	followers := make([]*session.Client, 0, len(h.followers))
	for _, c := range h.followers {
		followers = append(followers, c)
	}
	monitors := make([]*session.Client, 0, len(h.monitors))
	for _, c := range h.monitors {
		monitors = append(monitors, c)
	}
	needSelect := dbIndex != h.lastDBSent
	if needSelect {
		h.lastDBSent = dbIndex
	}
	h.mu.Unlock()

	if len(followers) > 0 {
		var encoded []byte
		if needSelect {
			encoded = append(encoded, resp.EncodeRequest([]string{"SELECT", strconv.Itoa(dbIndex)})...)
		}
		encoded = append(encoded, resp.EncodeRequest(args)...)
		var g errgroup.Group
		for _, c := range followers {
			c := c
			g.Go(func() error {
				c.WriteMu.Lock()
				defer c.WriteMu.Unlock()
				c.Writer.Raw(encoded)
				return c.Writer.Flush()
			})
		}
		if err := g.Wait(); err != nil {
			h.Logger.Printf("repl: follower write failed: %v", err)
		}
	}

	if len(monitors) > 0 {
		line := fmt.Sprintf("+%d.%06d [%d %s] %s\r\n",
			now.Unix(), now.Nanosecond()/1000, dbIndex, "local", quoteArgs(args))
		var g errgroup.Group
		for _, c := range monitors {
			c := c
			g.Go(func() error {
				c.WriteMu.Lock()
				defer c.WriteMu.Unlock()
				c.Writer.Raw([]byte(line))
				return c.Writer.Flush()
			})
		}
		if err := g.Wait(); err != nil {
			h.Logger.Printf("repl: monitor write failed: %v", err)
		}
	}
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
	}
	return strings.Join(quoted, " ")
}
