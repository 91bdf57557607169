package command

import (
	"time"

	"github.com/k0kubun/redisd/internal/blocking"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
	"github.com/k0kubun/redisd/internal/store"
)

// Context is everything a handler needs: the resolved database, the raw
// arguments, the connection's session state, and the means to write a
// reply, request a block, or signal the connection's role has changed
// (MONITOR/SLAVEOF).
type Context struct {
	Store    *store.Store
	DB       *store.Database
	Client   *session.Client
	W        *resp.Writer
	Blocking *blocking.Registry
	Now      time.Time
	Args     []string // full argument vector, Args[0] is the command name
	InExec   bool     // true while replaying a queued EXEC command
}

// arg returns Args[i] (1-indexed past the command name) or "" if absent.
func (c *Context) arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// lock acquires the database's write lock unless a whole EXEC replay already
// holds it (spec.md §5, §4.5), returning the matching unlock func. Call as
// `defer ctx.lock()()`.
func (c *Context) lock() func() {
	if c.InExec {
		return func() {}
	}
	c.DB.Lock()
	return c.DB.Unlock
}

// rlock is lock's read-only counterpart.
func (c *Context) rlock() func() {
	if c.InExec {
		return func() {}
	}
	c.DB.RLock()
	return c.DB.RUnlock
}
