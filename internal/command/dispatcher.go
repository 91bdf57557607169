// Package command implements the command table and dispatcher: name lookup,
// arity validation, the AUTH pre-dispatch gate, and MULTI-queue
// interception, per spec.md §4.2 and §4.5.
package command

import (
	"strings"
	"time"

	"github.com/k0kubun/redisd/internal/blocking"
	"github.com/k0kubun/redisd/internal/resp"
	"github.com/k0kubun/redisd/internal/session"
	"github.com/k0kubun/redisd/internal/store"
)

// HandlerFunc executes one command. It must write exactly one reply via
// ctx.W, or return an error that Dispatch turns into the error reply.
// Blocking pops wait inside the handler before writing their reply.
type HandlerFunc func(ctx *Context) error

// Descriptor is one command table entry (spec.md §4.2).
type Descriptor struct {
	Name         string
	MinArgc      int // total argc including the command name itself
	MaxArgc      int // -1 means unbounded
	Writing      bool
	CallableInTx bool // false for MULTI/EXEC/DISCARD/WATCH/UNWATCH and SAVE
	Handler      HandlerFunc
}

// Dispatcher holds the command table and the process-wide objects every
// handler may need (the store, replication hub, blocking registry). Those
// dependencies are threaded through Context per call rather than captured
// globally, per spec.md §9's note against ambient globals.
type Dispatcher struct {
	commands map[string]*Descriptor
	Password string // empty means no auth required

	// Blocking is the wakeup registry threaded into every Context so list
	// pushes can wake BLPOP/BRPOP/BRPOPLPUSH waiters (spec.md §4.6).
	Blocking *blocking.Registry

	// OnWrite, if set, is called after every successfully executed writing
	// command with its original argument vector and the database index it
	// ran against, for replication fan-out and MONITOR logging (spec.md
	// §4.7). Not called for queued-but-not-yet EXECed commands. Commands
	// applied from a master's stream go through Dispatch too, so they do
	// reach OnWrite.
	OnWrite func(args []string, dbIndex int)

	// Coordinator backs SAVE/LASTSAVE/CONFIG/SHUTDOWN/SLAVEOF. Left nil in
	// tests that don't need snapshotting or replication.
	Coordinator *Coordinator

	// ReadOnly, if set, reports whether this server is currently a
	// replication follower: external clients' writes are then rejected,
	// matching the original's follower-mode flag (spec.md §9). Commands
	// applied from the master's stream go through Dispatch directly and
	// are never subject to this gate.
	ReadOnly func() bool
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{commands: make(map[string]*Descriptor), Blocking: blocking.NewRegistry()}
	registerStringCommands(d)
	registerListCommands(d)
	registerHashCommands(d)
	registerSetCommands(d)
	registerZSetCommands(d)
	registerKeyCommands(d)
	registerConnectionCommands(d)
	registerAdminCommands(d)
	registerPersistenceCommands(d)
	return d
}

func (d *Dispatcher) register(desc *Descriptor) {
	d.commands[desc.Name] = desc
}

func (d *Dispatcher) Lookup(name string) (*Descriptor, bool) {
	desc, ok := d.commands[strings.ToUpper(name)]
	return desc, ok
}

var errUnknownCommand = func(name string) string { return "ERR unknown command '" + name + "'" }

const errSyntax = "ERR syntax error"

// exemptFromAuth are the only commands runnable before AUTH succeeds when a
// password is configured (SPEC_FULL.md §5).
var exemptFromAuth = map[string]bool{"AUTH": true, "QUIT": true}

// Execute is the top-level entry point for one request read off the wire:
// it enforces the AUTH gate, intercepts MULTI-queuing, and otherwise calls
// Dispatch. It never returns an error that should close the connection;
// protocol-level errors are the framer's concern.
func (d *Dispatcher) Execute(store *store.Store, client *session.Client, w *resp.Writer, args []string, now time.Time) {
	if len(args) == 0 {
		return
	}
	name := strings.ToUpper(args[0])
	desc, ok := d.commands[name]

	if d.Password != "" && !client.Authenticated && !exemptFromAuth[name] {
		w.Error("NOAUTH Authentication required.")
		return
	}

	if !ok {
		if client.InMulti {
			client.MarkDirty()
		}
		w.Error(errUnknownCommand(strings.ToLower(args[0])))
		return
	}

	if desc.Writing && d.ReadOnly != nil && d.ReadOnly() {
		w.Error("READONLY You can't write against a read only replica.")
		return
	}

	if client.InMulti && name != "EXEC" && name != "DISCARD" && name != "MULTI" && name != "WATCH" && name != "UNWATCH" {
		if !checkArity(desc, len(args)) {
			client.MarkDirty()
			w.Error(errSyntax)
			return
		}
		if !desc.CallableInTx {
			client.MarkDirty()
			w.Error("ERR " + name + " inside MULTI is not allowed")
			return
		}
		client.Enqueue(args)
		w.Queued()
		return
	}

	d.Dispatch(store, client, w, args, now, false)
}

// Dispatch runs one command's handler directly, bypassing the MULTI-queue
// interception. Used for commands run outside a transaction and, with
// inExec=true, for each command an EXEC replays while already holding the
// database lock.
func (d *Dispatcher) Dispatch(st *store.Store, client *session.Client, w *resp.Writer, args []string, now time.Time, inExec bool) {
	name := strings.ToUpper(args[0])
	desc, ok := d.commands[name]
	if !ok {
		w.Error(errUnknownCommand(strings.ToLower(args[0])))
		return
	}
	if !checkArity(desc, len(args)) {
		w.Error(errSyntax)
		return
	}
	if st.DB(client.DBIndex) == nil {
		w.Error("ERR DB index is out of range")
		return
	}

	ctx := &Context{
		Store:    st,
		DB:       st.DB(client.DBIndex),
		Client:   client,
		W:        w,
		Blocking: d.Blocking,
		Now:      now,
		Args:     args,
		InExec:   inExec,
	}
	// Guards against internal/repl's fan-out writing to this same
	// connection's Writer from another goroutine (MONITOR/replica feed)
	// concurrently with the reply this handler is about to write. An EXEC
	// replay runs inside the EXEC command's own Dispatch, which already
	// holds it.
	if !inExec {
		client.WriteMu.Lock()
	}
	err := desc.Handler(ctx)
	if err != nil {
		w.Error(toErrorReply(err))
	}
	if !inExec {
		client.WriteMu.Unlock()
	}
	if err != nil {
		return
	}
	if desc.Writing && d.OnWrite != nil {
		d.OnWrite(args, client.DBIndex)
	}
}

func checkArity(desc *Descriptor, argc int) bool {
	if argc < desc.MinArgc {
		return false
	}
	if desc.MaxArgc >= 0 && argc > desc.MaxArgc {
		return false
	}
	return true
}

func toErrorReply(err error) string {
	msg := err.Error()
	// errors already tagged with a RESP error kind (ERR/WRONGTYPE/NOAUTH/...)
	// pass through verbatim; anything else gets a generic ERR tag.
	if strings.HasPrefix(msg, "ERR ") || strings.HasPrefix(msg, "WRONGTYPE ") ||
		strings.HasPrefix(msg, "NOAUTH ") || strings.HasPrefix(msg, "EXECABORT ") ||
		strings.HasPrefix(msg, "BUSYKEY ") {
		return msg
	}
	return "ERR " + msg
}
