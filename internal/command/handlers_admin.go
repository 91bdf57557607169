package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/k0kubun/pp/v3"
)

// Coordinator is the small process-wide interface SAVE/LASTSAVE/CONFIG/
// SHUTDOWN/SLAVEOF reach through, rather than importing
// internal/snapshot, internal/repl or internal/server directly — avoiding
// both an import cycle (internal/repl dispatches through this package) and
// the ambient globals spec.md §9 warns against.
type Coordinator struct {
	SnapshotPath string
	Databases    int
	RequirePass  string

	// Save triggers an immediate snapshot write to SnapshotPath. nil if no
	// snapshot path is configured.
	Save func() error
	// LastSaveUnix returns the unix time of the last successful SAVE, or 0.
	LastSaveUnix func() int64
	// RequestShutdown stops the accept loop and, once every connection
	// closes, exits the process. save controls whether a snapshot is
	// written first.
	RequestShutdown func(save bool)
	// ReplicaOf starts following a master at addr; empty addr stops.
	ReplicaOf func(addr string) error
}

func registerAdminCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "DEBUG", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: d.cmdDebug})
	d.register(&Descriptor{Name: "LASTSAVE", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: d.cmdLastSave})
	d.register(&Descriptor{Name: "CONFIG", MinArgc: 3, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: d.cmdConfig})
	d.register(&Descriptor{Name: "SHUTDOWN", MinArgc: 1, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: d.cmdShutdown})
	d.register(&Descriptor{Name: "MONITOR", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: cmdMonitor})
	d.register(&Descriptor{Name: "SLAVEOF", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: d.cmdSlaveOf})
	d.register(&Descriptor{Name: "REPLICAOF", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: d.cmdSlaveOf})
}

func (d *Dispatcher) cmdDebug(ctx *Context) error {
	switch strings.ToUpper(ctx.arg(1)) {
	case "SLEEP":
		secs, err := strconv.ParseFloat(ctx.arg(2), 64)
		if err != nil {
			return errSyntaxErr
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		ctx.W.OK()
		return nil
	case "OBJECT":
		key := ctx.arg(2)
		defer ctx.rlock()()
		v, ok := ctx.DB.Get(key, ctx.Now)
		if !ok {
			return noSuchKeyError
		}
		printer := pp.New()
		printer.SetColoringEnabled(false)
		ctx.W.BulkString(printer.Sprint(v), true)
		return nil
	default:
		return errSyntaxErr
	}
}

func (d *Dispatcher) cmdLastSave(ctx *Context) error {
	var ts int64
	if d.Coordinator != nil && d.Coordinator.LastSaveUnix != nil {
		ts = d.Coordinator.LastSaveUnix()
	}
	ctx.W.Integer(ts)
	return nil
}

func (d *Dispatcher) cmdConfig(ctx *Context) error {
	switch strings.ToUpper(ctx.arg(1)) {
	case "GET":
		param := strings.ToLower(ctx.arg(2))
		switch param {
		case "requirepass":
			ctx.W.Array([]string{"requirepass", d.Password})
		case "appendonly":
			ctx.W.Array([]string{"appendonly", "no"})
		case "databases":
			n := 1
			if d.Coordinator != nil {
				n = d.Coordinator.Databases
			}
			ctx.W.Array([]string{"databases", strconv.Itoa(n)})
		case "maxmemory":
			return keyError("ERR unsupported CONFIG parameter 'maxmemory'")
		default:
			ctx.W.Array(nil)
		}
		return nil
	case "SET":
		if strings.ToLower(ctx.arg(2)) == "requirepass" {
			d.Password = ctx.arg(3)
			ctx.W.OK()
			return nil
		}
		return keyError("ERR unsupported CONFIG parameter")
	default:
		return errSyntaxErr
	}
}

func (d *Dispatcher) cmdShutdown(ctx *Context) error {
	save := d.Coordinator != nil && d.Coordinator.SnapshotPath != ""
	if len(ctx.Args) == 2 {
		switch strings.ToUpper(ctx.arg(1)) {
		case "NOSAVE":
			save = false
		case "SAVE":
			save = true
		default:
			return errSyntaxErr
		}
	}
	if d.Coordinator != nil && d.Coordinator.RequestShutdown != nil {
		d.Coordinator.RequestShutdown(save)
	}
	// No reply: the original closes the connection as part of shutdown.
	ctx.Client.Close()
	return nil
}

func cmdMonitor(ctx *Context) error {
	ctx.Client.Monitor = true
	ctx.W.OK()
	return nil
}

func (d *Dispatcher) cmdSlaveOf(ctx *Context) error {
	host, port := ctx.arg(1), ctx.arg(2)
	if strings.ToUpper(host) == "NO" && strings.ToUpper(port) == "ONE" {
		if d.Coordinator != nil && d.Coordinator.ReplicaOf != nil {
			if err := d.Coordinator.ReplicaOf(""); err != nil {
				return keyError("ERR " + err.Error())
			}
		}
		ctx.W.OK()
		return nil
	}
	if d.Coordinator != nil && d.Coordinator.ReplicaOf != nil {
		if err := d.Coordinator.ReplicaOf(host + ":" + port); err != nil {
			return keyError("ERR " + err.Error())
		}
	}
	ctx.W.OK()
	return nil
}
