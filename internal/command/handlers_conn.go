package command

import (
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/txn"
)

func registerConnectionCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "PING", MinArgc: 1, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdPing})
	d.register(&Descriptor{Name: "ECHO", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdEcho})
	d.register(&Descriptor{Name: "AUTH", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: d.cmdAuth})
	d.register(&Descriptor{Name: "SELECT", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdSelect})
	d.register(&Descriptor{Name: "QUIT", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: cmdQuit})
	d.register(&Descriptor{Name: "DBSIZE", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: cmdDBSize})
	d.register(&Descriptor{Name: "FLUSHALL", MinArgc: 1, MaxArgc: 1, Writing: true, CallableInTx: true, Handler: cmdFlushAll})
	d.register(&Descriptor{Name: "FLUSHDB", MinArgc: 1, MaxArgc: 1, Writing: true, CallableInTx: true, Handler: cmdFlushDB})
	d.register(&Descriptor{Name: "TIME", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: cmdTime})
	d.register(&Descriptor{Name: "MULTI", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: false, Handler: cmdMulti})
	d.register(&Descriptor{Name: "EXEC", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: false, Handler: d.cmdExec})
	d.register(&Descriptor{Name: "DISCARD", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: false, Handler: cmdDiscard})
	d.register(&Descriptor{Name: "WATCH", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: false, Handler: cmdWatch})
	d.register(&Descriptor{Name: "UNWATCH", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: false, Handler: cmdUnwatch})
}

func cmdPing(ctx *Context) error {
	if len(ctx.Args) == 2 {
		ctx.W.BulkString(ctx.arg(1), true)
		return nil
	}
	ctx.W.Pong()
	return nil
}

func cmdEcho(ctx *Context) error {
	ctx.W.BulkString(ctx.arg(1), true)
	return nil
}

// cmdAuth is a method on Dispatcher so it can both validate the configured
// password and flip the per-connection Authenticated flag.
func (d *Dispatcher) cmdAuth(ctx *Context) error {
	if d.Password == "" {
		return keyError("ERR Client sent AUTH, but no password is set")
	}
	if ctx.arg(1) != d.Password {
		return keyError("ERR invalid password")
	}
	ctx.Client.Authenticated = true
	ctx.W.OK()
	return nil
}

func cmdSelect(ctx *Context) error {
	idx, err := strconv.Atoi(ctx.arg(1))
	if err != nil {
		return errSyntaxErr
	}
	if ctx.Store.DB(idx) == nil {
		return keyError("ERR DB index is out of range")
	}
	ctx.Client.DBIndex = idx
	ctx.W.OK()
	return nil
}

func cmdQuit(ctx *Context) error {
	ctx.W.OK()
	ctx.Client.Close()
	return nil
}

func cmdDBSize(ctx *Context) error {
	defer ctx.rlock()()
	ctx.W.Integer(int64(ctx.DB.Len()))
	return nil
}

func cmdFlushAll(ctx *Context) error {
	ctx.Store.FlushAll()
	ctx.W.OK()
	return nil
}

func cmdFlushDB(ctx *Context) error {
	defer ctx.lock()()
	ctx.DB.Flush()
	ctx.W.OK()
	return nil
}

func cmdTime(ctx *Context) error {
	secs := ctx.Now.Unix()
	micros := ctx.Now.UnixNano()/1000 - secs*1000000
	ctx.W.Array([]string{strconv.FormatInt(secs, 10), strconv.FormatInt(micros, 10)})
	return nil
}

func cmdMulti(ctx *Context) error {
	ctx.Client.Lock()
	already := ctx.Client.InMulti
	if !already {
		ctx.Client.Multi()
	}
	ctx.Client.Unlock()
	if already {
		return keyError("ERR MULTI calls can not be nested")
	}
	ctx.W.OK()
	return nil
}

func cmdDiscard(ctx *Context) error {
	ctx.Client.Lock()
	inMulti := ctx.Client.InMulti
	ctx.Client.Reset()
	ctx.Client.Unlock()
	if !inMulti {
		return keyError("ERR DISCARD without MULTI")
	}
	ctx.W.OK()
	return nil
}

func cmdWatch(ctx *Context) error {
	if ctx.Client.InMulti {
		return keyError("ERR WATCH inside MULTI is not allowed")
	}
	defer ctx.rlock()()
	for _, key := range ctx.Args[1:] {
		lm, exists := ctx.DB.LastModified(key, ctx.Now)
		ctx.Client.Watch(txn.WatchEntry{
			DBIndex:      ctx.Client.DBIndex,
			Key:          key,
			Existed:      exists,
			LastModified: lm,
		})
	}
	ctx.W.OK()
	return nil
}

func cmdUnwatch(ctx *Context) error {
	ctx.Client.Unwatch()
	ctx.W.OK()
	return nil
}

// cmdExec implements the transaction replay (spec.md §4.5): validate every
// watch, abort with a null multi-bulk if any fired, otherwise run every
// queued command while holding the current database's write lock for the
// whole batch.
func (d *Dispatcher) cmdExec(ctx *Context) error {
	ctx.Client.Lock()
	inMulti := ctx.Client.InMulti
	dirty := ctx.Client.Dirty
	queue := ctx.Client.Queue
	watches := ctx.Client.Watches
	ctx.Client.Reset()
	ctx.Client.Unlock()

	if !inMulti {
		return keyError("ERR EXEC without MULTI")
	}
	if dirty {
		return keyError("EXECABORT Transaction discarded because of previous errors.")
	}

	ctx.DB.Lock()
	defer ctx.DB.Unlock()

	for _, w := range watches {
		db := ctx.Store.DB(w.DBIndex)
		lm, exists := db.LastModified(w.Key, ctx.Now)
		if exists != w.Existed || (exists && lm.After(w.LastModified)) {
			ctx.W.NullMultiBulk()
			return nil
		}
	}

	ctx.W.StartMultiBulk(len(queue))
	for _, args := range queue {
		d.Dispatch(ctx.Store, ctx.Client, ctx.W, args, ctx.Now, true)
	}
	return nil
}
