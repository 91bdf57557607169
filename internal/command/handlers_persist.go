package command

import (
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/snapshot"
)

func registerPersistenceCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "SAVE", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: false, Handler: d.cmdSave})
	d.register(&Descriptor{Name: "DUMP", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdDump})
	d.register(&Descriptor{Name: "RESTORE", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdRestore})
}

// cmdSave implements the synchronous SAVE path: writes a consistent snapshot
// of every database to the configured path (spec.md §4.8). SHUTDOWN's
// save-before-exit path does not come through here: it passes its save
// flag to d.Coordinator.RequestShutdown, which writes the snapshot itself.
func (d *Dispatcher) cmdSave(ctx *Context) error {
	if d.Coordinator == nil || d.Coordinator.Save == nil {
		return keyError("ERR no snapshot path is configured")
	}
	if err := d.Coordinator.Save(); err != nil {
		return keyError("ERR " + err.Error())
	}
	ctx.W.OK()
	return nil
}

func cmdDump(ctx *Context) error {
	defer ctx.rlock()()
	v, ok := ctx.DB.Get(ctx.arg(1), ctx.Now)
	if !ok {
		ctx.W.Null()
		return nil
	}
	payload, err := snapshot.Dump(v)
	if err != nil {
		return keyError("ERR " + err.Error())
	}
	ctx.W.Bulk(payload, true)
	return nil
}

func cmdRestore(ctx *Context) error {
	key := ctx.arg(1)
	ttlMillis, err := strconv.ParseInt(ctx.arg(2), 10, 64)
	if err != nil || ttlMillis < 0 {
		return errSyntaxErr
	}
	payload := []byte(ctx.arg(3))
	defer ctx.lock()()
	if ctx.DB.Exists(key, ctx.Now) {
		return keyError("BUSYKEY Target key name already exists.")
	}
	v, restoreErr := snapshot.Restore(payload)
	if restoreErr != nil {
		return keyError("ERR DUMP payload version or checksum are wrong")
	}
	var expireAt time.Time
	if ttlMillis > 0 {
		expireAt = ctx.Now.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	ctx.DB.Replace(key, expireAt, v, ctx.Now)
	ctx.W.OK()
	return nil
}
