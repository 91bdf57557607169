package command

import (
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerKeyCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "DEL", MinArgc: 2, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdDel})
	d.register(&Descriptor{Name: "EXISTS", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdExists})
	d.register(&Descriptor{Name: "EXPIRE", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdExpire(c, time.Second, false) }})
	d.register(&Descriptor{Name: "PEXPIRE", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdExpire(c, time.Millisecond, false) }})
	d.register(&Descriptor{Name: "EXPIREAT", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdExpire(c, time.Second, true) }})
	d.register(&Descriptor{Name: "PEXPIREAT", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdExpire(c, time.Millisecond, true) }})
	d.register(&Descriptor{Name: "PERSIST", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: cmdPersist})
	d.register(&Descriptor{Name: "TTL", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdTTL(c, time.Second) }})
	d.register(&Descriptor{Name: "PTTL", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdTTL(c, time.Millisecond) }})
	d.register(&Descriptor{Name: "MOVE", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdMove})
	d.register(&Descriptor{Name: "RANDOMKEY", MinArgc: 1, MaxArgc: 1, Writing: false, CallableInTx: true, Handler: cmdRandomKey})
	d.register(&Descriptor{Name: "RENAME", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdRename(c, false) }})
	d.register(&Descriptor{Name: "RENAMENX", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdRename(c, true) }})
	d.register(&Descriptor{Name: "TYPE", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdType})
	d.register(&Descriptor{Name: "KEYS", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdKeys})
}

func cmdDel(ctx *Context) error {
	defer ctx.lock()()
	removed := 0
	for _, key := range ctx.Args[1:] {
		if ctx.DB.Exists(key, ctx.Now) {
			ctx.DB.Erase(key)
			removed++
		}
	}
	ctx.W.Integer(int64(removed))
	return nil
}

func cmdExists(ctx *Context) error {
	defer ctx.rlock()()
	if ctx.DB.Exists(ctx.arg(1), ctx.Now) {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdExpire(ctx *Context, unit time.Duration, absolute bool) error {
	key := ctx.arg(1)
	n, err := strconv.ParseInt(ctx.arg(2), 10, 64)
	if err != nil {
		return errSyntaxErr
	}
	var expireAt time.Time
	if absolute {
		expireAt = time.Unix(0, 0).Add(time.Duration(n) * unit)
	} else {
		expireAt = ctx.Now.Add(time.Duration(n) * unit)
	}
	defer ctx.lock()()
	if ctx.DB.SetExpireAt(key, expireAt, ctx.Now) {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdPersist(ctx *Context) error {
	defer ctx.lock()()
	if ctx.DB.Persist(ctx.arg(1), ctx.Now) {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdTTL(ctx *Context, unit time.Duration) error {
	defer ctx.rlock()()
	expireAt, hasExpiry, exists := ctx.DB.ExpireAt(ctx.arg(1), ctx.Now)
	if !exists {
		ctx.W.Integer(-2)
		return nil
	}
	if !hasExpiry {
		ctx.W.Integer(-1)
		return nil
	}
	remaining := expireAt.Sub(ctx.Now)
	ctx.W.Integer(int64(remaining / unit))
	return nil
}

func cmdMove(ctx *Context) error {
	key := ctx.arg(1)
	destIndex, err := strconv.Atoi(ctx.arg(2))
	if err != nil {
		return errSyntaxErr
	}
	dest := ctx.Store.DB(destIndex)
	if dest == nil {
		return errSyntaxErr
	}
	if dest == ctx.DB {
		return keyError("ERR source and destination objects are the same")
	}

	lowIdx, highIdx := ctx.Client.DBIndex, destIndex
	low, high := ctx.DB, dest
	if highIdx < lowIdx {
		low, high = high, low
	}
	// ctx.DB is already locked by an enclosing EXEC replay; the other side
	// of the pair never is, so it always needs its own lock, taken in
	// ascending index order to avoid deadlocking against a concurrent MOVE
	// going the other way (spec.md §5).
	if low != ctx.DB || !ctx.InExec {
		low.Lock()
		defer low.Unlock()
	}
	if low != high && (high != ctx.DB || !ctx.InExec) {
		high.Lock()
		defer high.Unlock()
	}

	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	if dest.Exists(key, ctx.Now) {
		ctx.W.Integer(0)
		return nil
	}
	expireAt, _, _ := ctx.DB.ExpireAt(key, ctx.Now)
	ctx.DB.Erase(key)
	dest.Replace(key, expireAt, v, ctx.Now)
	ctx.W.Integer(1)
	return nil
}

func cmdRandomKey(ctx *Context) error {
	defer ctx.rlock()()
	key, ok := ctx.DB.RandomKey(ctx.Now)
	if !ok {
		ctx.W.Null()
		return nil
	}
	ctx.W.BulkString(key, true)
	return nil
}

func cmdRename(ctx *Context, nx bool) error {
	src, dst := ctx.arg(1), ctx.arg(2)
	defer ctx.lock()()
	v, ok := ctx.DB.Get(src, ctx.Now)
	if !ok {
		return noSuchKeyError
	}
	if nx && ctx.DB.Exists(dst, ctx.Now) {
		ctx.W.Integer(0)
		return nil
	}
	expireAt, _, _ := ctx.DB.ExpireAt(src, ctx.Now)
	ctx.DB.Erase(src)
	ctx.DB.Replace(dst, expireAt, v, ctx.Now)
	if nx {
		ctx.W.Integer(1)
	} else {
		ctx.W.OK()
	}
	return nil
}

func cmdType(ctx *Context) error {
	defer ctx.rlock()()
	v, ok := ctx.DB.Get(ctx.arg(1), ctx.Now)
	if !ok {
		ctx.W.Status("none")
		return nil
	}
	switch v.(type) {
	case *values.String:
		ctx.W.Status("string")
	case *values.List:
		ctx.W.Status("list")
	case *values.Hash:
		ctx.W.Status("hash")
	case *values.Set:
		ctx.W.Status("set")
	case *values.ZSet:
		ctx.W.Status("zset")
	default:
		ctx.W.Status("none")
	}
	return nil
}

func cmdKeys(ctx *Context) error {
	defer ctx.lock()() // Match sweeps expired entries, so it mutates.
	ctx.W.Array(ctx.DB.Match(ctx.arg(1), ctx.Now))
	return nil
}
