package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerListCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "LPUSH", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPush(c, true, false) }})
	d.register(&Descriptor{Name: "RPUSH", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPush(c, false, false) }})
	d.register(&Descriptor{Name: "LPUSHX", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPush(c, true, true) }})
	d.register(&Descriptor{Name: "RPUSHX", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPush(c, false, true) }})
	d.register(&Descriptor{Name: "LPOP", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPop(c, true) }})
	d.register(&Descriptor{Name: "RPOP", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdPop(c, false) }})
	d.register(&Descriptor{Name: "LINDEX", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdLIndex})
	d.register(&Descriptor{Name: "LINSERT", MinArgc: 5, MaxArgc: 5, Writing: true, CallableInTx: true, Handler: cmdLInsert})
	d.register(&Descriptor{Name: "LLEN", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdLLen})
	d.register(&Descriptor{Name: "LRANGE", MinArgc: 4, MaxArgc: 4, Writing: false, CallableInTx: true, Handler: cmdLRange})
	d.register(&Descriptor{Name: "LREM", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdLRem})
	d.register(&Descriptor{Name: "LSET", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdLSet})
	d.register(&Descriptor{Name: "LTRIM", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdLTrim})
	d.register(&Descriptor{Name: "RPOPLPUSH", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdRPopLPush})
	d.register(&Descriptor{Name: "BLPOP", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdBlockingPop(c, true, "") }})
	d.register(&Descriptor{Name: "BRPOP", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdBlockingPop(c, false, "") }})
	d.register(&Descriptor{Name: "BRPOPLPUSH", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdBRPopLPush})
}

func lookupList(ctx *Context, key string) (*values.List, bool, error) {
	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		return nil, false, nil
	}
	l, err := values.AsList(v)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

func cmdPush(ctx *Context, left, requireExisting bool) error {
	key := ctx.arg(1)
	elems := ctx.Args[2:]
	defer ctx.lock()()
	l, ok, err := lookupList(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		if requireExisting {
			ctx.W.Integer(0)
			return nil
		}
		l = values.NewList()
		ctx.DB.Replace(key, time.Time{}, l, ctx.Now)
	}
	wasEmpty := l.Empty()
	if left {
		l.LPush(elems...)
	} else {
		l.RPush(elems...)
	}
	ctx.DB.Touch(key, ctx.Now)
	if wasEmpty && l.Len() > 0 {
		notifyPush(ctx)
	}
	ctx.W.Integer(int64(l.Len()))
	return nil
}

func cmdPop(ctx *Context, left bool) error {
	key := ctx.arg(1)
	defer ctx.lock()()
	l, ok, err := lookupList(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	var v string
	if left {
		v, ok = l.LPop()
	} else {
		v, ok = l.RPop()
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	if l.Empty() {
		ctx.DB.Erase(key)
	} else {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Bulk([]byte(v), true)
	return nil
}

func cmdLIndex(ctx *Context) error {
	key := ctx.arg(1)
	idx, err := strconv.Atoi(ctx.arg(2))
	if err != nil {
		return errSyntaxErr
	}
	defer ctx.rlock()()
	l, ok, lookupErr := lookupList(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	v, found := l.Index(idx)
	if !found {
		ctx.W.Null()
		return nil
	}
	ctx.W.Bulk([]byte(v), true)
	return nil
}

func cmdLInsert(ctx *Context) error {
	key, where, pivot, element := ctx.arg(1), strings.ToUpper(ctx.arg(2)), ctx.arg(3), ctx.arg(4)
	var before bool
	switch where {
	case "BEFORE":
		before = true
	case "AFTER":
		before = false
	default:
		return errSyntaxErr
	}
	defer ctx.lock()()
	l, ok, err := lookupList(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	n := l.Insert(before, pivot, element)
	if n > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(n))
	return nil
}

func cmdLLen(ctx *Context) error {
	defer ctx.rlock()()
	l, ok, err := lookupList(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(l.Len()))
	return nil
}

func cmdLRange(ctx *Context) error {
	key := ctx.arg(1)
	start, err1 := strconv.Atoi(ctx.arg(2))
	end, err2 := strconv.Atoi(ctx.arg(3))
	if err1 != nil || err2 != nil {
		return errSyntaxErr
	}
	defer ctx.rlock()()
	l, ok, err := lookupList(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	ctx.W.Array(l.Range(start, end))
	return nil
}

func cmdLRem(ctx *Context) error {
	key := ctx.arg(1)
	count, err := strconv.Atoi(ctx.arg(2))
	if err != nil {
		return errSyntaxErr
	}
	target := ctx.arg(3)
	defer ctx.lock()()
	l, ok, lookupErr := lookupList(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	n := l.Rem(count, target)
	if l.Empty() {
		ctx.DB.Erase(key)
	} else if n > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(n))
	return nil
}

func cmdLSet(ctx *Context) error {
	key := ctx.arg(1)
	idx, err := strconv.Atoi(ctx.arg(2))
	if err != nil {
		return errSyntaxErr
	}
	val := ctx.arg(3)
	defer ctx.lock()()
	l, ok, lookupErr := lookupList(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		return noSuchKeyError
	}
	if err := l.Set(idx, val); err != nil {
		return err
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.OK()
	return nil
}

var noSuchKeyError = keyError("ERR no such key")

type keyError string

func (e keyError) Error() string { return string(e) }

func cmdLTrim(ctx *Context) error {
	key := ctx.arg(1)
	start, err1 := strconv.Atoi(ctx.arg(2))
	end, err2 := strconv.Atoi(ctx.arg(3))
	if err1 != nil || err2 != nil {
		return errSyntaxErr
	}
	defer ctx.lock()()
	l, ok, err := lookupList(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.OK()
		return nil
	}
	if l.Trim(start, end) {
		ctx.DB.Erase(key)
	} else {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.OK()
	return nil
}

func cmdRPopLPush(ctx *Context) error {
	src, dst := ctx.arg(1), ctx.arg(2)
	defer ctx.lock()()
	v, ok, err := rpopLPush(ctx, src, dst)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	ctx.W.Bulk([]byte(v), true)
	return nil
}

// rpopLPush implements the shared core of RPOPLPUSH and BRPOPLPUSH: pop the
// tail of src and push it to the head of dst, which must be absent or a list.
func rpopLPush(ctx *Context, src, dst string) (string, bool, error) {
	l, ok, err := lookupList(ctx, src)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	if _, _, derr := lookupList(ctx, dst); derr != nil {
		return "", false, derr
	}
	v, popped := l.RPop()
	if !popped {
		return "", false, nil
	}
	if l.Empty() {
		ctx.DB.Erase(src)
	} else {
		ctx.DB.Touch(src, ctx.Now)
	}

	dl, dok, derr := lookupList(ctx, dst)
	if derr != nil {
		return "", false, derr
	}
	wasEmpty := true
	if !dok {
		dl = values.NewList()
		ctx.DB.Replace(dst, time.Time{}, dl, ctx.Now)
	} else {
		wasEmpty = dl.Empty()
	}
	dl.LPush(v)
	ctx.DB.Touch(dst, ctx.Now)
	if wasEmpty {
		notifyPush(ctx)
	}
	return v, true, nil
}

func cmdBlockingPop(ctx *Context, fromLeft bool, destination string) error {
	n := len(ctx.Args)
	timeoutSecs, err := strconv.ParseFloat(ctx.Args[n-1], 64)
	if err != nil || timeoutSecs < 0 {
		return errSyntaxErr
	}
	keys := ctx.Args[1 : n-1]
	return blockingPopLoop(ctx, keys, fromLeft, "", timeoutSecs)
}

func cmdBRPopLPush(ctx *Context) error {
	timeoutSecs, err := strconv.ParseFloat(ctx.arg(3), 64)
	if err != nil || timeoutSecs < 0 {
		return errSyntaxErr
	}
	return blockingPopLoop(ctx, []string{ctx.arg(1)}, false, ctx.arg(2), timeoutSecs)
}

func blockingPopLoop(ctx *Context, keys []string, fromLeft bool, destination string, timeoutSecs float64) error {
	var deadline time.Time
	if timeoutSecs > 0 {
		deadline = ctx.Now.Add(time.Duration(timeoutSecs * float64(time.Second)))
	}

	try := func() (replied bool) {
		defer ctx.lock()()
		for _, key := range keys {
			if destination != "" {
				v, ok, err := rpopLPush(ctx, key, destination)
				if err != nil {
					ctx.W.Error(toErrorReply(err))
					return true
				}
				if ok {
					ctx.W.Bulk([]byte(v), true)
					return true
				}
				continue
			}
			l, ok, err := lookupList(ctx, key)
			if err != nil {
				ctx.W.Error(toErrorReply(err))
				return true
			}
			if !ok || l.Empty() {
				continue
			}
			var v string
			if fromLeft {
				v, _ = l.LPop()
			} else {
				v, _ = l.RPop()
			}
			if l.Empty() {
				ctx.DB.Erase(key)
			} else {
				ctx.DB.Touch(key, ctx.Now)
			}
			ctx.W.StartMultiBulk(2)
			ctx.W.BulkString(key, true)
			ctx.W.BulkString(v, true)
			return true
		}
		return false
	}

	if try() {
		return nil
	}
	if ctx.InExec {
		// Inside EXEC the database lock is already held for the whole
		// replay and must not be released to suspend (spec.md §4.5, §4.6).
		ctx.W.NullMultiBulk()
		return nil
	}
	for {
		if !ctx.Blocking.Wait(deadline, ctx.Client.Done) {
			ctx.W.NullMultiBulk()
			return nil
		}
		if try() {
			return nil
		}
	}
}

func notifyPush(ctx *Context) { ctx.Blocking.NotifyPush() }
