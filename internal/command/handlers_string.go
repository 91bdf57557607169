package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerStringCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "GET", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdGet})
	d.register(&Descriptor{Name: "SET", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdSet})
	d.register(&Descriptor{Name: "SETNX", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdSetNX})
	d.register(&Descriptor{Name: "SETEX", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdSetEX})
	d.register(&Descriptor{Name: "PSETEX", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdPSetEX})
	d.register(&Descriptor{Name: "GETSET", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdGetSet})
	d.register(&Descriptor{Name: "STRLEN", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdStrlen})
	d.register(&Descriptor{Name: "APPEND", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdAppend})
	d.register(&Descriptor{Name: "GETRANGE", MinArgc: 4, MaxArgc: 4, Writing: false, CallableInTx: true, Handler: cmdGetRange})
	d.register(&Descriptor{Name: "SETRANGE", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdSetRange})
	d.register(&Descriptor{Name: "MGET", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: cmdMGet})
	d.register(&Descriptor{Name: "MSET", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdMSet})
	d.register(&Descriptor{Name: "MSETNX", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdMSetNX})
	d.register(&Descriptor{Name: "INCR", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: cmdIncr})
	d.register(&Descriptor{Name: "DECR", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: cmdDecr})
	d.register(&Descriptor{Name: "INCRBY", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdIncrBy})
	d.register(&Descriptor{Name: "DECRBY", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdDecrBy})
	d.register(&Descriptor{Name: "INCRBYFLOAT", MinArgc: 3, MaxArgc: 3, Writing: true, CallableInTx: true, Handler: cmdIncrByFloat})
}

func lookupString(ctx *Context, key string) (*values.String, bool, error) {
	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		return nil, false, nil
	}
	s, err := values.AsString(v)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func cmdGet(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupString(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	ctx.W.Bulk(s.Data, true)
	return nil
}

func cmdSet(ctx *Context) error {
	key, val := ctx.arg(1), ctx.arg(2)
	var expireAt time.Time
	var nx, xx bool
	for i := 3; i < len(ctx.Args); i++ {
		switch strings.ToUpper(ctx.Args[i]) {
		case "EX":
			i++
			if i >= len(ctx.Args) {
				return errSyntaxErr
			}
			secs, err := strconv.ParseInt(ctx.Args[i], 10, 64)
			if err != nil {
				return errSyntaxErr
			}
			expireAt = ctx.Now.Add(time.Duration(secs) * time.Second)
		case "PX":
			i++
			if i >= len(ctx.Args) {
				return errSyntaxErr
			}
			ms, err := strconv.ParseInt(ctx.Args[i], 10, 64)
			if err != nil {
				return errSyntaxErr
			}
			expireAt = ctx.Now.Add(time.Duration(ms) * time.Millisecond)
		case "NX":
			nx = true
		case "XX":
			xx = true
		default:
			return errSyntaxErr
		}
	}

	defer ctx.lock()()
	exists := ctx.DB.Exists(key, ctx.Now)
	if nx && exists {
		ctx.W.Null()
		return nil
	}
	if xx && !exists {
		ctx.W.Null()
		return nil
	}
	ctx.DB.Replace(key, expireAt, values.NewString([]byte(val)), ctx.Now)
	ctx.W.OK()
	return nil
}

var errSyntaxErr = syntaxError{}

type syntaxError struct{}

func (syntaxError) Error() string { return errSyntax }

func cmdSetNX(ctx *Context) error {
	defer ctx.lock()()
	key, val := ctx.arg(1), ctx.arg(2)
	if ctx.DB.Exists(key, ctx.Now) {
		ctx.W.Integer(0)
		return nil
	}
	ctx.DB.Replace(key, time.Time{}, values.NewString([]byte(val)), ctx.Now)
	ctx.W.Integer(1)
	return nil
}

func cmdSetEX(ctx *Context) error { return setWithTTL(ctx, time.Second) }
func cmdPSetEX(ctx *Context) error { return setWithTTL(ctx, time.Millisecond) }

func setWithTTL(ctx *Context, unit time.Duration) error {
	key, ttlStr, val := ctx.arg(1), ctx.arg(2), ctx.arg(3)
	n, err := strconv.ParseInt(ttlStr, 10, 64)
	if err != nil || n <= 0 {
		return errSyntaxErr
	}
	defer ctx.lock()()
	ctx.DB.Replace(key, ctx.Now.Add(time.Duration(n)*unit), values.NewString([]byte(val)), ctx.Now)
	ctx.W.OK()
	return nil
}

func cmdGetSet(ctx *Context) error {
	key, val := ctx.arg(1), ctx.arg(2)
	defer ctx.lock()()
	old, ok, err := lookupString(ctx, key)
	if err != nil {
		return err
	}
	ctx.DB.Replace(key, time.Time{}, values.NewString([]byte(val)), ctx.Now)
	if !ok {
		ctx.W.Null()
		return nil
	}
	ctx.W.Bulk(old.Data, true)
	return nil
}

func cmdStrlen(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupString(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(s.Len()))
	return nil
}

func cmdAppend(ctx *Context) error {
	key, suffix := ctx.arg(1), ctx.arg(2)
	defer ctx.lock()()
	s, ok, err := lookupString(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		s = values.NewString(nil)
		ctx.DB.Replace(key, time.Time{}, s, ctx.Now)
	}
	n := s.Append([]byte(suffix))
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Integer(n)
	return nil
}

func cmdGetRange(ctx *Context) error {
	key := ctx.arg(1)
	start, err1 := strconv.Atoi(ctx.arg(2))
	end, err2 := strconv.Atoi(ctx.arg(3))
	if err1 != nil || err2 != nil {
		return errSyntaxErr
	}
	defer ctx.rlock()()
	s, ok, err := lookupString(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Bulk(nil, true)
		return nil
	}
	ctx.W.Bulk(s.GetRange(start, end), true)
	return nil
}

func cmdSetRange(ctx *Context) error {
	key := ctx.arg(1)
	offset, err := strconv.Atoi(ctx.arg(2))
	if err != nil {
		return errSyntaxErr
	}
	b := []byte(ctx.arg(3))
	defer ctx.lock()()
	s, ok, lookupErr := lookupString(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		s = values.NewString(nil)
		ctx.DB.Replace(key, time.Time{}, s, ctx.Now)
	}
	n, err := s.SetRange(offset, b)
	if err != nil {
		return err
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Integer(n)
	return nil
}

func cmdMGet(ctx *Context) error {
	defer ctx.rlock()()
	ctx.W.StartMultiBulk(len(ctx.Args) - 1)
	for _, key := range ctx.Args[1:] {
		s, ok, err := lookupString(ctx, key)
		if err != nil || !ok {
			ctx.W.Null()
			continue
		}
		ctx.W.Bulk(s.Data, true)
	}
	return nil
}

func cmdMSet(ctx *Context) error {
	if (len(ctx.Args)-1)%2 != 0 {
		return errSyntaxErr
	}
	defer ctx.lock()()
	for i := 1; i < len(ctx.Args); i += 2 {
		ctx.DB.Replace(ctx.Args[i], time.Time{}, values.NewString([]byte(ctx.Args[i+1])), ctx.Now)
	}
	ctx.W.OK()
	return nil
}

func cmdMSetNX(ctx *Context) error {
	if (len(ctx.Args)-1)%2 != 0 {
		return errSyntaxErr
	}
	defer ctx.lock()()
	for i := 1; i < len(ctx.Args); i += 2 {
		if ctx.DB.Exists(ctx.Args[i], ctx.Now) {
			ctx.W.Integer(0)
			return nil
		}
	}
	for i := 1; i < len(ctx.Args); i += 2 {
		ctx.DB.Replace(ctx.Args[i], time.Time{}, values.NewString([]byte(ctx.Args[i+1])), ctx.Now)
	}
	ctx.W.Integer(1)
	return nil
}

func cmdIncr(ctx *Context) error    { return incrByHelper(ctx, ctx.arg(1), 1) }
func cmdDecr(ctx *Context) error    { return incrByHelper(ctx, ctx.arg(1), -1) }

func cmdIncrBy(ctx *Context) error {
	n, err := strconv.ParseInt(ctx.arg(2), 10, 64)
	if err != nil {
		return errSyntaxErr
	}
	return incrByHelper(ctx, ctx.arg(1), n)
}

func cmdDecrBy(ctx *Context) error {
	n, err := strconv.ParseInt(ctx.arg(2), 10, 64)
	if err != nil {
		return errSyntaxErr
	}
	return incrByHelper(ctx, ctx.arg(1), -n)
}

func incrByHelper(ctx *Context, key string, delta int64) error {
	defer ctx.lock()()
	s, ok, err := lookupString(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		s = values.NewString(nil)
		ctx.DB.Replace(key, time.Time{}, s, ctx.Now)
	}
	n, err := s.IncrBy(delta)
	if err != nil {
		return err
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Integer(n)
	return nil
}

func cmdIncrByFloat(ctx *Context) error {
	key := ctx.arg(1)
	delta, err := strconv.ParseFloat(ctx.arg(2), 64)
	if err != nil {
		return errSyntaxErr
	}
	defer ctx.lock()()
	s, ok, lookupErr := lookupString(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		s = values.NewString(nil)
		ctx.DB.Replace(key, time.Time{}, s, ctx.Now)
	}
	if _, err := s.IncrByFloat(delta); err != nil {
		return err
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Bulk(s.Data, true)
	return nil
}
