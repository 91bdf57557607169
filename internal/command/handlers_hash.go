package command

import (
	"math"
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerHashCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "HSET", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdHSet})
	d.register(&Descriptor{Name: "HSETNX", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdHSetNX})
	d.register(&Descriptor{Name: "HMSET", MinArgc: 4, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdHMSet})
	d.register(&Descriptor{Name: "HGET", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdHGet})
	d.register(&Descriptor{Name: "HMGET", MinArgc: 3, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: cmdHMGet})
	d.register(&Descriptor{Name: "HGETALL", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdHGetAll})
	d.register(&Descriptor{Name: "HKEYS", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdHKeys})
	d.register(&Descriptor{Name: "HVALS", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdHVals})
	d.register(&Descriptor{Name: "HEXISTS", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdHExists})
	d.register(&Descriptor{Name: "HLEN", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdHLen})
	d.register(&Descriptor{Name: "HDEL", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdHDel})
	d.register(&Descriptor{Name: "HINCRBY", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdHIncrBy})
	d.register(&Descriptor{Name: "HINCRBYFLOAT", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdHIncrByFloat})
}

func lookupHash(ctx *Context, key string) (*values.Hash, bool, error) {
	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		return nil, false, nil
	}
	h, err := values.AsHash(v)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func cmdHSet(ctx *Context) error {
	key, field, val := ctx.arg(1), ctx.arg(2), ctx.arg(3)
	defer ctx.lock()()
	h, ok, err := lookupHash(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		h = values.NewHash()
		ctx.DB.Replace(key, time.Time{}, h, ctx.Now)
	}
	isNew := h.Set(field, val)
	ctx.DB.Touch(key, ctx.Now)
	if isNew {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdHSetNX(ctx *Context) error {
	key, field, val := ctx.arg(1), ctx.arg(2), ctx.arg(3)
	defer ctx.lock()()
	h, ok, err := lookupHash(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		h = values.NewHash()
		ctx.DB.Replace(key, time.Time{}, h, ctx.Now)
	}
	if h.SetNX(field, val) {
		ctx.DB.Touch(key, ctx.Now)
		ctx.W.Integer(1)
		return nil
	}
	ctx.W.Integer(0)
	return nil
}

func cmdHMSet(ctx *Context) error {
	key := ctx.arg(1)
	pairs := ctx.Args[2:]
	if len(pairs)%2 != 0 {
		return errSyntaxErr
	}
	defer ctx.lock()()
	h, ok, err := lookupHash(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		h = values.NewHash()
		ctx.DB.Replace(key, time.Time{}, h, ctx.Now)
	}
	for i := 0; i < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.OK()
	return nil
}

func cmdHGet(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	v, found := h.Get(ctx.arg(2))
	if !found {
		ctx.W.Null()
		return nil
	}
	ctx.W.BulkString(v, true)
	return nil
}

func cmdHMGet(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	fields := ctx.Args[2:]
	ctx.W.StartMultiBulk(len(fields))
	for _, f := range fields {
		if !ok {
			ctx.W.Null()
			continue
		}
		v, found := h.Get(f)
		if !found {
			ctx.W.Null()
			continue
		}
		ctx.W.BulkString(v, true)
	}
	return nil
}

func cmdHGetAll(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	keys, vals := h.Keys(), h.Values()
	out := make([]string, 0, len(keys)*2)
	for i := range keys {
		out = append(out, keys[i], vals[i])
	}
	ctx.W.Array(out)
	return nil
}

func cmdHKeys(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	ctx.W.Array(h.Keys())
	return nil
}

func cmdHVals(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	ctx.W.Array(h.Values())
	return nil
}

func cmdHExists(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	if _, found := h.Get(ctx.arg(2)); found {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdHLen(ctx *Context) error {
	defer ctx.rlock()()
	h, ok, err := lookupHash(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(h.Len()))
	return nil
}

func cmdHDel(ctx *Context) error {
	key := ctx.arg(1)
	fields := ctx.Args[2:]
	defer ctx.lock()()
	h, ok, err := lookupHash(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	n := h.Del(fields...)
	if h.Len() == 0 {
		ctx.DB.Erase(key)
	} else if n > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(n))
	return nil
}

func cmdHIncrBy(ctx *Context) error {
	key, field := ctx.arg(1), ctx.arg(2)
	delta, err := strconv.ParseInt(ctx.arg(3), 10, 64)
	if err != nil {
		return errSyntaxErr
	}
	defer ctx.lock()()
	h, ok, lookupErr := lookupHash(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		h = values.NewHash()
		ctx.DB.Replace(key, time.Time{}, h, ctx.Now)
	}
	cur := int64(0)
	if raw, found := h.Get(field); found {
		cur, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errNotIntegerHash
		}
	}
	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return errNotIntegerHash
	}
	next := cur + delta
	h.Set(field, strconv.FormatInt(next, 10))
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Integer(next)
	return nil
}

var errNotIntegerHash = keyError("ERR hash value is not an integer")

func cmdHIncrByFloat(ctx *Context) error {
	key, field := ctx.arg(1), ctx.arg(2)
	delta, err := strconv.ParseFloat(ctx.arg(3), 64)
	if err != nil {
		return errSyntaxErr
	}
	defer ctx.lock()()
	h, ok, lookupErr := lookupHash(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		h = values.NewHash()
		ctx.DB.Replace(key, time.Time{}, h, ctx.Now)
	}
	cur := 0.0
	if raw, found := h.Get(field); found {
		cur, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return keyError("ERR hash value is not a float")
		}
	}
	next := cur + delta
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return keyError("ERR increment would produce NaN or Infinity")
	}
	formatted := strconv.FormatFloat(next, 'g', 17, 64)
	h.Set(field, formatted)
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.BulkString(formatted, true)
	return nil
}
