package command

import (
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerSetCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "SADD", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdSAdd})
	d.register(&Descriptor{Name: "SCARD", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdSCard})
	d.register(&Descriptor{Name: "SISMEMBER", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdSIsMember})
	d.register(&Descriptor{Name: "SMEMBERS", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdSMembers})
	d.register(&Descriptor{Name: "SMOVE", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdSMove})
	d.register(&Descriptor{Name: "SPOP", MinArgc: 2, MaxArgc: 2, Writing: true, CallableInTx: true, Handler: cmdSPop})
	d.register(&Descriptor{Name: "SRANDMEMBER", MinArgc: 2, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdSRandMember})
	d.register(&Descriptor{Name: "SREM", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdSRem})
	d.register(&Descriptor{Name: "SDIFF", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpDiff, "") }})
	d.register(&Descriptor{Name: "SDIFFSTORE", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpDiff, c.arg(1)) }})
	d.register(&Descriptor{Name: "SUNION", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpUnion, "") }})
	d.register(&Descriptor{Name: "SUNIONSTORE", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpUnion, c.arg(1)) }})
	d.register(&Descriptor{Name: "SINTER", MinArgc: 2, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpInter, "") }})
	d.register(&Descriptor{Name: "SINTERSTORE", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdSetOp(c, setOpInter, c.arg(1)) }})
}

func lookupSet(ctx *Context, key string) (*values.Set, bool, error) {
	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		return nil, false, nil
	}
	s, err := values.AsSet(v)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func cmdSAdd(ctx *Context) error {
	key := ctx.arg(1)
	members := ctx.Args[2:]
	defer ctx.lock()()
	s, ok, err := lookupSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		s = values.NewSet()
		ctx.DB.Replace(key, time.Time{}, s, ctx.Now)
	}
	added := 0
	for _, m := range members {
		if s.Add(m) {
			added++
		}
	}
	if added > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(added))
	return nil
}

func cmdSCard(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(s.Card()))
	return nil
}

func cmdSIsMember(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if ok && s.IsMember(ctx.arg(2)) {
		ctx.W.Integer(1)
	} else {
		ctx.W.Integer(0)
	}
	return nil
}

func cmdSMembers(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	ctx.W.Array(s.Members())
	return nil
}

func cmdSMove(ctx *Context) error {
	src, dst, member := ctx.arg(1), ctx.arg(2), ctx.arg(3)
	defer ctx.lock()()
	ss, ok, err := lookupSet(ctx, src)
	if err != nil {
		return err
	}
	if !ok || !ss.Remove(member) {
		ctx.W.Integer(0)
		return nil
	}
	if ss.Card() == 0 {
		ctx.DB.Erase(src)
	} else {
		ctx.DB.Touch(src, ctx.Now)
	}
	ds, dok, derr := lookupSet(ctx, dst)
	if derr != nil {
		return derr
	}
	if !dok {
		ds = values.NewSet()
		ctx.DB.Replace(dst, time.Time{}, ds, ctx.Now)
	}
	ds.Add(member)
	ctx.DB.Touch(dst, ctx.Now)
	ctx.W.Integer(1)
	return nil
}

func cmdSPop(ctx *Context) error {
	key := ctx.arg(1)
	defer ctx.lock()()
	s, ok, err := lookupSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	member, popped := s.Pop()
	if !popped {
		ctx.W.Null()
		return nil
	}
	if s.Card() == 0 {
		ctx.DB.Erase(key)
	} else {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.BulkString(member, true)
	return nil
}

func cmdSRandMember(ctx *Context) error {
	defer ctx.rlock()()
	s, ok, err := lookupSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if len(ctx.Args) == 2 {
		if !ok {
			ctx.W.Null()
			return nil
		}
		m, found := s.RandomMember()
		if !found {
			ctx.W.Null()
			return nil
		}
		ctx.W.BulkString(m, true)
		return nil
	}
	count, convErr := strconv.Atoi(ctx.arg(2))
	if convErr != nil {
		return errSyntaxErr
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	if count >= 0 {
		ctx.W.Array(s.SampleDistinct(count))
	} else {
		ctx.W.Array(s.SampleRepeating(-count))
	}
	return nil
}

func cmdSRem(ctx *Context) error {
	key := ctx.arg(1)
	members := ctx.Args[2:]
	defer ctx.lock()()
	s, ok, err := lookupSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	removed := 0
	for _, m := range members {
		if s.Remove(m) {
			removed++
		}
	}
	if s.Card() == 0 {
		ctx.DB.Erase(key)
	} else if removed > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(removed))
	return nil
}

type setOpKind int

const (
	setOpDiff setOpKind = iota
	setOpUnion
	setOpInter
)

func cmdSetOp(ctx *Context, op setOpKind, dest string) error {
	keyStart := 1
	if dest != "" {
		keyStart = 2
	}
	if dest != "" {
		defer ctx.lock()()
	} else {
		defer ctx.rlock()()
	}
	sets := make([]*values.Set, 0, len(ctx.Args)-keyStart)
	for _, key := range ctx.Args[keyStart:] {
		s, ok, err := lookupSet(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			s = values.NewSet()
		}
		sets = append(sets, s)
	}
	if len(sets) == 0 {
		return errSyntaxErr
	}
	first, rest := sets[0], sets[1:]
	var result *values.Set
	switch op {
	case setOpDiff:
		result = first.Diff(rest...)
	case setOpInter:
		result = first.Inter(rest...)
	case setOpUnion:
		result = first.Union(rest...)
	}

	if dest == "" {
		ctx.W.Array(result.Members())
		return nil
	}
	if result.Card() == 0 {
		ctx.DB.Erase(dest)
	} else {
		ctx.DB.Replace(dest, time.Time{}, result, ctx.Now)
	}
	ctx.W.Integer(int64(result.Card()))
	return nil
}
