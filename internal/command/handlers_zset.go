package command

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/k0kubun/redisd/internal/values"
)

func registerZSetCommands(d *Dispatcher) {
	d.register(&Descriptor{Name: "ZADD", MinArgc: 4, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdZAdd})
	d.register(&Descriptor{Name: "ZCARD", MinArgc: 2, MaxArgc: 2, Writing: false, CallableInTx: true, Handler: cmdZCard})
	d.register(&Descriptor{Name: "ZCOUNT", MinArgc: 4, MaxArgc: 4, Writing: false, CallableInTx: true, Handler: cmdZCount})
	d.register(&Descriptor{Name: "ZINCRBY", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdZIncrBy})
	d.register(&Descriptor{Name: "ZRANGE", MinArgc: 4, MaxArgc: 5, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRange(c, false) }})
	d.register(&Descriptor{Name: "ZREVRANGE", MinArgc: 4, MaxArgc: 5, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRange(c, true) }})
	d.register(&Descriptor{Name: "ZRANGEBYSCORE", MinArgc: 4, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRangeByScore(c, false) }})
	d.register(&Descriptor{Name: "ZREVRANGEBYSCORE", MinArgc: 4, MaxArgc: -1, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRangeByScore(c, true) }})
	d.register(&Descriptor{Name: "ZRANK", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRank(c, false) }})
	d.register(&Descriptor{Name: "ZREVRANK", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: func(c *Context) error { return cmdZRank(c, true) }})
	d.register(&Descriptor{Name: "ZSCORE", MinArgc: 3, MaxArgc: 3, Writing: false, CallableInTx: true, Handler: cmdZScore})
	d.register(&Descriptor{Name: "ZREM", MinArgc: 3, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: cmdZRem})
	d.register(&Descriptor{Name: "ZREMRANGEBYRANK", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdZRemRangeByRank})
	d.register(&Descriptor{Name: "ZREMRANGEBYSCORE", MinArgc: 4, MaxArgc: 4, Writing: true, CallableInTx: true, Handler: cmdZRemRangeByScore})
	d.register(&Descriptor{Name: "ZUNIONSTORE", MinArgc: 4, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdZStore(c, false) }})
	d.register(&Descriptor{Name: "ZINTERSTORE", MinArgc: 4, MaxArgc: -1, Writing: true, CallableInTx: true, Handler: func(c *Context) error { return cmdZStore(c, true) }})
}

func lookupZSet(ctx *Context, key string) (*values.ZSet, bool, error) {
	v, ok := ctx.DB.Get(key, ctx.Now)
	if !ok {
		return nil, false, nil
	}
	z, err := values.AsZSet(v)
	if err != nil {
		return nil, false, err
	}
	return z, true, nil
}

func cmdZAdd(ctx *Context) error {
	key := ctx.arg(1)
	pairs := ctx.Args[2:]
	if len(pairs)%2 != 0 {
		return errSyntaxErr
	}
	defer ctx.lock()()
	z, ok, err := lookupZSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		z = values.NewZSet()
		ctx.DB.Replace(key, time.Time{}, z, ctx.Now)
	}
	added := 0
	for i := 0; i < len(pairs); i += 2 {
		score, convErr := strconv.ParseFloat(pairs[i], 64)
		if convErr != nil || math.IsNaN(score) {
			return errSyntaxErr
		}
		if z.Add(pairs[i+1], score) {
			added++
		}
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.Integer(int64(added))
	return nil
}

func cmdZCard(ctx *Context) error {
	defer ctx.rlock()()
	z, ok, err := lookupZSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(z.Card()))
	return nil
}

func parseScoreBound(raw string) (float64, bool, error) {
	inclusive := true
	if strings.HasPrefix(raw, "(") {
		inclusive = false
		raw = raw[1:]
	}
	switch raw {
	case "-inf", "-Inf", "-INF":
		return math.Inf(-1), inclusive, nil
	case "+inf", "+Inf", "+INF", "inf":
		return math.Inf(1), inclusive, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errSyntaxErr
	}
	return f, inclusive, nil
}

func parseScoreRange(minRaw, maxRaw string) (values.ScoreRange, error) {
	min, minIncl, err := parseScoreBound(minRaw)
	if err != nil {
		return values.ScoreRange{}, err
	}
	max, maxIncl, err := parseScoreBound(maxRaw)
	if err != nil {
		return values.ScoreRange{}, err
	}
	return values.ScoreRange{Min: min, Max: max, MinInclusive: minIncl, MaxInclusive: maxIncl}, nil
}

func cmdZCount(ctx *Context) error {
	r, err := parseScoreRange(ctx.arg(2), ctx.arg(3))
	if err != nil {
		return err
	}
	defer ctx.rlock()()
	z, ok, lookupErr := lookupZSet(ctx, ctx.arg(1))
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	ctx.W.Integer(int64(z.Count(r)))
	return nil
}

func cmdZIncrBy(ctx *Context) error {
	key := ctx.arg(1)
	delta, err := strconv.ParseFloat(ctx.arg(2), 64)
	if err != nil {
		return errSyntaxErr
	}
	member := ctx.arg(3)
	defer ctx.lock()()
	z, ok, lookupErr := lookupZSet(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		z = values.NewZSet()
		ctx.DB.Replace(key, time.Time{}, z, ctx.Now)
	}
	score, incrErr := z.IncrBy(member, delta)
	if incrErr != nil {
		return incrErr
	}
	ctx.DB.Touch(key, ctx.Now)
	ctx.W.BulkString(formatScore(score), true)
	return nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', 17, 64)
}

func writeMembers(ctx *Context, members []values.Member, withScores bool) {
	if !withScores {
		out := make([]string, len(members))
		for i, m := range members {
			out[i] = m.Name
		}
		ctx.W.Array(out)
		return
	}
	out := make([]string, 0, len(members)*2)
	for _, m := range members {
		out = append(out, m.Name, formatScore(m.Score))
	}
	ctx.W.Array(out)
}

func cmdZRange(ctx *Context, rev bool) error {
	key := ctx.arg(1)
	start, err1 := strconv.Atoi(ctx.arg(2))
	stop, err2 := strconv.Atoi(ctx.arg(3))
	if err1 != nil || err2 != nil {
		return errSyntaxErr
	}
	withScores := false
	if len(ctx.Args) == 5 {
		if strings.ToUpper(ctx.arg(4)) != "WITHSCORES" {
			return errSyntaxErr
		}
		withScores = true
	}
	defer ctx.rlock()()
	z, ok, err := lookupZSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	writeMembers(ctx, z.RangeByRank(start, stop, rev), withScores)
	return nil
}

func cmdZRangeByScore(ctx *Context, rev bool) error {
	key := ctx.arg(1)
	minRaw, maxRaw := ctx.arg(2), ctx.arg(3)
	if rev {
		minRaw, maxRaw = maxRaw, minRaw
	}
	r, err := parseScoreRange(minRaw, maxRaw)
	if err != nil {
		return err
	}
	withScores := false
	offset, count := 0, -1
	for i := 4; i < len(ctx.Args); i++ {
		switch strings.ToUpper(ctx.Args[i]) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= len(ctx.Args) {
				return errSyntaxErr
			}
			o, e1 := strconv.Atoi(ctx.Args[i+1])
			c, e2 := strconv.Atoi(ctx.Args[i+2])
			if e1 != nil || e2 != nil {
				return errSyntaxErr
			}
			offset, count = o, c
			i += 2
		default:
			return errSyntaxErr
		}
	}
	defer ctx.rlock()()
	z, ok, lookupErr := lookupZSet(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		ctx.W.Array(nil)
		return nil
	}
	writeMembers(ctx, z.RangeByScore(r, offset, count, rev), withScores)
	return nil
}

func cmdZRank(ctx *Context, rev bool) error {
	defer ctx.rlock()()
	z, ok, err := lookupZSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	rank, found := z.Rank(ctx.arg(2), rev)
	if !found {
		ctx.W.Null()
		return nil
	}
	ctx.W.Integer(int64(rank))
	return nil
}

func cmdZScore(ctx *Context) error {
	defer ctx.rlock()()
	z, ok, err := lookupZSet(ctx, ctx.arg(1))
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Null()
		return nil
	}
	score, found := z.Score(ctx.arg(2))
	if !found {
		ctx.W.Null()
		return nil
	}
	ctx.W.BulkString(formatScore(score), true)
	return nil
}

func cmdZRem(ctx *Context) error {
	key := ctx.arg(1)
	members := ctx.Args[2:]
	defer ctx.lock()()
	z, ok, err := lookupZSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	removed := 0
	for _, m := range members {
		if z.Rem(m) {
			removed++
		}
	}
	if z.Card() == 0 {
		ctx.DB.Erase(key)
	} else if removed > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(removed))
	return nil
}

func cmdZRemRangeByRank(ctx *Context) error {
	key := ctx.arg(1)
	start, err1 := strconv.Atoi(ctx.arg(2))
	stop, err2 := strconv.Atoi(ctx.arg(3))
	if err1 != nil || err2 != nil {
		return errSyntaxErr
	}
	defer ctx.lock()()
	z, ok, err := lookupZSet(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	n := z.RemRangeByRank(start, stop)
	if z.Card() == 0 {
		ctx.DB.Erase(key)
	} else if n > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(n))
	return nil
}

func cmdZRemRangeByScore(ctx *Context) error {
	key := ctx.arg(1)
	r, err := parseScoreRange(ctx.arg(2), ctx.arg(3))
	if err != nil {
		return err
	}
	defer ctx.lock()()
	z, ok, lookupErr := lookupZSet(ctx, key)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		ctx.W.Integer(0)
		return nil
	}
	n := z.RemRangeByScore(r)
	if z.Card() == 0 {
		ctx.DB.Erase(key)
	} else if n > 0 {
		ctx.DB.Touch(key, ctx.Now)
	}
	ctx.W.Integer(int64(n))
	return nil
}

func cmdZStore(ctx *Context, inter bool) error {
	dest := ctx.arg(1)
	numKeys, err := strconv.Atoi(ctx.arg(2))
	if err != nil || numKeys <= 0 {
		return errSyntaxErr
	}
	if len(ctx.Args) < 3+numKeys {
		return errSyntaxErr
	}
	keys := ctx.Args[3 : 3+numKeys]
	weights := make([]float64, numKeys)
	for i := range weights {
		weights[i] = 1
	}
	agg := values.AggregateSum

	rest := ctx.Args[3+numKeys:]
	for i := 0; i < len(rest); i++ {
		switch strings.ToUpper(rest[i]) {
		case "WEIGHTS":
			if i+numKeys >= len(rest) {
				return errSyntaxErr
			}
			for j := 0; j < numKeys; j++ {
				w, convErr := strconv.ParseFloat(rest[i+1+j], 64)
				if convErr != nil {
					return errSyntaxErr
				}
				weights[j] = w
			}
			i += numKeys
		case "AGGREGATE":
			if i+1 >= len(rest) {
				return errSyntaxErr
			}
			switch strings.ToUpper(rest[i+1]) {
			case "SUM":
				agg = values.AggregateSum
			case "MIN":
				agg = values.AggregateMin
			case "MAX":
				agg = values.AggregateMax
			default:
				return errSyntaxErr
			}
			i++
		default:
			return errSyntaxErr
		}
	}

	defer ctx.lock()()
	sources := make([]*values.ZSet, numKeys)
	for i, key := range keys {
		z, ok, lookupErr := lookupZSet(ctx, key)
		if lookupErr != nil {
			return lookupErr
		}
		if !ok {
			z = values.NewZSet()
		}
		sources[i] = z
	}
	result := values.NewZSet()
	var storeErr error
	if inter {
		storeErr = result.InterStore(sources, weights, agg)
	} else {
		storeErr = result.UnionStore(sources, weights, agg)
	}
	if storeErr != nil {
		return storeErr
	}
	if result.Card() == 0 {
		ctx.DB.Erase(dest)
	} else {
		ctx.DB.Replace(dest, time.Time{}, result, ctx.Now)
	}
	ctx.W.Integer(int64(result.Card()))
	return nil
}
