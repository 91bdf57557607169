package values

import (
	"errors"
	"math"
)

// Aggregate selects how per-key weighted scores combine in ZUNIONSTORE/ZINTERSTORE.
type Aggregate int

const (
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
)

var errNanScore = errors.New("ERR resulting score is not a number (NaN)")

// ZSet maps member to score with a total order over (score, member); see
// spec.md §3 for the exact ordering rules. by-member and the skiplist's
// by-rank index are kept synchronized on every mutation (store invariant 3).
type ZSet struct {
	byMember map[string]float64
	byRank   *skiplist
}

func NewZSet() *ZSet {
	return &ZSet{byMember: make(map[string]float64), byRank: newSkiplist()}
}

func (z *ZSet) Kind() Kind { return KindZSet }

func (z *ZSet) Card() int { return len(z.byMember) }

// Add inserts or replaces member's score, returning true if member is new.
func (z *ZSet) Add(member string, score float64) bool {
	if old, exists := z.byMember[member]; exists {
		if old == score {
			return false
		}
		z.byRank.delete(old, member)
		z.byRank.insert(score, member)
		z.byMember[member] = score
		return false
	}
	z.byMember[member] = score
	z.byRank.insert(score, member)
	return true
}

// Rem removes member, returning true if it existed.
func (z *ZSet) Rem(member string) bool {
	score, exists := z.byMember[member]
	if !exists {
		return false
	}
	delete(z.byMember, member)
	z.byRank.delete(score, member)
	return true
}

func (z *ZSet) Score(member string) (float64, bool) {
	s, ok := z.byMember[member]
	return s, ok
}

// IncrBy adds delta to member's score (default 0), returning the new score.
// A NaN result is an error and leaves the member unmodified.
func (z *ZSet) IncrBy(member string, delta float64) (float64, error) {
	cur := z.byMember[member]
	next := cur + delta
	if math.IsNaN(next) {
		return 0, errNanScore
	}
	z.Add(member, next)
	return next, nil
}

// Rank returns member's zero-based rank ascending (or descending if rev).
func (z *ZSet) Rank(member string, rev bool) (int, bool) {
	score, exists := z.byMember[member]
	if !exists {
		return 0, false
	}
	r := z.byRank.rank(score, member)
	if rev {
		r = z.Card() - 1 - r
	}
	return r, true
}

// Member is a (member, score) pair, the unit returned by range queries.
type Member struct {
	Name  string
	Score float64
}

// RangeByRank walks the rank index between normalized, negative-from-end,
// inclusive [start, stop], forward or in reverse.
func (z *ZSet) RangeByRank(start, stop int, rev bool) []Member {
	n := z.Card()
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []Member{}
	}
	out := make([]Member, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		rank := i
		if rev {
			rank = n - 1 - i
		}
		node := z.byRank.byRank(rank)
		if node == nil {
			break
		}
		out = append(out, Member{Name: node.member, Score: node.score})
	}
	return out
}

// ScoreRange bounds a ZRANGEBYSCORE-style query; Min/Max may be +/-Inf and
// the Inclusive flags implement the "(" open-bound prefix.
type ScoreRange struct {
	Min, Max                   float64
	MinInclusive, MaxInclusive bool
}

// RangeByScore walks members with min <= score <= max (bounds open per
// Inclusive flags), ascending by default or descending if rev, then applies
// a direction-aware LIMIT offset/count (count < 0 means "no limit").
func (z *ZSet) RangeByScore(r ScoreRange, offset, count int, rev bool) []Member {
	var all []Member
	for node := z.byRank.firstInRange(r.Min, r.MinInclusive); node != nil; node = node.level[0].forward {
		if !scoreAtMost(node.score, r.Max, r.MaxInclusive) {
			break
		}
		all = append(all, Member{Name: node.member, Score: node.score})
	}
	if rev {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []Member{}
	}
	all = all[offset:]
	if count >= 0 && count < len(all) {
		all = all[:count]
	}
	return all
}

func scoreAtMost(score, max float64, inclusive bool) bool {
	if inclusive {
		return score <= max
	}
	return score < max
}

// Count returns the number of members with scores in [min, max] (subject to
// the Inclusive flags).
func (z *ZSet) Count(r ScoreRange) int {
	count := 0
	for node := z.byRank.firstInRange(r.Min, r.MinInclusive); node != nil; node = node.level[0].forward {
		if !scoreAtMost(node.score, r.Max, r.MaxInclusive) {
			break
		}
		count++
	}
	return count
}

// RemRangeByRank removes every member in normalized [start, stop] and
// returns the count removed.
func (z *ZSet) RemRangeByRank(start, stop int) int {
	members := z.RangeByRank(start, stop, false)
	for _, m := range members {
		z.Rem(m.Name)
	}
	return len(members)
}

// RemRangeByScore removes every member with score in [min, max] and returns
// the count removed.
func (z *ZSet) RemRangeByScore(r ScoreRange) int {
	var toRemove []string
	for node := z.byRank.firstInRange(r.Min, r.MinInclusive); node != nil; node = node.level[0].forward {
		if !scoreAtMost(node.score, r.Max, r.MaxInclusive) {
			break
		}
		toRemove = append(toRemove, node.member)
	}
	for _, m := range toRemove {
		z.Rem(m)
	}
	return len(toRemove)
}

// All returns every member in ascending (score, member) order, used by the
// snapshot codec and ZRANGE 0 -1.
func (z *ZSet) All() []Member {
	return z.RangeByRank(0, -1, false)
}

func aggregate(agg Aggregate, acc float64, present bool, v float64) float64 {
	if !present {
		return v
	}
	switch agg {
	case AggregateMin:
		return math.Min(acc, v)
	case AggregateMax:
		return math.Max(acc, v)
	default:
		return acc + v
	}
}

// UnionStore computes the weighted union of sources (weight applied before
// aggregation), storing into z. A NaN aggregate score is an error.
func (z *ZSet) UnionStore(sources []*ZSet, weights []float64, agg Aggregate) error {
	acc := make(map[string]float64)
	present := make(map[string]bool)
	for i, src := range sources {
		w := weights[i]
		for member, score := range src.byMember {
			v := score * w
			acc[member] = aggregate(agg, acc[member], present[member], v)
			present[member] = true
		}
	}
	return z.storeAggregated(acc)
}

// InterStore computes the weighted intersection of sources, storing into z.
func (z *ZSet) InterStore(sources []*ZSet, weights []float64, agg Aggregate) error {
	if len(sources) == 0 {
		return nil
	}
	acc := make(map[string]float64)
	for member, score := range sources[0].byMember {
		acc[member] = score * weights[0]
	}
	for i := 1; i < len(sources); i++ {
		next := make(map[string]float64)
		w := weights[i]
		for member, accScore := range acc {
			if score, ok := sources[i].byMember[member]; ok {
				next[member] = aggregate(agg, accScore, true, score*w)
			}
		}
		acc = next
	}
	return z.storeAggregated(acc)
}

func (z *ZSet) storeAggregated(acc map[string]float64) error {
	for _, score := range acc {
		if math.IsNaN(score) {
			return errNanScore
		}
	}
	z.byMember = make(map[string]float64)
	z.byRank = newSkiplist()
	for member, score := range acc {
		z.Add(member, score)
	}
	return nil
}
