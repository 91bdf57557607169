package values

import (
	"math"
	"reflect"
	"testing"
)

func TestZSetAddRangeByRank(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 3)
	got := z.RangeByRank(0, -1, false)
	want := []Member{{"a", 1}, {"b", 2}, {"c", 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RangeByRank = %+v", got)
	}
}

func TestZSetRankAndRevRank(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 3)
	if r, ok := z.Rank("b", false); !ok || r != 1 {
		t.Fatalf("Rank(b) = %d, %v", r, ok)
	}
	if r, ok := z.Rank("b", true); !ok || r != 1 {
		t.Fatalf("RevRank(b) = %d, %v", r, ok)
	}
	if r, ok := z.Rank("c", true); !ok || r != 0 {
		t.Fatalf("RevRank(c) = %d, %v", r, ok)
	}
}

func TestZSetIncrByRoundTrip(t *testing.T) {
	z := NewZSet()
	z.Add("m", 5)
	if _, err := z.IncrBy("m", 2.5); err != nil {
		t.Fatal(err)
	}
	score, _ := z.Score("m")
	if score != 7.5 {
		t.Fatalf("score = %v, want 7.5", score)
	}
	if _, err := z.IncrBy("m", -2.5); err != nil {
		t.Fatal(err)
	}
	score, _ = z.Score("m")
	if score != 5 {
		t.Fatalf("score after round trip = %v, want 5", score)
	}
}

func TestZSetIncrByNaN(t *testing.T) {
	z := NewZSet()
	z.Add("m", math.Inf(1))
	if _, err := z.IncrBy("m", math.Inf(-1)); err == nil {
		t.Fatal("expected NaN error")
	}
}

func TestZSetRangeByScoreOpenBound(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 3)
	got := z.RangeByScore(ScoreRange{Min: 1, Max: 3, MinInclusive: false, MaxInclusive: true}, 0, -1, false)
	want := []Member{{"b", 2}, {"c", 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RangeByScore = %+v", got)
	}
}

func TestZSetRemRangeByScore(t *testing.T) {
	z := NewZSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 3)
	n := z.RemRangeByScore(ScoreRange{Min: 1, Max: 2, MinInclusive: true, MaxInclusive: true})
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if z.Card() != 1 {
		t.Fatalf("Card() = %d, want 1", z.Card())
	}
}

func TestZSetUnionStoreWeightedSum(t *testing.T) {
	a := NewZSet()
	a.Add("x", 1)
	b := NewZSet()
	b.Add("x", 2)
	b.Add("y", 3)

	out := NewZSet()
	if err := out.UnionStore([]*ZSet{a, b}, []float64{1, 2}, AggregateSum); err != nil {
		t.Fatal(err)
	}
	xScore, _ := out.Score("x")
	if xScore != 5 { // 1*1 + 2*2
		t.Fatalf("x score = %v, want 5", xScore)
	}
	yScore, _ := out.Score("y")
	if yScore != 6 { // 3*2
		t.Fatalf("y score = %v, want 6", yScore)
	}
}

func TestZSetInterStoreAggregateMax(t *testing.T) {
	a := NewZSet()
	a.Add("x", 1)
	a.Add("y", 5)
	b := NewZSet()
	b.Add("x", 4)

	out := NewZSet()
	if err := out.InterStore([]*ZSet{a, b}, []float64{1, 1}, AggregateMax); err != nil {
		t.Fatal(err)
	}
	if out.Card() != 1 {
		t.Fatalf("Card() = %d, want 1 (only x in both)", out.Card())
	}
	xScore, _ := out.Score("x")
	if xScore != 4 {
		t.Fatalf("x score = %v, want 4", xScore)
	}
}

func TestZSetOrderingWithInfiniteScores(t *testing.T) {
	z := NewZSet()
	z.Add("mid", 0)
	z.Add("lo", math.Inf(-1))
	z.Add("hi", math.Inf(1))
	got := z.All()
	want := []string{"lo", "mid", "hi"}
	for i, m := range got {
		if m.Name != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, m.Name, want[i])
		}
	}
}
