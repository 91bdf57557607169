package values

import (
	"reflect"
	"testing"
)

func TestSetAddIsMemberCard(t *testing.T) {
	s := NewSet()
	if !s.Add("a") {
		t.Fatal("expected new member")
	}
	if s.Add("a") {
		t.Fatal("expected duplicate add to report false")
	}
	if s.Card() != 1 {
		t.Fatalf("Card() = %d, want 1", s.Card())
	}
	if !s.IsMember("a") {
		t.Fatal("expected membership")
	}
}

func TestSetMembersSorted(t *testing.T) {
	s := NewSet()
	for _, m := range []string{"c", "a", "b"} {
		s.Add(m)
	}
	if got := s.Members(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Members = %v", got)
	}
}

func TestSetDiffInterUnion(t *testing.T) {
	a := NewSet()
	for _, m := range []string{"a", "b", "c"} {
		a.Add(m)
	}
	b := NewSet()
	for _, m := range []string{"b", "c", "d"} {
		b.Add(m)
	}

	if got := a.Diff(b).Members(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("Diff = %v", got)
	}
	if got := a.Inter(b).Members(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("Inter = %v", got)
	}
	if got := a.Union(b).Members(); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("Union = %v", got)
	}
}

func TestSetSampleDistinctBound(t *testing.T) {
	s := NewSet()
	for _, m := range []string{"a", "b", "c"} {
		s.Add(m)
	}
	sample := s.SampleDistinct(10)
	if len(sample) != 3 {
		t.Fatalf("SampleDistinct(10) len = %d, want 3", len(sample))
	}
	seen := map[string]bool{}
	for _, m := range sample {
		if seen[m] {
			t.Fatalf("SampleDistinct returned duplicate %q", m)
		}
		seen[m] = true
	}
}

func TestSetPopRemovesMember(t *testing.T) {
	s := NewSet()
	s.Add("only")
	v, ok := s.Pop()
	if !ok || v != "only" {
		t.Fatalf("Pop = %q, %v", v, ok)
	}
	if s.Card() != 0 {
		t.Fatalf("Card() after Pop = %d, want 0", s.Card())
	}
}
