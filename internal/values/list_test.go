package values

import (
	"reflect"
	"testing"
)

func TestListPushPopLen(t *testing.T) {
	l := NewList()
	l.RPush("a", "b", "c")
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if got := l.Range(0, -1); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Range = %v", got)
	}
	v, ok := l.LPop()
	if !ok || v != "a" {
		t.Fatalf("LPop = %q, %v", v, ok)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
}

func TestListPopEmpty(t *testing.T) {
	l := NewList()
	if _, ok := l.LPop(); ok {
		t.Fatal("expected no value")
	}
	if _, ok := l.RPop(); ok {
		t.Fatal("expected no value")
	}
}

func TestListIndexNegative(t *testing.T) {
	l := NewList()
	l.RPush("a", "b", "c")
	v, ok := l.Index(-1)
	if !ok || v != "c" {
		t.Fatalf("Index(-1) = %q, %v", v, ok)
	}
}

func TestListRem(t *testing.T) {
	l := NewList()
	l.RPush("a", "b", "a", "c", "a")
	removed := l.Rem(0, "a")
	if removed != 3 {
		t.Fatalf("Rem(0) removed %d, want 3", removed)
	}
	if got := l.Range(0, -1); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("Range after Rem = %v", got)
	}
}

func TestListRemDirectional(t *testing.T) {
	l := NewList()
	l.RPush("a", "a", "a")
	if removed := l.Rem(2, "a"); removed != 2 {
		t.Fatalf("Rem(2) removed %d, want 2", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	l2 := NewList()
	l2.RPush("a", "a", "a")
	if removed := l2.Rem(-2, "a"); removed != 2 {
		t.Fatalf("Rem(-2) removed %d, want 2", removed)
	}
}

func TestListTrim(t *testing.T) {
	l := NewList()
	l.RPush("a", "b", "c", "d")
	l.Trim(1, 2)
	if got := l.Range(0, -1); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("Range after Trim = %v", got)
	}
}

func TestListTrimEmptiesKey(t *testing.T) {
	l := NewList()
	l.RPush("a")
	emptied := l.Trim(5, 10)
	if !emptied || l.Len() != 0 {
		t.Fatalf("expected list to empty, len=%d emptied=%v", l.Len(), emptied)
	}
}

func TestListInsert(t *testing.T) {
	l := NewList()
	l.RPush("a", "c")
	if n := l.Insert(true, "c", "b"); n != 3 {
		t.Fatalf("Insert returned %d, want 3", n)
	}
	if got := l.Range(0, -1); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Range after Insert = %v", got)
	}
	if n := l.Insert(true, "missing", "x"); n != -1 {
		t.Fatalf("Insert with missing pivot = %d, want -1", n)
	}
}

func TestListSetOutOfRange(t *testing.T) {
	l := NewList()
	l.RPush("a")
	if err := l.Set(5, "x"); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
