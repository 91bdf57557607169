package util

import (
	"errors"
	"testing"
)

func TestConcurrentMapFuncWithErrorPreservesOrder(t *testing.T) {
	inputs := []int{4, 3, 2, 1, 0}
	out, err := ConcurrentMapFuncWithError(inputs, 0, func(n int) (int, error) {
		return n * n, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{16, 9, 4, 1, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestConcurrentMapFuncWithErrorPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ConcurrentMapFuncWithError([]int{1, 2, 3}, 0, func(n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestSortedKeysOrdersKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	got := SortedKeys(m)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got = %v, want %v", got, want)
		}
	}
}
