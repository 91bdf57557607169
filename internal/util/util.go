// Package util holds small generic helpers shared across the command engine.
package util

import (
	"cmp"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"
)

// TransformSlice applies converter to each element of in and returns the results.
func TransformSlice[T any, R any](in []T, converter func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = converter(v)
	}
	return out
}

// SortedKeys returns m's keys in sorted order, for the deterministic
// iteration KEYS/snapshot/SMEMBERS-style commands require.
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// concurrentOutputWithOrdering pairs a goroutine's result with its input
// index so results can be restored to input order once every goroutine
// finishes, regardless of completion order.
type concurrentOutputWithOrdering[Tout any] struct {
	order  int
	output Tout
}

// ConcurrentMapFuncWithError runs f over every input with bounded
// concurrency, returning outputs in input order (not completion order) or
// the first error encountered. concurrency <= 0 means unlimited.
func ConcurrentMapFuncWithError[Tin any, Tout any](inputs []Tin, concurrency int, f func(Tin) (Tout, error)) ([]Tout, error) {
	eg := errgroup.Group{}
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	results := make([]concurrentOutputWithOrdering[Tout], len(inputs))
	for i := range inputs {
		order := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(in)
			if err != nil {
				return err
			}
			results[order] = concurrentOutputWithOrdering[Tout]{order, out}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b concurrentOutputWithOrdering[Tout]) int {
		return cmp.Compare(a.order, b.order)
	})
	return TransformSlice(results, func(t concurrentOutputWithOrdering[Tout]) Tout {
		return t.output
	}), nil
}
