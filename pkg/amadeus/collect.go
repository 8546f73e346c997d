package amadeus

import (
	"cmp"
	"context"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Collect gathers every item into a slice ordered by partition index,
// then by source order within each partition.
func Collect[T any]() ParallelSink[T, []T, []T] { return collectSink[T]{} }

type collectSink[T any] struct{ orderedSink }

func (collectSink[T]) ReduceA() Reducer[T, []T] {
	return &reducerFuncs[T, []T, []T]{
		push: func(_ context.Context, acc []T, item T) ([]T, bool, error) {
			return append(acc, item), false, nil
		},
		out: func(acc []T) ([]T, error) { return acc, nil },
	}
}

func (collectSink[T]) ReduceC() Reducer[[]T, []T] {
	return &reducerFuncs[[]T, []T, []T]{
		push: func(_ context.Context, acc, part []T) ([]T, bool, error) {
			return append(acc, part...), false, nil
		},
		out: func(acc []T) ([]T, error) { return acc, nil },
	}
}

// CollectMap gathers KV items into an ordered map keyed first-seen by
// partition order. A later duplicate key overwrites the value but keeps
// the original position.
func CollectMap[K comparable, V any]() ParallelSink[KV[K, V], []KV[K, V], *orderedmap.OrderedMap[K, V]] {
	return collectMapSink[K, V]{}
}

type collectMapSink[K comparable, V any] struct{ orderedSink }

func (collectMapSink[K, V]) ReduceA() Reducer[KV[K, V], []KV[K, V]] {
	return collectSink[KV[K, V]]{}.ReduceA()
}

func (collectMapSink[K, V]) ReduceC() Reducer[[]KV[K, V], *orderedmap.OrderedMap[K, V]] {
	return &reducerFuncs[[]KV[K, V], *orderedmap.OrderedMap[K, V], *orderedmap.OrderedMap[K, V]]{
		state: orderedmap.New[K, V](),
		push: func(_ context.Context, m *orderedmap.OrderedMap[K, V], part []KV[K, V]) (*orderedmap.OrderedMap[K, V], bool, error) {
			for _, kv := range part {
				m.Set(kv.Key, kv.Value)
			}
			return m, false, nil
		},
		out: func(m *orderedmap.OrderedMap[K, V]) (*orderedmap.OrderedMap[K, V], error) { return m, nil },
	}
}

// Bin is one bucket of a Histogram: a distinct item and its exact count.
type Bin[T any] struct {
	Item  T
	Count uint64
}

// Histogram counts distinct items exactly, returning bins sorted
// ascending by item. Per-task partials are emitted sorted and the
// global phase merges them by key, so the result is independent of
// partitioning.
func Histogram[T cmp.Ordered]() ParallelSink[T, []Bin[T], []Bin[T]] { return histogramSink[T]{} }

type histogramSink[T cmp.Ordered] struct{ unorderedSink }

func (histogramSink[T]) ReduceA() Reducer[T, []Bin[T]] {
	return &reducerFuncs[T, map[T]uint64, []Bin[T]]{
		state: map[T]uint64{},
		push: func(_ context.Context, counts map[T]uint64, item T) (map[T]uint64, bool, error) {
			counts[item]++
			return counts, false, nil
		},
		out: func(counts map[T]uint64) ([]Bin[T], error) {
			bins := make([]Bin[T], 0, len(counts))
			for item, n := range counts {
				bins = append(bins, Bin[T]{Item: item, Count: n})
			}
			slices.SortFunc(bins, func(a, b Bin[T]) int { return cmp.Compare(a.Item, b.Item) })
			return bins, nil
		},
	}
}

func (histogramSink[T]) ReduceC() Reducer[[]Bin[T], []Bin[T]] {
	return &reducerFuncs[[]Bin[T], []Bin[T], []Bin[T]]{
		push: func(_ context.Context, acc, part []Bin[T]) ([]Bin[T], bool, error) {
			return mergeBins(acc, part), false, nil
		},
		out: func(acc []Bin[T]) ([]Bin[T], error) { return acc, nil },
	}
}

// mergeBins merges two key-sorted bin slices, summing counts of equal
// items.
func mergeBins[T cmp.Ordered](a, b []Bin[T]) []Bin[T] {
	merged := make([]Bin[T], 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := cmp.Compare(a[i].Item, b[j].Item); {
		case c < 0:
			merged = append(merged, a[i])
			i++
		case c > 0:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, Bin[T]{Item: a[i].Item, Count: a[i].Count + b[j].Count})
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
