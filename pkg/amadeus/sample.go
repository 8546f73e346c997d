package amadeus

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/alecmocatta/amadeus/pkg/sketch"
)

// SampleUnstable draws a uniform random sample without replacement of
// at most n items across the whole stream. "Unstable" means no order
// is preserved. Each task samples with an independent seed; the global
// phase merges reservoirs weighted by how many items each saw.
func SampleUnstable[T any](n int) ParallelSink[T, *sketch.Reservoir[T], []T] {
	return sampleSink[T]{n: n}
}

type sampleSink[T any] struct {
	unorderedSink
	n int
}

func (s sampleSink[T]) ReduceA() Reducer[T, *sketch.Reservoir[T]] {
	return &reducerFuncs[T, *sketch.Reservoir[T], *sketch.Reservoir[T]]{
		state: sketch.NewReservoir[T](s.n),
		push: func(_ context.Context, r *sketch.Reservoir[T], item T) (*sketch.Reservoir[T], bool, error) {
			r.Push(item)
			return r, false, nil
		},
		out: func(r *sketch.Reservoir[T]) (*sketch.Reservoir[T], error) { return r, nil },
	}
}

func (s sampleSink[T]) ReduceC() Reducer[*sketch.Reservoir[T], []T] {
	return &reducerFuncs[*sketch.Reservoir[T], *sketch.Reservoir[T], []T]{
		push: func(_ context.Context, acc, part *sketch.Reservoir[T]) (*sketch.Reservoir[T], bool, error) {
			if acc == nil {
				return part, false, nil
			}
			acc.Merge(part)
			return acc, false, nil
		},
		out: func(acc *sketch.Reservoir[T]) ([]T, error) {
			if acc == nil {
				return nil, nil
			}
			return acc.Sample(), nil
		},
	}
}

// MostFrequent estimates the n most frequent items. With probability
// at least `probability`, each returned count is within
// `tolerance · N` of the item's true count over the N-item stream.
func MostFrequent[T comparable](n int, probability, tolerance float64) ParallelSink[T, *sketch.TopK[T], []sketch.Entry[T]] {
	return mostFrequentSink[T]{n: n, probability: probability, tolerance: tolerance}
}

type mostFrequentSink[T comparable] struct {
	unorderedSink
	n           int
	probability float64
	tolerance   float64
}

func (s mostFrequentSink[T]) ReduceA() Reducer[T, *sketch.TopK[T]] {
	return &reducerFuncs[T, *sketch.TopK[T], *sketch.TopK[T]]{
		state: sketch.NewTopK[T](s.n, s.probability, s.tolerance),
		push: func(_ context.Context, t *sketch.TopK[T], item T) (*sketch.TopK[T], bool, error) {
			t.Push(item)
			return t, false, nil
		},
		out: func(t *sketch.TopK[T]) (*sketch.TopK[T], error) { return t, nil },
	}
}

func (s mostFrequentSink[T]) ReduceC() Reducer[*sketch.TopK[T], []sketch.Entry[T]] {
	return &reducerFuncs[*sketch.TopK[T], *sketch.TopK[T], []sketch.Entry[T]]{
		push: func(_ context.Context, acc, part *sketch.TopK[T]) (*sketch.TopK[T], bool, error) {
			if acc == nil {
				return part, false, nil
			}
			if err := acc.Merge(part); err != nil {
				return nil, false, err
			}
			return acc, false, nil
		},
		out: func(acc *sketch.TopK[T]) ([]sketch.Entry[T], error) {
			if acc == nil {
				return nil, nil
			}
			return acc.Top(), nil
		},
	}
}

// DistinctEntry is one key of a MostDistinct result with its estimated
// count of distinct values.
type DistinctEntry[K comparable] struct {
	Key      K
	Distinct uint64
}

// MostDistinct estimates, over a stream of key/value pairs, the n keys
// with the most distinct values. Each per-key distinct estimate has
// standard error at most errorRate. probability and tolerance size a
// pair-frequency sketch over keys that travels with the partials; the
// result ranks every observed key by its distinct estimate and does not
// consult those frequencies.
func MostDistinct[K comparable, V any](n int, probability, tolerance, errorRate float64) ParallelSink[KV[K, V], *distinctPartial[K], []DistinctEntry[K]] {
	return mostDistinctSink[K, V]{n: n, probability: probability, tolerance: tolerance, errorRate: errorRate}
}

// distinctPartial is one task's per-key cardinality sketches plus a
// pair-frequency sketch over keys. The frequency sketch is merged along
// with the cardinality sketches but does not affect which keys are
// returned.
type distinctPartial[K comparable] struct {
	freq    *sketch.TopK[K]
	perKey  *orderedmap.OrderedMap[K, *sketch.Cardinality]
	errRate float64
}

type mostDistinctSink[K comparable, V any] struct {
	unorderedSink
	n           int
	probability float64
	tolerance   float64
	errorRate   float64
}

func (s mostDistinctSink[K, V]) newPartial() *distinctPartial[K] {
	return &distinctPartial[K]{
		freq:    sketch.NewTopK[K](s.n, s.probability, s.tolerance),
		perKey:  orderedmap.New[K, *sketch.Cardinality](),
		errRate: s.errorRate,
	}
}

func (s mostDistinctSink[K, V]) ReduceA() Reducer[KV[K, V], *distinctPartial[K]] {
	return &reducerFuncs[KV[K, V], *distinctPartial[K], *distinctPartial[K]]{
		state: s.newPartial(),
		push: func(_ context.Context, p *distinctPartial[K], item KV[K, V]) (*distinctPartial[K], bool, error) {
			p.freq.Push(item.Key)
			card, ok := p.perKey.Get(item.Key)
			if !ok {
				card = sketch.NewCardinality(p.errRate)
				p.perKey.Set(item.Key, card)
			}
			card.Push(item.Value)
			return p, false, nil
		},
		out: func(p *distinctPartial[K]) (*distinctPartial[K], error) { return p, nil },
	}
}

func (s mostDistinctSink[K, V]) ReduceC() Reducer[*distinctPartial[K], []DistinctEntry[K]] {
	return &reducerFuncs[*distinctPartial[K], *distinctPartial[K], []DistinctEntry[K]]{
		push: func(_ context.Context, acc, part *distinctPartial[K]) (*distinctPartial[K], bool, error) {
			if acc == nil {
				return part, false, nil
			}
			if err := acc.freq.Merge(part.freq); err != nil {
				return nil, false, err
			}
			for pair := part.perKey.Oldest(); pair != nil; pair = pair.Next() {
				card, ok := acc.perKey.Get(pair.Key)
				if !ok {
					acc.perKey.Set(pair.Key, pair.Value)
					continue
				}
				if err := card.Merge(pair.Value); err != nil {
					return nil, false, err
				}
			}
			return acc, false, nil
		},
		out: func(acc *distinctPartial[K]) ([]DistinctEntry[K], error) {
			if acc == nil {
				return nil, nil
			}
			entries := make([]DistinctEntry[K], 0, acc.perKey.Len())
			for pair := acc.perKey.Oldest(); pair != nil; pair = pair.Next() {
				entries = append(entries, DistinctEntry[K]{Key: pair.Key, Distinct: pair.Value.Estimate()})
			}
			slices.SortFunc(entries, func(a, b DistinctEntry[K]) int {
				if c := cmp.Compare(b.Distinct, a.Distinct); c != 0 {
					return c
				}
				return cmp.Compare(fmt.Sprint(a.Key), fmt.Sprint(b.Key))
			})
			if len(entries) > s.n {
				entries = entries[:s.n]
			}
			return entries, nil
		},
	}
}
