package amadeus

import (
	"context"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// KV is the item shape consumed by keyed sinks (GroupBy, CollectMap,
// MostDistinct).
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// Pair groups keys with values.
func Pair[K comparable, V any](key K, value V) KV[K, V] {
	return KV[K, V]{Key: key, Value: value}
}

// GroupBy routes each item's value to a per-key instance of the inner
// sink, producing one inner output per observed key.
//
// The per-task phase holds one inner per-task reducer per distinct key;
// the global phase merges per-key partials in partition order and runs
// the inner global reducer for each key. Memory is proportional to the
// number of distinct keys; pre-aggregate upstream if that is too large.
// The inner sink's determinism carries over per key, and keys enumerate
// in first-seen order (by partition, then source order).
func GroupBy[K comparable, V, A, O any](inner ParallelSink[V, A, O]) ParallelSink[KV[K, V], *orderedmap.OrderedMap[K, A], *orderedmap.OrderedMap[K, O]] {
	return groupBySink[K, V, A, O]{inner: inner}
}

type groupBySink[K comparable, V, A, O any] struct {
	orderedSink
	inner ParallelSink[V, A, O]
}

func (s groupBySink[K, V, A, O]) ReduceA() Reducer[KV[K, V], *orderedmap.OrderedMap[K, A]] {
	return &groupByReducerA[K, V, A, O]{inner: s.inner, groups: orderedmap.New[K, Reducer[V, A]]()}
}

type groupByReducerA[K comparable, V, A, O any] struct {
	inner  ParallelSink[V, A, O]
	groups *orderedmap.OrderedMap[K, Reducer[V, A]]
	done   map[K]bool
}

func (r *groupByReducerA[K, V, A, O]) Push(ctx context.Context, item KV[K, V]) (bool, error) {
	red, ok := r.groups.Get(item.Key)
	if !ok {
		red = r.inner.ReduceA()
		r.groups.Set(item.Key, red)
	}
	// A key's reducer may finish early (inner short-circuit); it then
	// receives no further values while the task keeps running for the
	// remaining keys.
	if r.done[item.Key] {
		return false, nil
	}
	done, err := red.Push(ctx, item.Value)
	if err != nil {
		return false, err
	}
	if done {
		if r.done == nil {
			r.done = map[K]bool{}
		}
		r.done[item.Key] = true
	}
	return false, nil
}

func (r *groupByReducerA[K, V, A, O]) Output() (*orderedmap.OrderedMap[K, A], error) {
	out := orderedmap.New[K, A]()
	for pair := r.groups.Oldest(); pair != nil; pair = pair.Next() {
		a, err := pair.Value.Output()
		if err != nil {
			return nil, err
		}
		out.Set(pair.Key, a)
	}
	return out, nil
}

func (s groupBySink[K, V, A, O]) ReduceC() Reducer[*orderedmap.OrderedMap[K, A], *orderedmap.OrderedMap[K, O]] {
	return &groupByReducerC[K, V, A, O]{inner: s.inner, partials: orderedmap.New[K, []A]()}
}

type groupByReducerC[K comparable, V, A, O any] struct {
	inner    ParallelSink[V, A, O]
	partials *orderedmap.OrderedMap[K, []A]
}

func (r *groupByReducerC[K, V, A, O]) Push(_ context.Context, part *orderedmap.OrderedMap[K, A]) (bool, error) {
	for pair := part.Oldest(); pair != nil; pair = pair.Next() {
		existing, _ := r.partials.Get(pair.Key)
		r.partials.Set(pair.Key, append(existing, pair.Value))
	}
	return false, nil
}

func (r *groupByReducerC[K, V, A, O]) Output() (*orderedmap.OrderedMap[K, O], error) {
	out := orderedmap.New[K, O]()
	for pair := r.partials.Oldest(); pair != nil; pair = pair.Next() {
		red := r.inner.ReduceC()
		for _, a := range pair.Value {
			if done, err := red.Push(context.Background(), a); err != nil {
				return nil, err
			} else if done {
				break
			}
		}
		o, err := red.Output()
		if err != nil {
			return nil, err
		}
		out.Set(pair.Key, o)
	}
	return out, nil
}
