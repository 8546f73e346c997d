package amadeus

import (
	"cmp"
	"context"
)

// Summable constrains Sum's element type to values with an associative
// built-in addition.
type Summable interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 | ~complex64 | ~complex128 | ~string
}

// reducerFuncs assembles a Reducer from a fold function and a final
// output projection, the shape shared by every plain sink.
type reducerFuncs[I, S, O any] struct {
	state S
	push  func(ctx context.Context, state S, item I) (S, bool, error)
	out   func(S) (O, error)
}

func (r *reducerFuncs[I, S, O]) Push(ctx context.Context, item I) (bool, error) {
	next, done, err := r.push(ctx, r.state, item)
	r.state = next
	return done, err
}

func (r *reducerFuncs[I, S, O]) Output() (O, error) { return r.out(r.state) }

// unorderedSink is embedded by sinks whose global merge is associative
// and commutative; orderedSink by sinks whose merge depends on
// partition order (first-seen tie-breaks, ordered collection).
type unorderedSink struct{}

func (unorderedSink) Ordered() bool { return false }

type orderedSink struct{}

func (orderedSink) Ordered() bool { return true }

// Count counts items exactly; order-independent.
func Count[T any]() ParallelSink[T, uint64, uint64] { return countSink[T]{} }

type countSink[T any] struct{ unorderedSink }

func (countSink[T]) ReduceA() Reducer[T, uint64] {
	return &reducerFuncs[T, uint64, uint64]{
		push: func(_ context.Context, n uint64, _ T) (uint64, bool, error) { return n + 1, false, nil },
		out:  func(n uint64) (uint64, error) { return n, nil },
	}
}

func (countSink[T]) ReduceC() Reducer[uint64, uint64] {
	return &reducerFuncs[uint64, uint64, uint64]{
		push: func(_ context.Context, n, p uint64) (uint64, bool, error) { return n + p, false, nil },
		out:  func(n uint64) (uint64, error) { return n, nil },
	}
}

// Sum sums items with built-in addition; exact for integer types,
// subject to the usual non-associativity caveats for floats.
func Sum[T Summable]() ParallelSink[T, T, T] { return sumSink[T]{} }

type sumSink[T Summable] struct{ unorderedSink }

func sumReducer[T Summable]() Reducer[T, T] {
	return &reducerFuncs[T, T, T]{
		push: func(_ context.Context, acc, item T) (T, bool, error) { return acc + item, false, nil },
		out:  func(acc T) (T, error) { return acc, nil },
	}
}

func (sumSink[T]) ReduceA() Reducer[T, T] { return sumReducer[T]() }
func (sumSink[T]) ReduceC() Reducer[T, T] { return sumReducer[T]() }

// Fold reduces with a user-supplied identity and a pair of operators:
// op folds one item into an accumulator, merge folds a per-partition
// accumulator into another. Splitting the per-item and per-partition
// branches into two named operators replaces the Either-tagged single
// operator some implementations use.
//
// The user declares associativity: results are only partition-invariant
// when merge is associative with identity() as its identity.
func Fold[T, B any](identity func() B, op func(B, T) B, merge func(B, B) B) ParallelSink[T, B, B] {
	return foldSink[T, B]{identity: identity, op: op, merge: merge}
}

type foldSink[T, B any] struct {
	unorderedSink
	identity func() B
	op       func(B, T) B
	merge    func(B, B) B
}

func (s foldSink[T, B]) ReduceA() Reducer[T, B] {
	return &reducerFuncs[T, B, B]{
		state: s.identity(),
		push:  func(_ context.Context, acc B, item T) (B, bool, error) { return s.op(acc, item), false, nil },
		out:   func(acc B) (B, error) { return acc, nil },
	}
}

func (s foldSink[T, B]) ReduceC() Reducer[B, B] {
	return &reducerFuncs[B, B, B]{
		state: s.identity(),
		push:  func(_ context.Context, acc, part B) (B, bool, error) { return s.merge(acc, part), false, nil },
		out:   func(acc B) (B, error) { return acc, nil },
	}
}

// Combine reduces pairwise with f, yielding ok=false on an empty
// stream. f must be associative and commutative.
func Combine[T any](f func(T, T) T) ParallelSink[T, Option[T], Option[T]] {
	return combineSink[T]{f: f, unordered: true}
}

// Option is a maybe-absent final value, returned by sinks that have no
// output on an empty stream (Combine, Min, Max).
type Option[T any] struct {
	Value T
	Some  bool
}

type combineSink[T any] struct {
	f         func(T, T) T
	unordered bool
}

func (s combineSink[T]) Ordered() bool { return !s.unordered }

func (s combineSink[T]) ReduceA() Reducer[T, Option[T]] {
	return &reducerFuncs[T, Option[T], Option[T]]{
		push: func(_ context.Context, acc Option[T], item T) (Option[T], bool, error) {
			if !acc.Some {
				return Option[T]{Value: item, Some: true}, false, nil
			}
			return Option[T]{Value: s.f(acc.Value, item), Some: true}, false, nil
		},
		out: func(acc Option[T]) (Option[T], error) { return acc, nil },
	}
}

func (s combineSink[T]) ReduceC() Reducer[Option[T], Option[T]] {
	return &reducerFuncs[Option[T], Option[T], Option[T]]{
		push: func(_ context.Context, acc, part Option[T]) (Option[T], bool, error) {
			if !part.Some {
				return acc, false, nil
			}
			if !acc.Some {
				return part, false, nil
			}
			return Option[T]{Value: s.f(acc.Value, part.Value), Some: true}, false, nil
		},
		out: func(acc Option[T]) (Option[T], error) { return acc, nil },
	}
}

// Min selects the smallest item; ties broken first-seen with the lower
// partition index winning, hence an ordered global merge.
func Min[T cmp.Ordered]() ParallelSink[T, Option[T], Option[T]] {
	return MinBy[T](cmp.Compare[T])
}

// Max selects the largest item with the same tie-break as Min.
func Max[T cmp.Ordered]() ParallelSink[T, Option[T], Option[T]] {
	return MaxBy[T](cmp.Compare[T])
}

// MinBy selects the smallest item under compare (strictly smaller
// replaces, so the first seen of equals wins).
func MinBy[T any](compare func(a, b T) int) ParallelSink[T, Option[T], Option[T]] {
	return combineSink[T]{f: func(a, b T) T {
		if compare(b, a) < 0 {
			return b
		}
		return a
	}}
}

// MaxBy selects the largest item under compare.
func MaxBy[T any](compare func(a, b T) int) ParallelSink[T, Option[T], Option[T]] {
	return combineSink[T]{f: func(a, b T) T {
		if compare(b, a) > 0 {
			return b
		}
		return a
	}}
}

// MinByKey selects the item with the smallest key(item).
func MinByKey[T any, K cmp.Ordered](key func(T) K) ParallelSink[T, Option[T], Option[T]] {
	return MinBy(func(a, b T) int { return cmp.Compare(key(a), key(b)) })
}

// MaxByKey selects the item with the largest key(item).
func MaxByKey[T any, K cmp.Ordered](key func(T) K) ParallelSink[T, Option[T], Option[T]] {
	return MaxBy(func(a, b T) int { return cmp.Compare(key(a), key(b)) })
}

// ForEach applies fn to every item for its side effects. No order
// guarantee across partitions; failures still surface.
func ForEach[T any](fn func(T)) ParallelSink[T, struct{}, struct{}] {
	return forEachSink[T]{fn: fn}
}

type forEachSink[T any] struct {
	unorderedSink
	fn func(T)
}

func (s forEachSink[T]) ReduceA() Reducer[T, struct{}] {
	return &reducerFuncs[T, struct{}, struct{}]{
		push: func(_ context.Context, _ struct{}, item T) (struct{}, bool, error) {
			s.fn(item)
			return struct{}{}, false, nil
		},
		out: func(struct{}) (struct{}, error) { return struct{}{}, nil },
	}
}

func (s forEachSink[T]) ReduceC() Reducer[struct{}, struct{}] {
	return &reducerFuncs[struct{}, struct{}, struct{}]{
		push: func(_ context.Context, _, _ struct{}) (struct{}, bool, error) { return struct{}{}, false, nil },
		out:  func(struct{}) (struct{}, error) { return struct{}{}, nil },
	}
}

// All reports whether pred holds for every item. The global phase
// short-circuits on the first false partial; in-flight tasks are
// cancelled opportunistically but the result never waits on them.
func All[T any](pred func(T) bool) ParallelSink[T, bool, bool] {
	return boolSink[T]{pred: pred, all: true}
}

// Any reports whether pred holds for at least one item, with the dual
// short-circuit of All.
func Any[T any](pred func(T) bool) ParallelSink[T, bool, bool] {
	return boolSink[T]{pred: pred}
}

type boolSink[T any] struct {
	unorderedSink
	pred func(T) bool
	all  bool
}

func (s boolSink[T]) ReduceA() Reducer[T, bool] {
	return &reducerFuncs[T, bool, bool]{
		state: s.all,
		push: func(_ context.Context, _ bool, item T) (bool, bool, error) {
			ok := s.pred(item)
			if s.all {
				// A single false decides this partition.
				return ok, !ok, nil
			}
			return ok, ok, nil
		},
		out: func(acc bool) (bool, error) { return acc, nil },
	}
}

func (s boolSink[T]) ReduceC() Reducer[bool, bool] {
	return &reducerFuncs[bool, bool, bool]{
		state: s.all,
		push: func(_ context.Context, acc, part bool) (bool, bool, error) {
			if s.all {
				acc = acc && part
				return acc, !acc, nil
			}
			acc = acc || part
			return acc, acc, nil
		},
		out: func(acc bool) (bool, error) { return acc, nil },
	}
}
