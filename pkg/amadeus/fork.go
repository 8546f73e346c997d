package amadeus

import "context"

// Tuple2 carries the two outputs of a forked reduction.
type Tuple2[A, B any] struct {
	A A
	B B
}

// Fork duplicates the item stream into two sinks running inside the
// same task. Each item is forwarded to left by value and to right as a
// shared read-only view: right must not mutate the item, and for
// reference-holding item types must copy anything it retains.
//
// Both branches observe items in the same order; backpressure is the
// slower of the two. The fork is done only when both branches are done,
// and it is ordered if either branch is.
func Fork[T, A1, O1, A2, O2 any](left ParallelSink[T, A1, O1], right ParallelSink[T, A2, O2]) ParallelSink[T, Tuple2[A1, A2], Tuple2[O1, O2]] {
	return forkSink[T, A1, O1, A2, O2]{left: left, right: right}
}

type forkSink[T, A1, O1, A2, O2 any] struct {
	left  ParallelSink[T, A1, O1]
	right ParallelSink[T, A2, O2]
}

func (s forkSink[T, A1, O1, A2, O2]) Ordered() bool {
	return s.left.Ordered() || s.right.Ordered()
}

func (s forkSink[T, A1, O1, A2, O2]) ReduceA() Reducer[T, Tuple2[A1, A2]] {
	return &forkReducer[T, A1, A2]{
		left:  s.left.ReduceA(),
		right: s.right.ReduceA(),
	}
}

func (s forkSink[T, A1, O1, A2, O2]) ReduceC() Reducer[Tuple2[A1, A2], Tuple2[O1, O2]] {
	return &forkReducerC[A1, O1, A2, O2]{
		left:  s.left.ReduceC(),
		right: s.right.ReduceC(),
	}
}

type forkReducer[T, A1, A2 any] struct {
	left      Reducer[T, A1]
	right     Reducer[T, A2]
	leftDone  bool
	rightDone bool
}

func (r *forkReducer[T, A1, A2]) Push(ctx context.Context, item T) (bool, error) {
	if !r.leftDone {
		done, err := r.left.Push(ctx, item)
		if err != nil {
			return false, err
		}
		r.leftDone = done
	}
	if !r.rightDone {
		done, err := r.right.Push(ctx, item)
		if err != nil {
			return false, err
		}
		r.rightDone = done
	}
	return r.leftDone && r.rightDone, nil
}

func (r *forkReducer[T, A1, A2]) Output() (Tuple2[A1, A2], error) {
	a1, err := r.left.Output()
	if err != nil {
		return Tuple2[A1, A2]{}, err
	}
	a2, err := r.right.Output()
	if err != nil {
		return Tuple2[A1, A2]{}, err
	}
	return Tuple2[A1, A2]{A: a1, B: a2}, nil
}

type forkReducerC[A1, O1, A2, O2 any] struct {
	left      Reducer[A1, O1]
	right     Reducer[A2, O2]
	leftDone  bool
	rightDone bool
}

func (r *forkReducerC[A1, O1, A2, O2]) Push(ctx context.Context, part Tuple2[A1, A2]) (bool, error) {
	if !r.leftDone {
		done, err := r.left.Push(ctx, part.A)
		if err != nil {
			return false, err
		}
		r.leftDone = done
	}
	if !r.rightDone {
		done, err := r.right.Push(ctx, part.B)
		if err != nil {
			return false, err
		}
		r.rightDone = done
	}
	return r.leftDone && r.rightDone, nil
}

func (r *forkReducerC[A1, O1, A2, O2]) Output() (Tuple2[O1, O2], error) {
	o1, err := r.left.Output()
	if err != nil {
		return Tuple2[O1, O2]{}, err
	}
	o2, err := r.right.Output()
	if err != nil {
		return Tuple2[O1, O2]{}, err
	}
	return Tuple2[O1, O2]{A: o1, B: o2}, nil
}
