package amadeus

import (
	"context"
	"errors"
)

// Reducer consumes items and produces a single output. Push returns
// done=true to request early termination: the feeding loop stops
// pulling and calls Output with whatever has been absorbed so far.
//
// A reducer instance is exclusively owned by one task (or by the driver,
// for the global phase) until its Output is taken.
type Reducer[I, O any] interface {
	Push(ctx context.Context, item I) (done bool, err error)
	Output() (O, error)
}

// ParallelSink is a two-phase terminal reduction over a stream of T.
//
// ReduceA returns a fresh per-task reducer producing a partial A;
// ReduceC returns the global reducer combining partials into the final
// O. Both are factories: every call must return independent state.
//
// Laws every sink must uphold:
//
//   - The global reduction over partials is associative for sinks that
//     promise order-independence (Ordered() == false).
//   - Sinks with a fold-style identity satisfy reduce(identity, x) = x.
//   - An error in any per-task reducer aborts the global reducer; the
//     first error by partition index surfaces.
//
// Ordered declares whether the global reducer must consume partials in
// partition order. Order-independent sinks return false, which lets the
// driver feed partials as tasks complete and lets short-circuiting
// sinks (All, Any) decide without waiting on stragglers. Sinks whose
// merge is defined but non-commutative (first-seen tie-breaks, ordered
// collection) return true and are fed partials in partition order.
type ParallelSink[T, A, O any] interface {
	ReduceA() Reducer[T, A]
	ReduceC() Reducer[A, O]
	Ordered() bool
}

// PipeSink prepends a pipe to a sink, producing a sink over the pipe's
// source type. The pipe runs inside ReduceA, once per task.
func PipeSink[S, T, A, O any](p *ParallelPipe[S, T], sink ParallelSink[T, A, O]) ParallelSink[S, A, O] {
	return pipeSink[S, T, A, O]{task: p.task, sink: sink}
}

type pipeSink[S, T, A, O any] struct {
	task PipeTask[S, T]
	sink ParallelSink[T, A, O]
}

func (s pipeSink[S, T, A, O]) ReduceA() Reducer[S, A] {
	return &pipedReducer[S, T, A]{pipe: s.task.IntoAsync(), inner: s.sink.ReduceA()}
}

func (s pipeSink[S, T, A, O]) ReduceC() Reducer[A, O] { return s.sink.ReduceC() }

func (s pipeSink[S, T, A, O]) Ordered() bool { return s.sink.Ordered() }

// pipedReducer pushes each source item through a single-item pipe
// invocation, forwarding every produced item to the inner reducer.
type pipedReducer[S, T, A any] struct {
	pipe  Pipe[S, T]
	inner Reducer[T, A]
	done  bool
}

func (r *pipedReducer[S, T, A]) Push(ctx context.Context, item S) (bool, error) {
	if r.done {
		return true, nil
	}
	out := r.pipe.Pipe(FromSlice([]S{item}))
	for {
		t, err := out.Next(ctx)
		if err != nil {
			if errors.Is(err, End) {
				return false, nil
			}
			return false, err
		}
		done, err := r.inner.Push(ctx, t)
		if err != nil {
			return false, err
		}
		if done {
			r.done = true
			return true, nil
		}
	}
}

func (r *pipedReducer[S, T, A]) Output() (A, error) { return r.inner.Output() }
