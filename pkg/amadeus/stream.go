package amadeus

import "context"

// StreamTask materializes one partition's item stream on a worker. Like
// PipeTask it is a cheaply copyable value holding no handles bound to
// the constructing goroutine; the handles are opened by Open and
// released when the returned Reader is closed.
type StreamTask[T any] interface {
	Open(ctx context.Context) (Reader[T], error)
}

// Source enumerates the partitions of a data set as stream tasks.
// Partitions is consumed exactly once per run; the tasks it returns are
// disjoint and their union is the source. Cardinality is fixed before
// execution starts.
type Source[T any] interface {
	Partitions(ctx context.Context) ([]StreamTask[T], error)
}

// ParallelStream is a pipeline rooted in a partitioned source, with the
// same combinator surface as ParallelPipe. Each applied combinator is
// fused into the per-partition tasks, so at run time a partition's task
// is exactly (stream task ∘ pipe task) and a sink only ever sees the
// final item type.
//
// A ParallelStream is a lazy builder; it holds no resources and may be
// discarded without cleanup. It is not reusable across runs when the
// underlying source consumes itself on enumeration.
type ParallelStream[T any] struct {
	partitions func(ctx context.Context) ([]StreamTask[T], error)
}

// New roots a stream in src.
func New[T any](src Source[T]) *ParallelStream[T] {
	return &ParallelStream[T]{partitions: src.Partitions}
}

// Tasks enumerates the stream's per-partition tasks. It is consumed by
// Run and by the distributed driver; most callers never use it directly.
func (s *ParallelStream[T]) Tasks(ctx context.Context) ([]StreamTask[T], error) {
	return s.partitions(ctx)
}

// pipeEach fuses a pipe task into every partition task.
func pipeEach[S, T any](s *ParallelStream[S], task PipeTask[S, T]) *ParallelStream[T] {
	return &ParallelStream[T]{partitions: func(ctx context.Context) ([]StreamTask[T], error) {
		inner, err := s.partitions(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]StreamTask[T], len(inner))
		for i, st := range inner {
			out[i] = pipedStreamTask[S, T]{src: st, task: task}
		}
		return out, nil
	}}
}

type pipedStreamTask[S, T any] struct {
	src  StreamTask[S]
	task PipeTask[S, T]
}

func (t pipedStreamTask[S, T]) Open(ctx context.Context) (Reader[T], error) {
	in, err := t.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return t.task.IntoAsync().Pipe(in), nil
}

// Filter keeps only items for which pred returns true.
func (s *ParallelStream[T]) Filter(pred func(T) bool) *ParallelStream[T] {
	return pipeEach(s, filterTask[T, T]{inner: identityTask[T]{}, pred: pred})
}

// Inspect calls fn on each item without altering it.
func (s *ParallelStream[T]) Inspect(fn func(T)) *ParallelStream[T] {
	return pipeEach(s, inspectTask[T, T]{inner: identityTask[T]{}, fn: fn})
}

// Update applies fn to each item in place.
func (s *ParallelStream[T]) Update(fn func(*T)) *ParallelStream[T] {
	return pipeEach(s, updateTask[T, T]{inner: identityTask[T]{}, fn: fn})
}

// Map transforms each item of s 1:1 with f. f is shared by every
// partition task and must be safe for concurrent use.
func Map[T, U any](s *ParallelStream[T], f func(T) U) *ParallelStream[U] {
	return pipeEach(s, mapTask[T, T, U]{inner: identityTask[T]{}, f: f})
}

// FlatMap expands each item of s into a sub-stream, fully drained
// before the next source item.
func FlatMap[T, U any](s *ParallelStream[T], f func(T) Reader[U]) *ParallelStream[U] {
	return pipeEach(s, flatMapTask[T, T, U]{inner: identityTask[T]{}, f: f})
}

// Cloned converts a stream of *T into a stream of owned T, copying at
// the boundary. Items crossing worker boundaries must be owned; use
// this when a source yields items borrowed from a decode buffer.
func Cloned[T any](s *ParallelStream[*T]) *ParallelStream[T] {
	return pipeEach[*T, T](s, clonedTask[*T, T]{inner: identityTask[*T]{}})
}

// Through appends a standalone pipe to the stream.
func Through[T, U any](s *ParallelStream[T], p *ParallelPipe[T, U]) *ParallelStream[U] {
	return pipeEach(s, p.task)
}
