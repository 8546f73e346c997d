package amadeus

// Pipe is a per-task transducer: it wraps an upstream Reader of source
// items into a Reader of transformed items. A Pipe instance is
// single-owner and may hold per-task state (a flat map's current
// sub-stream, for example), so it is materialized fresh for every
// partition task from a PipeTask.
//
// Pipes are lazy. The returned Reader pulls from the upstream only when
// its own Next is called, and forwards Close to the upstream so that
// dropping the output releases the whole chain.
type Pipe[S, T any] interface {
	Pipe(in Reader[S]) Reader[T]
}

// PipeTask is the cheaply copyable factory that materializes a Pipe on
// a worker. The builder/executor split exists so that the pipeline
// structure can be duplicated once per partition while the executing
// Pipe itself need not be copyable.
//
// A PipeTask must not capture handles bound to the goroutine that
// constructed it; the distributed tier additionally requires tasks to
// be transportable (see the dist package).
type PipeTask[S, T any] interface {
	IntoAsync() Pipe[S, T]
}

// ParallelPipe is a non-executing builder of PipeTasks. It exposes the
// combinator surface; Task is its only non-combinator operation.
//
// Combinators that preserve the item type are methods. Combinators that
// change it (PipeMap, PipeFlatMap, PipeCloned) are top-level functions,
// since Go methods cannot introduce type parameters.
//
// The functions given to combinators are shared by every partition task
// and must therefore be safe for concurrent use. A function may keep
// per-item determinism without being deterministic across items, but it
// must not assume it observes the whole stream: each task sees only its
// partition's items.
type ParallelPipe[S, T any] struct {
	task PipeTask[S, T]
}

// NewPipe returns the identity pipe over T, the root for building a
// standalone pipe (for PipeSink or Pipe composition).
func NewPipe[T any]() *ParallelPipe[T, T] {
	return &ParallelPipe[T, T]{task: identityTask[T]{}}
}

// Task returns the pipe's task. The task is a value; callers fan it out
// by copying, materializing one Pipe per partition with IntoAsync.
func (p *ParallelPipe[S, T]) Task() PipeTask[S, T] {
	return p.task
}

// Filter keeps only items for which pred returns true.
func (p *ParallelPipe[S, T]) Filter(pred func(T) bool) *ParallelPipe[S, T] {
	return &ParallelPipe[S, T]{task: filterTask[S, T]{inner: p.task, pred: pred}}
}

// Inspect calls fn on each item without altering it. fn must not
// mutate the observable item; it exists for side effects such as
// logging or counting.
func (p *ParallelPipe[S, T]) Inspect(fn func(T)) *ParallelPipe[S, T] {
	return &ParallelPipe[S, T]{task: inspectTask[S, T]{inner: p.task, fn: fn}}
}

// Update applies fn to each item in place. Equivalent to a map that
// preserves item identity; useful for cheap mutation.
func (p *ParallelPipe[S, T]) Update(fn func(*T)) *ParallelPipe[S, T] {
	return &ParallelPipe[S, T]{task: updateTask[S, T]{inner: p.task, fn: fn}}
}

// PipeMap transforms each item 1:1 with f.
func PipeMap[S, T, U any](p *ParallelPipe[S, T], f func(T) U) *ParallelPipe[S, U] {
	return &ParallelPipe[S, U]{task: mapTask[S, T, U]{inner: p.task, f: f}}
}

// PipeFlatMap expands each item into a sub-stream. The sub-stream is
// fully drained before the next source item is pulled.
func PipeFlatMap[S, T, U any](p *ParallelPipe[S, T], f func(T) Reader[U]) *ParallelPipe[S, U] {
	return &ParallelPipe[S, U]{task: flatMapTask[S, T, U]{inner: p.task, f: f}}
}

// PipeCloned specializes a pipe yielding *T into one yielding owned T
// by copying at the boundary. Use it before a sink when upstream items
// borrow from a decoding buffer.
func PipeCloned[S any, T any](p *ParallelPipe[S, *T]) *ParallelPipe[S, T] {
	return &ParallelPipe[S, T]{task: clonedTask[S, T]{inner: p.task}}
}

// ComposePipes chains q after p.
func ComposePipes[S, T, U any](p *ParallelPipe[S, T], q *ParallelPipe[T, U]) *ParallelPipe[S, U] {
	return &ParallelPipe[S, U]{task: composedTask[S, T, U]{first: p.task, second: q.task}}
}

// identityTask / identityPipe root a pipe chain.

type identityTask[T any] struct{}

func (identityTask[T]) IntoAsync() Pipe[T, T] { return identityPipe[T]{} }

type identityPipe[T any] struct{}

func (identityPipe[T]) Pipe(in Reader[T]) Reader[T] { return in }

type composedTask[S, T, U any] struct {
	first  PipeTask[S, T]
	second PipeTask[T, U]
}

func (t composedTask[S, T, U]) IntoAsync() Pipe[S, U] {
	return composedPipe[S, T, U]{first: t.first.IntoAsync(), second: t.second.IntoAsync()}
}

type composedPipe[S, T, U any] struct {
	first  Pipe[S, T]
	second Pipe[T, U]
}

func (p composedPipe[S, T, U]) Pipe(in Reader[S]) Reader[U] {
	return p.second.Pipe(p.first.Pipe(in))
}

type mapTask[S, T, U any] struct {
	inner PipeTask[S, T]
	f     func(T) U
}

func (t mapTask[S, T, U]) IntoAsync() Pipe[S, U] {
	return mapPipe[S, T, U]{inner: t.inner.IntoAsync(), f: t.f}
}

type mapPipe[S, T, U any] struct {
	inner Pipe[S, T]
	f     func(T) U
}

func (p mapPipe[S, T, U]) Pipe(in Reader[S]) Reader[U] {
	return &mapReader[T, U]{in: p.inner.Pipe(in), f: p.f}
}

type filterTask[S, T any] struct {
	inner PipeTask[S, T]
	pred  func(T) bool
}

func (t filterTask[S, T]) IntoAsync() Pipe[S, T] {
	return filterPipe[S, T]{inner: t.inner.IntoAsync(), pred: t.pred}
}

type filterPipe[S, T any] struct {
	inner Pipe[S, T]
	pred  func(T) bool
}

func (p filterPipe[S, T]) Pipe(in Reader[S]) Reader[T] {
	return &filterReader[T]{in: p.inner.Pipe(in), pred: p.pred}
}

type inspectTask[S, T any] struct {
	inner PipeTask[S, T]
	fn    func(T)
}

func (t inspectTask[S, T]) IntoAsync() Pipe[S, T] {
	return inspectPipe[S, T]{inner: t.inner.IntoAsync(), fn: t.fn}
}

type inspectPipe[S, T any] struct {
	inner Pipe[S, T]
	fn    func(T)
}

func (p inspectPipe[S, T]) Pipe(in Reader[S]) Reader[T] {
	return &inspectReader[T]{in: p.inner.Pipe(in), fn: p.fn}
}

type updateTask[S, T any] struct {
	inner PipeTask[S, T]
	fn    func(*T)
}

func (t updateTask[S, T]) IntoAsync() Pipe[S, T] {
	return updatePipe[S, T]{inner: t.inner.IntoAsync(), fn: t.fn}
}

type updatePipe[S, T any] struct {
	inner Pipe[S, T]
	fn    func(*T)
}

func (p updatePipe[S, T]) Pipe(in Reader[S]) Reader[T] {
	return &updateReader[T]{in: p.inner.Pipe(in), fn: p.fn}
}

type flatMapTask[S, T, U any] struct {
	inner PipeTask[S, T]
	f     func(T) Reader[U]
}

func (t flatMapTask[S, T, U]) IntoAsync() Pipe[S, U] {
	return &flatMapPipe[S, T, U]{inner: t.inner.IntoAsync(), f: t.f}
}

type flatMapPipe[S, T, U any] struct {
	inner Pipe[S, T]
	f     func(T) Reader[U]
}

func (p *flatMapPipe[S, T, U]) Pipe(in Reader[S]) Reader[U] {
	return &flatMapReader[T, U]{in: p.inner.Pipe(in), f: p.f}
}

type clonedTask[S any, T any] struct {
	inner PipeTask[S, *T]
}

func (t clonedTask[S, T]) IntoAsync() Pipe[S, T] {
	return clonedPipe[S, T]{inner: t.inner.IntoAsync()}
}

type clonedPipe[S any, T any] struct {
	inner Pipe[S, *T]
}

func (p clonedPipe[S, T]) Pipe(in Reader[S]) Reader[T] {
	return &clonedReader[T]{in: p.inner.Pipe(in)}
}
