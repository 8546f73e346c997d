package dist

import (
	"context"
	"fmt"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// Erase adapts a sink with concrete partial and output types to the
// transport shape. Partials come back off the wire as decoded
// interface values; the erased global reducer asserts them back to A,
// so A must survive a codec round trip as itself (for gob: a
// registered concrete type).
func Erase[A, O any](sink amadeus.ParallelSink[any, A, O]) Sink {
	return erasedSink[A, O]{inner: sink}
}

type erasedSink[A, O any] struct {
	inner amadeus.ParallelSink[any, A, O]
}

func (e erasedSink[A, O]) Ordered() bool { return e.inner.Ordered() }

func (e erasedSink[A, O]) ReduceA() amadeus.Reducer[any, any] {
	return erasedReducer[A]{inner: e.inner.ReduceA()}
}

func (e erasedSink[A, O]) ReduceC() amadeus.Reducer[any, any] {
	return castReducer[A, O]{inner: e.inner.ReduceC()}
}

type erasedReducer[A any] struct {
	inner amadeus.Reducer[any, A]
}

func (r erasedReducer[A]) Push(ctx context.Context, item any) (bool, error) {
	return r.inner.Push(ctx, item)
}

func (r erasedReducer[A]) Output() (any, error) {
	return r.inner.Output()
}

type castReducer[A, O any] struct {
	inner amadeus.Reducer[A, O]
}

func (r castReducer[A, O]) Push(ctx context.Context, partial any) (bool, error) {
	a, ok := partial.(A)
	if !ok {
		return false, fmt.Errorf("dist: partial decoded as %T, want %T", partial, a)
	}
	return r.inner.Push(ctx, a)
}

func (r castReducer[A, O]) Output() (any, error) {
	return r.inner.Output()
}
