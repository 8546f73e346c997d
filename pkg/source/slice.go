package source

import (
	"context"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// Slice is an in-memory source with one partition per given slice.
// Mostly useful in tests and examples, and as the reference for the
// partitioning laws: reslicing the same items differently must not
// change any order-independent reduction.
func Slice[T any](partitions ...[]T) amadeus.Source[T] {
	return sliceSource[T]{partitions: partitions}
}

type sliceSource[T any] struct {
	partitions [][]T
}

func (s sliceSource[T]) Partitions(ctx context.Context) ([]amadeus.StreamTask[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tasks := make([]amadeus.StreamTask[T], len(s.partitions))
	for i, items := range s.partitions {
		tasks[i] = sliceTask[T]{items: items}
	}
	return tasks, nil
}

type sliceTask[T any] struct {
	items []T
}

func (t sliceTask[T]) Open(ctx context.Context) (amadeus.Reader[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return amadeus.FromSlice(t.items), nil
}
