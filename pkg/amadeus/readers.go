package amadeus

import (
	"context"
	"errors"
)

// Concrete reader stages. Each forwards Close to its upstream so that
// dropping the outermost reader releases page handles held at the root.

type mapReader[T, U any] struct {
	in Reader[T]
	f  func(T) U
}

func (r *mapReader[T, U]) Next(ctx context.Context) (U, error) {
	item, err := r.in.Next(ctx)
	if err != nil {
		var zero U
		return zero, err
	}
	return r.f(item), nil
}

func (r *mapReader[T, U]) Close() error { return CloseReader(r.in) }

type filterReader[T any] struct {
	in   Reader[T]
	pred func(T) bool
}

func (r *filterReader[T]) Next(ctx context.Context) (T, error) {
	for {
		item, err := r.in.Next(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if r.pred(item) {
			return item, nil
		}
	}
}

func (r *filterReader[T]) Close() error { return CloseReader(r.in) }

type inspectReader[T any] struct {
	in Reader[T]
	fn func(T)
}

func (r *inspectReader[T]) Next(ctx context.Context) (T, error) {
	item, err := r.in.Next(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	r.fn(item)
	return item, nil
}

func (r *inspectReader[T]) Close() error { return CloseReader(r.in) }

type updateReader[T any] struct {
	in Reader[T]
	fn func(*T)
}

func (r *updateReader[T]) Next(ctx context.Context) (T, error) {
	item, err := r.in.Next(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	r.fn(&item)
	return item, nil
}

func (r *updateReader[T]) Close() error { return CloseReader(r.in) }

type flatMapReader[T, U any] struct {
	in  Reader[T]
	f   func(T) Reader[U]
	cur Reader[U]
}

func (r *flatMapReader[T, U]) Next(ctx context.Context) (U, error) {
	var zero U
	for {
		if r.cur != nil {
			item, err := r.cur.Next(ctx)
			if err == nil {
				return item, nil
			}
			if cerr := CloseReader(r.cur); cerr != nil && errors.Is(err, End) {
				err = cerr
			}
			r.cur = nil
			if !errors.Is(err, End) {
				return zero, err
			}
		}
		src, err := r.in.Next(ctx)
		if err != nil {
			return zero, err
		}
		r.cur = r.f(src)
	}
}

func (r *flatMapReader[T, U]) Close() error {
	if r.cur != nil {
		_ = CloseReader(r.cur)
		r.cur = nil
	}
	return CloseReader(r.in)
}

type clonedReader[T any] struct {
	in Reader[*T]
}

func (r *clonedReader[T]) Next(ctx context.Context) (T, error) {
	ptr, err := r.in.Next(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}

func (r *clonedReader[T]) Close() error { return CloseReader(r.in) }
