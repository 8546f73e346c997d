package dist

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// Execute runs one task on this process: open the partition, walk the
// stage chain item by item, run the sink's per-task reduction, and
// return the encoded partial. It is the single entry point a worker
// process exposes to its pool transport.
func Execute(ctx context.Context, task Task) (partial []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dist: task panic: %v", r)
		}
	}()

	open, err := lookup("source", reg.sources, task.Source)
	if err != nil {
		return nil, err
	}
	reader, err := open(ctx, task.Partition)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := amadeus.CloseReader(reader); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader, err = applyStages(reader, task.Stages)
	if err != nil {
		return nil, err
	}

	factory, err := lookup("sink", reg.sinks, task.Sink)
	if err != nil {
		return nil, err
	}
	sink, err := factory(task.SinkParams)
	if err != nil {
		return nil, err
	}
	red := sink.ReduceA()
	for {
		item, rerr := reader.Next(ctx)
		if rerr != nil {
			if errors.Is(rerr, amadeus.End) {
				break
			}
			return nil, rerr
		}
		done, perr := red.Push(ctx, item)
		if perr != nil {
			return nil, perr
		}
		if done {
			break
		}
	}
	a, err := red.Output()
	if err != nil {
		return nil, err
	}
	return currentCodec().Marshal(a)
}

// applyStages wraps reader with the stage chain, resolving each
// function through the registry.
func applyStages(reader amadeus.Reader[any], stages []Stage) (amadeus.Reader[any], error) {
	for _, stage := range stages {
		switch stage.Op {
		case OpMap, OpUpdate:
			fn, err := lookup("map", reg.maps, stage.Func)
			if err != nil {
				return nil, err
			}
			reader = mapAny{in: reader, fn: fn}
		case OpFilter:
			fn, err := lookup("filter", reg.filters, stage.Func)
			if err != nil {
				return nil, err
			}
			reader = filterAny{in: reader, fn: fn}
		case OpFlatMap:
			fn, err := lookup("flat_map", reg.flatMaps, stage.Func)
			if err != nil {
				return nil, err
			}
			reader = &flatMapAny{in: reader, fn: fn}
		case OpInspect:
			fn, err := lookup("inspect", reg.inspects, stage.Func)
			if err != nil {
				return nil, err
			}
			reader = inspectAny{in: reader, fn: fn}
		default:
			return nil, fmt.Errorf("dist: unknown stage op %v", stage.Op)
		}
	}
	return reader, nil
}

type mapAny struct {
	in amadeus.Reader[any]
	fn func(any) any
}

func (r mapAny) Next(ctx context.Context) (any, error) {
	item, err := r.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	return r.fn(item), nil
}

func (r mapAny) Close() error { return amadeus.CloseReader(r.in) }

type filterAny struct {
	in amadeus.Reader[any]
	fn func(any) bool
}

func (r filterAny) Next(ctx context.Context) (any, error) {
	for {
		item, err := r.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if r.fn(item) {
			return item, nil
		}
	}
}

func (r filterAny) Close() error { return amadeus.CloseReader(r.in) }

type flatMapAny struct {
	in  amadeus.Reader[any]
	fn  func(any) []any
	cur []any
}

func (r *flatMapAny) Next(ctx context.Context) (any, error) {
	for {
		if len(r.cur) > 0 {
			item := r.cur[0]
			r.cur = r.cur[1:]
			return item, nil
		}
		src, err := r.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		r.cur = r.fn(src)
	}
}

func (r *flatMapAny) Close() error { return amadeus.CloseReader(r.in) }

type inspectAny struct {
	in amadeus.Reader[any]
	fn func(any)
}

func (r inspectAny) Next(ctx context.Context) (any, error) {
	item, err := r.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	r.fn(item)
	return item, nil
}

func (r inspectAny) Close() error { return amadeus.CloseReader(r.in) }
