package dist

import (
	"context"
	"errors"
	"fmt"
)

// ProcessPool executes transported tasks, one worker process (or
// in-process stand-in) at a time per slot. Spawn blocks while the pool
// is saturated and returns the encoded reduction partial.
type ProcessPool interface {
	Processes() int
	Spawn(ctx context.Context, task Task) ([]byte, error)
}

// Loopback is a ProcessPool that executes tasks in this process,
// still round-tripping partials through the codec so transport bugs
// surface without a cluster.
type Loopback struct {
	sem chan struct{}
}

// NewLoopback returns a loopback pool of n slots.
func NewLoopback(n int) *Loopback {
	if n < 1 {
		n = 1
	}
	return &Loopback{sem: make(chan struct{}, n)}
}

// Processes implements ProcessPool.
func (l *Loopback) Processes() int { return cap(l.sem) }

// Spawn implements ProcessPool.
func (l *Loopback) Spawn(ctx context.Context, task Task) ([]byte, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return Execute(ctx, task)
}

// Stream is the distributed mirror of ParallelStream: a named source,
// its opaque partition specs, and a chain of registered stages. It is
// a value; combinators return extended copies.
type Stream struct {
	source     string
	partitions [][]byte
	stages     []Stage
}

// NewStream roots a distributed pipeline in a registered source and
// its partition specs.
func NewStream(source string, partitions [][]byte) *Stream {
	return &Stream{source: source, partitions: partitions}
}

func (s *Stream) with(stage Stage) *Stream {
	stages := make([]Stage, len(s.stages), len(s.stages)+1)
	copy(stages, s.stages)
	return &Stream{source: s.source, partitions: s.partitions, stages: append(stages, stage)}
}

// Map appends the registered map fn.
func (s *Stream) Map(fn string) *Stream { return s.with(Stage{Op: OpMap, Func: fn}) }

// Filter appends the registered predicate fn.
func (s *Stream) Filter(fn string) *Stream { return s.with(Stage{Op: OpFilter, Func: fn}) }

// FlatMap appends the registered expansion fn.
func (s *Stream) FlatMap(fn string) *Stream { return s.with(Stage{Op: OpFlatMap, Func: fn}) }

// Inspect appends the registered observer fn.
func (s *Stream) Inspect(fn string) *Stream { return s.with(Stage{Op: OpInspect, Func: fn}) }

// Tasks builds the per-partition task list.
func (s *Stream) Tasks(sink string, sinkParams []byte) []Task {
	tasks := make([]Task, len(s.partitions))
	for i, part := range s.partitions {
		tasks[i] = Task{
			Source:     s.source,
			Partition:  part,
			Stages:     s.stages,
			Sink:       sink,
			SinkParams: sinkParams,
		}
	}
	return tasks
}

// Run fans the stream's tasks out over the process pool, decodes each
// returned partial, and feeds the sink's global reduction. The error
// contract matches the parallel driver: the first error by partition
// index wins and later partials never reach the output.
func Run(ctx context.Context, pool ProcessPool, s *Stream, sink string, sinkParams []byte) (any, error) {
	factory, err := lookup("sink", reg.sinks, sink)
	if err != nil {
		return nil, err
	}
	local, err := factory(sinkParams)
	if err != nil {
		return nil, err
	}

	tasks := s.Tasks(sink, sinkParams)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type partial struct {
		index int
		data  []byte
		err   error
	}
	results := make(chan partial, len(tasks))
	for i, task := range tasks {
		go func(index int, task Task) {
			data, err := pool.Spawn(ctx, task)
			results <- partial{index: index, data: data, err: err}
		}(i, task)
	}

	reduceC := local.ReduceC()
	ordered := local.Ordered()
	buffered := make(map[int]any)
	next := 0
	var firstErr error
	firstIdx := len(tasks)

	feed := func(index int, value any) (bool, error) {
		if !ordered {
			return reduceC.Push(ctx, value)
		}
		buffered[index] = value
		for {
			v, ok := buffered[next]
			if !ok {
				return false, nil
			}
			delete(buffered, next)
			next++
			done, err := reduceC.Push(ctx, v)
			if done || err != nil {
				return done, err
			}
		}
	}

	for remaining := len(tasks); remaining > 0; remaining-- {
		p := <-results
		if p.err != nil {
			if errors.Is(p.err, context.Canceled) {
				continue
			}
			if firstErr == nil || p.index < firstIdx {
				firstErr = fmt.Errorf("dist: partition %d: %w", p.index, p.err)
				firstIdx = p.index
			}
			cancel()
			continue
		}
		if firstErr != nil {
			continue
		}
		var value any
		if err := currentCodec().Unmarshal(p.data, &value); err != nil {
			firstErr = fmt.Errorf("dist: partition %d: %w", p.index, err)
			firstIdx = p.index
			cancel()
			continue
		}
		done, err := feed(p.index, value)
		if err != nil {
			firstErr = fmt.Errorf("dist: partition %d: %w", p.index, err)
			firstIdx = p.index
			cancel()
			continue
		}
		if done {
			cancel()
			return reduceC.Output()
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return reduceC.Output()
}
