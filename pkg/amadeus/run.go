package amadeus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alecmocatta/amadeus/pkg/pool"
)

// TaskState is one vertex of the per-task lifecycle
// Pending → Running → (Done | Failed | Cancelled).
type TaskState int32

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskDone
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// RunInfo identifies one driver execution.
type RunInfo struct {
	ID         string
	Partitions int
}

// Observer receives driver lifecycle events. Task transitions are
// reported from task goroutines concurrently; implementations must be
// safe for concurrent use. The observe package provides Prometheus and
// OpenTelemetry implementations.
type Observer interface {
	RunStart(run RunInfo)
	TaskTransition(run RunInfo, partition int, state TaskState)
	RunEnd(run RunInfo, elapsed time.Duration, err error)
}

// RunOption configures a single driver execution.
type RunOption func(*runConfig)

type runConfig struct {
	logger    zerolog.Logger
	observers []Observer
}

// WithLogger routes driver lifecycle logging to l. Task transitions
// log at debug, discarded secondary errors at warn. The default
// logger is disabled.
func WithLogger(l zerolog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithObserver registers o for this run's lifecycle events. May be
// given more than once.
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) { c.observers = append(c.observers, o) }
}

// Run executes the pipeline: it enumerates s's partitions, fans one
// task per partition out over pl, feeds each task's partial result to
// sink's global reducer, and resolves to the sink's output.
//
// Error semantics: the first error by partition index wins; partial
// results never reach the output once any task has failed. Cancelling
// ctx cancels all in-flight tasks cooperatively and Run returns
// without blocking on them; likewise when a short-circuiting sink
// decides early, pending tasks are cancelled but never waited on.
func Run[T, A, O any](ctx context.Context, pl pool.Pool, s *ParallelStream[T], sink ParallelSink[T, A, O], opts ...RunOption) (O, error) {
	var zero O
	cfg := runConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	run := RunInfo{ID: uuid.NewString()}
	start := time.Now()

	tasks, err := s.Tasks(ctx)
	if err != nil {
		err = newError(KindSourceEnumeration, NoPartition, err)
		cfg.logger.Error().Str("run", run.ID).Err(err).Msg("source enumeration failed")
		return zero, err
	}
	run.Partitions = len(tasks)
	for _, ob := range cfg.observers {
		ob.RunStart(run)
	}
	cfg.logger.Debug().Str("run", run.ID).Int("partitions", run.Partitions).Msg("run started")

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type partial struct {
		index int
		value A
		err   error
	}
	// Buffered to the task count so no task goroutine ever blocks on a
	// driver that has already returned.
	results := make(chan partial, len(tasks))

	transition := func(index int, state TaskState) {
		cfg.logger.Debug().Str("run", run.ID).Int("partition", index).Stringer("state", state).Msg("task transition")
		for _, ob := range cfg.observers {
			ob.TaskTransition(run, index, state)
		}
	}

	for i, st := range tasks {
		transition(i, TaskPending)
		go func(index int, st StreamTask[T]) {
			sent := false
			err := pl.Run(ctx, func(ctx context.Context) error {
				transition(index, TaskRunning)
				value, err := runTask(ctx, st, sink.ReduceA(), index)
				results <- partial{index: index, value: value, err: err}
				sent = true
				return nil
			})
			if err != nil && !sent {
				// The pool refused the task: scheduling failure, or
				// cancellation while queued.
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					err = newError(KindPool, index, err)
				}
				results <- partial{index: index, err: err}
			}
		}(i, st)
	}

	finish := func(out O, err error) (O, error) {
		elapsed := time.Since(start)
		for _, ob := range cfg.observers {
			ob.RunEnd(run, elapsed, err)
		}
		if err != nil {
			cfg.logger.Debug().Str("run", run.ID).Dur("elapsed", elapsed).Err(err).Msg("run failed")
			return zero, err
		}
		cfg.logger.Debug().Str("run", run.ID).Dur("elapsed", elapsed).Msg("run finished")
		return out, nil
	}

	reduceC := sink.ReduceC()
	ordered := sink.Ordered()
	buffered := make(map[int]A)
	next := 0
	var firstErr *Error

	// feed pushes one partial into the global reducer, honoring the
	// sink's ordering declaration.
	feed := func(p partial) (bool, error) {
		if !ordered {
			return reduceC.Push(parent, p.value)
		}
		buffered[p.index] = p.value
		for {
			a, ok := buffered[next]
			if !ok {
				return false, nil
			}
			delete(buffered, next)
			next++
			done, err := reduceC.Push(parent, a)
			if done || err != nil {
				return done, err
			}
		}
	}

	for remaining := len(tasks); remaining > 0; remaining-- {
		var p partial
		select {
		case <-parent.Done():
			// The caller dropped the run: cancel everything and return
			// without blocking on in-flight tasks.
			cancel()
			return finish(zero, parent.Err())
		case p = <-results:
		}

		if p.err != nil {
			if errors.Is(p.err, context.Canceled) || errors.Is(p.err, context.DeadlineExceeded) {
				transition(p.index, TaskCancelled)
				continue
			}
			transition(p.index, TaskFailed)
			e := newError(KindPageIO, p.index, p.err)
			if firstErr == nil {
				firstErr = e
				cancel()
			} else if e.Partition < firstErr.Partition {
				cfg.logger.Warn().Str("run", run.ID).Int("partition", firstErr.Partition).Err(firstErr).Msg("superseded by earlier partition error")
				firstErr = e
			} else {
				cfg.logger.Warn().Str("run", run.ID).Int("partition", e.Partition).Err(e).Msg("secondary error discarded")
			}
			continue
		}

		transition(p.index, TaskDone)
		if firstErr != nil {
			continue
		}
		done, err := feed(p)
		if err != nil {
			firstErr = newError(KindDecode, p.index, err)
			cancel()
			continue
		}
		if done {
			// Short-circuit: the global reducer has decided. Cancel
			// stragglers opportunistically; correctness does not
			// depend on them.
			cancel()
			out, err := reduceC.Output()
			if err != nil {
				return finish(zero, newError(KindDecode, NoPartition, err))
			}
			return finish(out, nil)
		}
	}

	if firstErr != nil {
		return finish(zero, firstErr)
	}
	out, err := reduceC.Output()
	if err != nil {
		return finish(zero, newError(KindDecode, NoPartition, err))
	}
	return finish(out, nil)
}

// runTask drives one partition: open the stream, pull items in source
// order, push them into the per-task reducer, and finalize.
func runTask[T, A any](ctx context.Context, st StreamTask[T], red Reducer[T, A], index int) (a A, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindTaskPanic, Partition: index, Cause: fmt.Errorf("%v", r)}
		}
	}()
	reader, err := st.Open(ctx)
	if err != nil {
		return a, newError(KindPartitionOpen, index, err)
	}
	defer func() {
		if cerr := CloseReader(reader); cerr != nil && err == nil {
			err = newError(KindPageIO, index, cerr)
		}
	}()
	for {
		item, rerr := reader.Next(ctx)
		if rerr != nil {
			if errors.Is(rerr, End) {
				break
			}
			return a, newError(KindPageIO, index, rerr)
		}
		done, perr := red.Push(ctx, item)
		if perr != nil {
			return a, newError(KindDecode, index, perr)
		}
		if done {
			break
		}
	}
	a, err = red.Output()
	if err != nil {
		return a, newError(KindDecode, index, err)
	}
	return a, nil
}
