// Package pool provides the worker-pool contract the pipeline driver
// schedules over, plus a process-local implementation.
//
// The driver only needs two things from a pool: how wide it is, and a
// way to run a function on a worker. A pool with fewer workers than
// submitted tasks queues the excess; submission order is preserved for
// dequeueing but completion order is not defined.
package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs tasks with bounded parallelism.
type Pool interface {
	// Processes reports the number of concurrent workers.
	Processes() int

	// Run executes fn on a worker, blocking while the pool is full.
	// It returns fn's error, or ctx's error if the context is
	// cancelled before a worker becomes free. fn always receives the
	// caller's ctx.
	Run(ctx context.Context, fn func(context.Context) error) error
}

// Threads is an in-process Pool: up to n tasks execute concurrently,
// each on its own goroutine, and further Run calls block until a slot
// frees.
type Threads struct {
	n   int
	sem *semaphore.Weighted
}

// NewThreads returns a pool of n workers; n <= 0 selects the number of
// CPUs.
func NewThreads(n int) *Threads {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Threads{n: n, sem: semaphore.NewWeighted(int64(n))}
}

// Processes implements Pool.
func (t *Threads) Processes() int { return t.n }

// Run implements Pool.
func (t *Threads) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.sem.Release(1)
	return fn(ctx)
}
