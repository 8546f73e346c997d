package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecmocatta/amadeus/pkg/pool"
)

func TestThreadsProcesses(t *testing.T) {
	if got := pool.NewThreads(3).Processes(); got != 3 {
		t.Errorf("Processes() = %d, want 3", got)
	}
	if got := pool.NewThreads(0).Processes(); got < 1 {
		t.Errorf("Processes() = %d, want >= 1 for default sizing", got)
	}
}

// TestThreadsBoundsConcurrency: no more than n tasks run at once, and
// queued tasks all eventually run.
func TestThreadsBoundsConcurrency(t *testing.T) {
	const width = 3
	const tasks = 20
	p := pool.NewThreads(width)

	var running, peak, completed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Run(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				completed.Add(1)
				return nil
			})
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if completed.Load() != tasks {
		t.Errorf("completed = %d, want %d", completed.Load(), tasks)
	}
	if peak.Load() > width {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), width)
	}
}

func TestRunReturnsTaskError(t *testing.T) {
	p := pool.NewThreads(1)
	boom := errors.New("boom")
	if err := p.Run(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

// TestCancelWhileQueued: a task waiting for a slot honors context
// cancellation instead of running.
func TestCancelWhileQueued(t *testing.T) {
	p := pool.NewThreads(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := p.Run(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	close(release)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("cancelled task ran anyway")
	}
}
