package amadeus_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
	"github.com/alecmocatta/amadeus/pkg/pool"
	"github.com/alecmocatta/amadeus/pkg/source"
)

// fakeSource is a scriptable source: per-partition items, injected
// failures, and open-handle accounting for cancellation tests.
type fakeSource struct {
	parts   []fakePartition
	handles *atomic.Int64
}

type fakePartition struct {
	items    []int
	failOpen bool
	failAt   int // fail the read at this item index; -1 disables
	block    bool // never yield until cancelled
}

func newFakeSource(parts ...fakePartition) *fakeSource {
	return &fakeSource{parts: parts, handles: &atomic.Int64{}}
}

func (s *fakeSource) Partitions(context.Context) ([]amadeus.StreamTask[int], error) {
	tasks := make([]amadeus.StreamTask[int], len(s.parts))
	for i, p := range s.parts {
		tasks[i] = &fakeTask{part: p, handles: s.handles}
	}
	return tasks, nil
}

type fakeTask struct {
	part    fakePartition
	handles *atomic.Int64
}

func (t *fakeTask) Open(ctx context.Context) (amadeus.Reader[int], error) {
	if t.part.failOpen {
		return nil, errors.New("pages unavailable")
	}
	t.handles.Add(1)
	return &fakeReader{part: t.part, handles: t.handles}, nil
}

type fakeReader struct {
	part    fakePartition
	handles *atomic.Int64
	pos     int
	closed  bool
}

func (r *fakeReader) Next(ctx context.Context) (int, error) {
	if r.part.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.part.failAt >= 0 && r.pos == r.part.failAt {
		return 0, errors.New("page read failed")
	}
	if r.pos >= len(r.part.items) {
		return 0, amadeus.End
	}
	item := r.part.items[r.pos]
	r.pos++
	return item, nil
}

func (r *fakeReader) Close() error {
	if !r.closed {
		r.closed = true
		r.handles.Add(-1)
	}
	return nil
}

// TestErrorSurfacesFirstPartition: a PageIO failure on partition 2 of
// 5 resolves to that partition's error and later partials never leak
// into the output.
func TestErrorSurfacesFirstPartition(t *testing.T) {
	src := newFakeSource(
		fakePartition{items: []int{1, 2}, failAt: -1},
		fakePartition{items: []int{3}, failAt: -1},
		fakePartition{items: []int{4, 5, 6}, failAt: 1},
		fakePartition{items: []int{7}, failAt: -1},
		fakePartition{items: []int{8}, failAt: -1},
	)
	_, err := amadeus.Run(context.Background(), testPool(), amadeus.New[int](src), amadeus.Sum[int]())
	if err == nil {
		t.Fatal("Run() error = nil, want page error")
	}
	var e *amadeus.Error
	if !errors.As(err, &e) {
		t.Fatalf("Run() error = %T, want *amadeus.Error", err)
	}
	if e.Partition != 2 {
		t.Errorf("error partition = %d, want 2", e.Partition)
	}
	if e.Kind != amadeus.KindPageIO {
		t.Errorf("error kind = %v, want %v", e.Kind, amadeus.KindPageIO)
	}
}

func TestPartitionOpenError(t *testing.T) {
	src := newFakeSource(
		fakePartition{items: []int{1}, failAt: -1},
		fakePartition{failOpen: true, failAt: -1},
	)
	_, err := amadeus.Run(context.Background(), testPool(), amadeus.New[int](src), amadeus.Count[int]())
	var e *amadeus.Error
	if !errors.As(err, &e) {
		t.Fatalf("Run() error = %v, want *amadeus.Error", err)
	}
	if e.Kind != amadeus.KindPartitionOpen || e.Partition != 1 {
		t.Errorf("error = kind %v partition %d, want partition open on 1", e.Kind, e.Partition)
	}
}

type enumFailSource struct{}

func (enumFailSource) Partitions(context.Context) ([]amadeus.StreamTask[int], error) {
	return nil, errors.New("listing failed")
}

func TestSourceEnumerationError(t *testing.T) {
	_, err := amadeus.Run(context.Background(), testPool(), amadeus.New[int](enumFailSource{}), amadeus.Count[int]())
	var e *amadeus.Error
	if !errors.As(err, &e) {
		t.Fatalf("Run() error = %v, want *amadeus.Error", err)
	}
	if e.Kind != amadeus.KindSourceEnumeration || e.Partition != amadeus.NoPartition {
		t.Errorf("error = kind %v partition %d, want enumeration with no partition", e.Kind, e.Partition)
	}
}

func TestUserPanicFailsTask(t *testing.T) {
	s := amadeus.Map(amadeus.New(source.Slice([]int{1}, []int{2})), func(x int) int {
		if x == 2 {
			panic("boom")
		}
		return x
	})
	_, err := amadeus.Run(context.Background(), testPool(), s, amadeus.Sum[int]())
	var e *amadeus.Error
	if !errors.As(err, &e) {
		t.Fatalf("Run() error = %v, want *amadeus.Error", err)
	}
	if e.Kind != amadeus.KindTaskPanic || e.Partition != 1 {
		t.Errorf("error = kind %v partition %d, want task panic on 1", e.Kind, e.Partition)
	}
}

// TestCancellationReleasesHandles: cancelling the run closes every
// open page handle.
func TestCancellationReleasesHandles(t *testing.T) {
	src := newFakeSource(
		fakePartition{block: true, failAt: -1},
		fakePartition{block: true, failAt: -1},
		fakePartition{block: true, failAt: -1},
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := amadeus.Run(ctx, testPool(), amadeus.New[int](src), amadeus.Count[int]())
		done <- err
	}()
	// Let the tasks open their partitions, then drop the run.
	deadline := time.After(2 * time.Second)
	for src.handles.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("tasks never opened: %d handles", src.handles.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	for i := 0; src.handles.Load() != 0; i++ {
		if i > 2000 {
			t.Fatalf("%d page handles still open after cancel", src.handles.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

// TestShortCircuitDoesNotBlock: any() must return as soon as a true
// partial arrives even while another partition never finishes.
func TestShortCircuitDoesNotBlock(t *testing.T) {
	src := newFakeSource(
		fakePartition{block: true, failAt: -1},
		fakePartition{items: []int{41, 42}, failAt: -1},
	)
	done := make(chan struct{})
	var got bool
	var err error
	go func() {
		got, err = amadeus.Run(context.Background(), testPool(), amadeus.New[int](src), amadeus.Any(func(x int) bool { return x == 42 }))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("any() blocked on a stuck partition")
	}
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !got {
		t.Error("any = false, want true")
	}
}

// TestQueuesBeyondPoolWidth: more partitions than workers must still
// all complete.
func TestQueuesBeyondPoolWidth(t *testing.T) {
	var parts [][]int
	for i := 0; i < 32; i++ {
		parts = append(parts, []int{i})
	}
	got, err := amadeus.Run(context.Background(), pool.NewThreads(2), amadeus.New(source.Slice(parts...)), amadeus.Count[int]())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 32 {
		t.Errorf("count = %d, want 32", got)
	}
}

// recordingObserver captures lifecycle events for assertion.
type recordingObserver struct {
	mu          sync.Mutex
	started     int
	transitions map[string]int
	ended       int
}

func (o *recordingObserver) RunStart(amadeus.RunInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) TaskTransition(_ amadeus.RunInfo, _ int, state amadeus.TaskState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.transitions == nil {
		o.transitions = map[string]int{}
	}
	o.transitions[state.String()]++
}

func (o *recordingObserver) RunEnd(_ amadeus.RunInfo, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended++
}

func TestObserverSeesLifecycle(t *testing.T) {
	ob := &recordingObserver{}
	_, err := amadeus.Run(context.Background(), testPool(),
		amadeus.New(source.Slice([]int{1, 2}, []int{3})),
		amadeus.Count[int](),
		amadeus.WithObserver(ob))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.started != 1 || ob.ended != 1 {
		t.Errorf("runs started/ended = %d/%d, want 1/1", ob.started, ob.ended)
	}
	for _, state := range []amadeus.TaskState{amadeus.TaskPending, amadeus.TaskRunning, amadeus.TaskDone} {
		if ob.transitions[state.String()] != 2 {
			t.Errorf("%v transitions = %d, want 2", state, ob.transitions[state.String()])
		}
	}
}

func TestErrorMessageCarriesPartition(t *testing.T) {
	e := &amadeus.Error{Kind: amadeus.KindPageIO, Partition: 3, Cause: fmt.Errorf("short read")}
	want := "amadeus: partition 3: page io: short read"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
