package amadeus_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// drain pulls a reader dry, failing the test on any non-End error.
func drain[T any](t *testing.T, r amadeus.Reader[T]) []T {
	t.Helper()
	var out []T
	for {
		item, err := r.Next(context.Background())
		if errors.Is(err, amadeus.End) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, item)
	}
}

func TestPipeCombinators(t *testing.T) {
	tests := []struct {
		name string
		pipe *amadeus.ParallelPipe[int, int]
		in   []int
		want []int
	}{
		{
			name: "identity",
			pipe: amadeus.NewPipe[int](),
			in:   []int{1, 2, 3},
			want: []int{1, 2, 3},
		},
		{
			name: "map",
			pipe: amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return -x }),
			in:   []int{1, 2},
			want: []int{-1, -2},
		},
		{
			name: "filter",
			pipe: amadeus.NewPipe[int]().Filter(func(x int) bool { return x%2 == 0 }),
			in:   []int{1, 2, 3, 4},
			want: []int{2, 4},
		},
		{
			name: "update",
			pipe: amadeus.NewPipe[int]().Update(func(x *int) { *x += 10 }),
			in:   []int{1, 2},
			want: []int{11, 12},
		},
		{
			name: "flat_map_drains_sub_stream_in_order",
			pipe: amadeus.PipeFlatMap(amadeus.NewPipe[int](), func(x int) amadeus.Reader[int] {
				return amadeus.FromSlice([]int{x, x + 100})
			}),
			in:   []int{1, 2},
			want: []int{1, 101, 2, 102},
		},
		{
			name: "chained",
			pipe: amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return x * 3 }).
				Filter(func(x int) bool { return x > 3 }),
			in:   []int{1, 2, 3},
			want: []int{6, 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The task is materialized twice to check that pipe state
			// never leaks between materializations.
			for run := 0; run < 2; run++ {
				got := drain(t, tt.pipe.Task().IntoAsync().Pipe(amadeus.FromSlice(tt.in)))
				if !slices.Equal(got, tt.want) {
					t.Errorf("run %d: got %v, want %v", run, got, tt.want)
				}
			}
		})
	}
}

func TestComposePipes(t *testing.T) {
	double := amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return x * 2 })
	str := amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) string { return string(rune('a' + x)) })
	composed := amadeus.ComposePipes(double, str)
	got := drain(t, composed.Task().IntoAsync().Pipe(amadeus.FromSlice([]int{0, 1, 2})))
	if want := []string{"a", "c", "e"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInspectDoesNotAlterItems(t *testing.T) {
	var seen []int
	pipe := amadeus.NewPipe[int]().Inspect(func(x int) { seen = append(seen, x) })
	got := drain(t, pipe.Task().IntoAsync().Pipe(amadeus.FromSlice([]int{7, 8})))
	if want := []int{7, 8}; !slices.Equal(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
	if want := []int{7, 8}; !slices.Equal(seen, want) {
		t.Errorf("inspected = %v, want %v", seen, want)
	}
}

// errReader yields one item then fails.
type errReader struct {
	yielded bool
	err     error
}

func (r *errReader) Next(context.Context) (int, error) {
	if !r.yielded {
		r.yielded = true
		return 1, nil
	}
	return 0, r.err
}

func TestPipePropagatesSourceError(t *testing.T) {
	srcErr := errors.New("torn page")
	pipe := amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return x + 1 })
	r := pipe.Task().IntoAsync().Pipe(&errReader{err: srcErr})

	if item, err := r.Next(context.Background()); err != nil || item != 2 {
		t.Fatalf("first Next() = (%d, %v), want (2, nil)", item, err)
	}
	if _, err := r.Next(context.Background()); !errors.Is(err, srcErr) {
		t.Errorf("second Next() error = %v, want %v", err, srcErr)
	}
}

// closeCounter tracks whether Close reached the chain root.
type closeCounter struct {
	amadeus.Reader[int]
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestCloseForwardsThroughChain(t *testing.T) {
	root := &closeCounter{Reader: amadeus.FromSlice([]int{1, 2, 3})}
	pipe := amadeus.PipeFlatMap(
		amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return x }).Filter(func(int) bool { return true }),
		func(x int) amadeus.Reader[int] { return amadeus.FromSlice([]int{x}) },
	)
	r := pipe.Task().IntoAsync().Pipe(root)
	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := amadeus.CloseReader(r); err != nil {
		t.Fatalf("CloseReader() error = %v", err)
	}
	if root.closed != 1 {
		t.Errorf("root closed %d times, want 1", root.closed)
	}
}

func TestPipeSink(t *testing.T) {
	pipe := amadeus.PipeMap(amadeus.NewPipe[int](), func(x int) int { return x * x }).
		Filter(func(x int) bool { return x > 1 })
	sink := amadeus.PipeSink(pipe, amadeus.Sum[int]())

	red := sink.ReduceA()
	for _, x := range []int{1, 2, 3} {
		if _, err := red.Push(context.Background(), x); err != nil {
			t.Fatalf("Push(%d) error = %v", x, err)
		}
	}
	partial, err := red.Output()
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if partial != 13 { // 4 + 9
		t.Errorf("partial = %d, want 13", partial)
	}
}
