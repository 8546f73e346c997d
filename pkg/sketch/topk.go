package sketch

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Entry is one of a TopK's current heavy hitters.
type Entry[T comparable] struct {
	Item  T
	Count uint64
}

// TopK tracks the n most frequent items of a stream with bounded
// memory: a Count-Min array of depth × width counters plus a candidate
// set of at most n items.
//
// With probability at least `probability`, each reported count is
// within `tolerance · N` of the item's true count, where N is the
// number of pushed items. The parameters select the array shape
// (width = ⌈e/tolerance⌉, depth = ⌈ln(1/(1-probability))⌉); Merge
// preserves the bounds because counter arrays add elementwise.
type TopK[T comparable] struct {
	n           int
	probability float64
	tolerance   float64
	width       int
	depth       int
	rows        []uint64 // depth rows of width counters, row-major
	candidates  map[T]uint64
	pushed      uint64
}

// NewTopK returns an empty sketch for the top n items. probability
// must lie in (0, 1) and tolerance in (0, 1].
func NewTopK[T comparable](n int, probability, tolerance float64) *TopK[T] {
	if n < 1 || probability <= 0 || probability >= 1 || tolerance <= 0 || tolerance > 1 {
		panic(fmt.Sprintf("sketch: invalid top-k parameters (n=%d, p=%v, tol=%v)", n, probability, tolerance))
	}
	width := int(math.Ceil(math.E / tolerance))
	depth := int(math.Ceil(math.Log(1 / (1 - probability))))
	if depth < 1 {
		depth = 1
	}
	return &TopK[T]{
		n:           n,
		probability: probability,
		tolerance:   tolerance,
		width:       width,
		depth:       depth,
		rows:        make([]uint64, width*depth),
		candidates:  make(map[T]uint64, n),
	}
}

// Push counts one occurrence of item.
func (t *TopK[T]) Push(item T) {
	t.pushed++
	h1, h2 := hashPair(keyBytes(item))
	est := uint64(math.MaxUint64)
	for row := 0; row < t.depth; row++ {
		idx := row*t.width + int((h1+uint64(row)*h2)%uint64(t.width))
		t.rows[idx]++
		if t.rows[idx] < est {
			est = t.rows[idx]
		}
	}
	t.offer(item, est)
}

// offer places item into the candidate set if its estimate earns a
// slot, evicting the current minimum.
func (t *TopK[T]) offer(item T, est uint64) {
	if _, ok := t.candidates[item]; ok {
		t.candidates[item] = est
		return
	}
	if len(t.candidates) < t.n {
		t.candidates[item] = est
		return
	}
	var minItem T
	minCount := uint64(math.MaxUint64)
	for it, c := range t.candidates {
		if c < minCount {
			minItem, minCount = it, c
		}
	}
	if est > minCount {
		delete(t.candidates, minItem)
		t.candidates[item] = est
	}
}

// estimate reads item's Count-Min estimate without modifying counters.
func (t *TopK[T]) estimate(item T) uint64 {
	h1, h2 := hashPair(keyBytes(item))
	est := uint64(math.MaxUint64)
	for row := 0; row < t.depth; row++ {
		idx := row*t.width + int((h1+uint64(row)*h2)%uint64(t.width))
		if t.rows[idx] < est {
			est = t.rows[idx]
		}
	}
	return est
}

// Pushed reports how many items the sketch (including merged-in
// sketches) has absorbed.
func (t *TopK[T]) Pushed() uint64 { return t.pushed }

// Merge folds other into t. Both sketches must share parameters.
func (t *TopK[T]) Merge(other *TopK[T]) error {
	if t.n != other.n || t.width != other.width || t.depth != other.depth {
		return fmt.Errorf("sketch: merging incompatible top-k sketches (%dx%d vs %dx%d)",
			t.depth, t.width, other.depth, other.width)
	}
	for i := range t.rows {
		t.rows[i] += other.rows[i]
	}
	t.pushed += other.pushed
	// Re-score the union of candidate sets against the merged counters
	// and keep the best n.
	union := make(map[T]struct{}, len(t.candidates)+len(other.candidates))
	for it := range t.candidates {
		union[it] = struct{}{}
	}
	for it := range other.candidates {
		union[it] = struct{}{}
	}
	t.candidates = make(map[T]uint64, t.n)
	for it := range union {
		t.offer(it, t.estimate(it))
	}
	return nil
}

// Top returns the current heavy hitters, sorted by descending count
// with item order as tie-break for determinism.
func (t *TopK[T]) Top() []Entry[T] {
	out := make([]Entry[T], 0, len(t.candidates))
	for it, c := range t.candidates {
		out = append(out, Entry[T]{Item: it, Count: c})
	}
	slices.SortFunc(out, func(a, b Entry[T]) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Item), fmt.Sprint(b.Item))
	})
	return out
}
