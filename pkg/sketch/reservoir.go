package sketch

import (
	"math/rand/v2"
)

// Reservoir holds a uniform random sample without replacement of at
// most n items from a stream of unknown length. Each instance seeds
// its own generator, so per-task reservoirs sample independently.
//
// Merge combines two reservoirs into a sample of their concatenated
// streams by drawing from each side in proportion to how many items it
// has seen. The result is unstable: no order is preserved.
type Reservoir[T any] struct {
	n     int
	seen  uint64
	items []T
	rng   *rand.Rand
}

// NewReservoir returns an empty reservoir of capacity n.
func NewReservoir[T any](n int) *Reservoir[T] {
	return &Reservoir[T]{
		n:     n,
		items: make([]T, 0, n),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Push offers one item to the sample.
func (r *Reservoir[T]) Push(item T) {
	r.seen++
	if len(r.items) < r.n {
		r.items = append(r.items, item)
		return
	}
	if j := r.rng.Uint64N(r.seen); j < uint64(r.n) {
		r.items[j] = item
	}
}

// Seen reports how many items the reservoir has been offered.
func (r *Reservoir[T]) Seen() uint64 { return r.seen }

// Sample returns the current sample. The slice aliases the reservoir's
// storage and is invalidated by further pushes.
func (r *Reservoir[T]) Sample() []T { return r.items }

// Merge folds other into r, weighting draws by each side's seen count.
func (r *Reservoir[T]) Merge(other *Reservoir[T]) {
	merged := make([]T, 0, r.n)
	a, b := r.items, other.items
	wa, wb := float64(r.seen), float64(other.seen)
	for len(merged) < r.n && (len(a) > 0 || len(b) > 0) {
		takeA := len(b) == 0 || (len(a) > 0 && r.rng.Float64()*(wa+wb) < wa)
		if takeA {
			i := r.rng.IntN(len(a))
			merged = append(merged, a[i])
			a[i] = a[len(a)-1]
			a = a[:len(a)-1]
			wa = max(wa-1, 0)
		} else {
			i := r.rng.IntN(len(b))
			merged = append(merged, b[i])
			b[i] = b[len(b)-1]
			b = b[:len(b)-1]
			wb = max(wb-1, 0)
		}
	}
	r.items = merged
	r.seen += other.seen
}
