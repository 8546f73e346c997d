// Package sketch implements the bounded-memory probabilistic summaries
// backing the approximate pipeline sinks: a Count-Min based top-k
// counter, a HyperLogLog cardinality estimator, and a uniform
// reservoir sample.
//
// Every sketch carries an associative Merge so per-partition instances
// combine into one whose accuracy bounds are those the constructor
// parameters selected. TopK and Cardinality merges return an error when
// the two sketches' shapes differ; Reservoir's merge cannot fail and
// keeps the receiver's capacity.
package sketch

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// keyBytes renders an item to a stable byte key for hashing. The
// rendering only needs to be injective per item type and identical
// across processes, which fmt's value formatting satisfies for the
// comparable value types that flow into sketches.
func keyBytes(item any) []byte {
	return fmt.Appendf(nil, "%v", item)
}

// hashPair derives the two independent hashes used for double hashing.
func hashPair(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)
	d := xxhash.New()
	_, _ = d.Write([]byte{0xa5})
	_, _ = d.Write(key)
	return h1, d.Sum64()
}
