package sketch

import (
	"fmt"

	"github.com/axiomhq/hyperloglog"
)

// Cardinality estimates the number of distinct values pushed into it,
// backed by a HyperLogLog. errorRate selects the register precision:
// the estimate's standard error is at most the requested rate (subject
// to the backing sketch's supported precisions).
type Cardinality struct {
	precision uint8
	hll       *hyperloglog.Sketch
}

// NewCardinality returns an empty estimator with standard error at
// most errorRate, which must lie in (0, 1).
func NewCardinality(errorRate float64) *Cardinality {
	if errorRate <= 0 || errorRate >= 1 {
		panic(fmt.Sprintf("sketch: invalid cardinality error rate %v", errorRate))
	}
	// stderr ≈ 1.04/√(2^p); p=14 gives ~0.81%, p=16 gives ~0.41%.
	if errorRate < 1.04/128 {
		return &Cardinality{precision: 16, hll: hyperloglog.New16()}
	}
	return &Cardinality{precision: 14, hll: hyperloglog.New14()}
}

// Push inserts one value.
func (c *Cardinality) Push(value any) {
	c.hll.Insert(keyBytes(value))
}

// Estimate reports the current distinct-value estimate.
func (c *Cardinality) Estimate() uint64 {
	return c.hll.Estimate()
}

// Merge unions other into c. Precisions must match.
func (c *Cardinality) Merge(other *Cardinality) error {
	if c.precision != other.precision {
		return fmt.Errorf("sketch: merging cardinality sketches of precision %d and %d", c.precision, other.precision)
	}
	return c.hll.Merge(other.hll)
}
