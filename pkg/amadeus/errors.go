package amadeus

import (
	"errors"
	"fmt"
)

// Kind classifies where in the pipeline an error arose.
type Kind int

const (
	// KindSourceEnumeration: the source failed to enumerate partitions;
	// the pipeline aborts before any task runs.
	KindSourceEnumeration Kind = iota + 1
	// KindPartitionOpen: a partition failed to open its pages.
	KindPartitionOpen
	// KindPageIO: a page read failed mid-stream.
	KindPageIO
	// KindDecode: a record decoder upstream of the engine failed.
	KindDecode
	// KindTaskPanic: a user function panicked; the payload is reduced
	// to a message.
	KindTaskPanic
	// KindPool: the executor could not schedule a task or lost a worker.
	KindPool
)

func (k Kind) String() string {
	switch k {
	case KindSourceEnumeration:
		return "source enumeration"
	case KindPartitionOpen:
		return "partition open"
	case KindPageIO:
		return "page io"
	case KindDecode:
		return "decode"
	case KindTaskPanic:
		return "task panic"
	case KindPool:
		return "pool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is what a failed run resolves to: the failure's kind, the
// partition it arose in (NoPartition for pre-task failures), and the
// underlying cause. When several tasks fail, the error with the lowest
// partition index wins and the others are discarded (after optional
// logging).
type Error struct {
	Kind      Kind
	Partition int
	Cause     error
}

// NoPartition marks errors not attributable to a partition.
const NoPartition = -1

func (e *Error) Error() string {
	if e.Partition == NoPartition {
		return fmt.Sprintf("amadeus: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("amadeus: partition %d: %s: %v", e.Partition, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// newError wraps cause, preserving an existing *Error's identity so
// kinds assigned deep in a task survive to the surface.
func newError(kind Kind, partition int, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return &Error{Kind: kind, Partition: partition, Cause: cause}
}
