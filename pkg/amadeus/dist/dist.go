// Package dist mirrors the parallel tier with the stricter bounds
// cross-process execution needs: every pipeline stage is named in a
// process-wide registry instead of captured as a closure, partition
// specs and reduction partials cross the wire as self-describing byte
// sequences, and items are type-erased so one executor entry point can
// serve any registered pipeline.
//
// Both driver and worker processes must perform the same
// registrations (and gob.Register the item and partial types) before
// any task is executed, typically from init functions, so that a
// worker binary is ready as soon as it starts. The wire format beyond
// that is the Codec's business; the default codec is gob.
package dist

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// Op is a stage's operator kind.
type Op int

const (
	OpMap Op = iota + 1
	OpFilter
	OpFlatMap
	OpInspect
	OpUpdate
)

func (o Op) String() string {
	switch o {
	case OpMap:
		return "map"
	case OpFilter:
		return "filter"
	case OpFlatMap:
		return "flat_map"
	case OpInspect:
		return "inspect"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Stage is one transformation of a transported pipeline: an operator
// kind plus the registered name of its function.
type Stage struct {
	Op   Op
	Func string
}

// Task is the unit shipped to a worker: which source to open, the
// opaque spec of the partition to open it on, the stage chain, and the
// sink whose per-task reduction to run. Tasks are values: cheap to
// copy for fan-out and fully described by registered names plus bytes.
type Task struct {
	Source     string
	Partition  []byte
	Stages     []Stage
	Sink       string
	SinkParams []byte
}

// Codec serializes reduction partials for transport. Implementations
// must produce self-describing sequences a peer process can decode
// knowing only the registered types.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v *any) error
}

// GobCodec is the default Codec. Concrete partial types must be
// gob-registered in every participating process.
type GobCodec struct{}

// Marshal implements Codec.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("encoding partial: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (GobCodec) Unmarshal(data []byte, v *any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decoding partial: %w", err)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	codec      Codec = GobCodec{}
)

// SetCodec replaces the transport codec. Call before any task runs,
// identically in every process.
func SetCodec(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	codec = c
}

func currentCodec() Codec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return codec
}
