package dist

import (
	"context"
	"fmt"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// Sink is the type-erased sink shape registered for transport.
type Sink = amadeus.ParallelSink[any, any, any]

// SourceOpener materializes a partition's item stream from its opaque
// spec on a worker.
type SourceOpener func(ctx context.Context, partition []byte) (amadeus.Reader[any], error)

// SinkFactory builds a sink from its transported parameters.
type SinkFactory func(params []byte) (Sink, error)

type registry struct {
	sources  map[string]SourceOpener
	maps     map[string]func(any) any
	filters  map[string]func(any) bool
	flatMaps map[string]func(any) []any
	inspects map[string]func(any)
	sinks    map[string]SinkFactory
}

var reg = registry{
	sources:  map[string]SourceOpener{},
	maps:     map[string]func(any) any{},
	filters:  map[string]func(any) bool{},
	flatMaps: map[string]func(any) []any{},
	inspects: map[string]func(any){},
	sinks:    map[string]SinkFactory{},
}

func register[V any](kind string, m map[string]V, name string, v V) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := m[name]; dup {
		panic(fmt.Sprintf("dist: duplicate %s registration %q", kind, name))
	}
	m[name] = v
}

func lookup[V any](kind string, m map[string]V, name string) (V, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := m[name]
	if !ok {
		var zero V
		return zero, fmt.Errorf("dist: unknown %s %q", kind, name)
	}
	return v, nil
}

// RegisterSource names a partition opener. Panics on duplicates, as do
// all Register functions.
func RegisterSource(name string, open SourceOpener) {
	register("source", reg.sources, name, open)
}

// RegisterMap names a 1:1 transformation.
func RegisterMap(name string, fn func(any) any) {
	register("map", reg.maps, name, fn)
}

// RegisterFilter names a predicate.
func RegisterFilter(name string, fn func(any) bool) {
	register("filter", reg.filters, name, fn)
}

// RegisterFlatMap names a 1:N expansion.
func RegisterFlatMap(name string, fn func(any) []any) {
	register("flat_map", reg.flatMaps, name, fn)
}

// RegisterInspect names a side-effecting observer.
func RegisterInspect(name string, fn func(any)) {
	register("inspect", reg.inspects, name, fn)
}

// RegisterSink names a sink factory.
func RegisterSink(name string, factory SinkFactory) {
	register("sink", reg.sinks, name, factory)
}
