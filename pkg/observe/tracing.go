package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// Tracing is an amadeus.Observer emitting one OpenTelemetry span per
// run and one child span per partition task. Task spans start at the
// Running transition and end at the terminal one, so queue time in the
// pool shows up as the gap between the run span's start and the task
// span's.
type Tracing struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]trace.Span
	tasks map[string]map[int]trace.Span
}

// NewTracing returns a tracing observer using provider (nil selects
// the global provider).
func NewTracing(provider trace.TracerProvider) *Tracing {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer: provider.Tracer("github.com/alecmocatta/amadeus"),
		runs:   make(map[string]trace.Span),
		tasks:  make(map[string]map[int]trace.Span),
	}
}

// RunStart implements amadeus.Observer.
func (t *Tracing) RunStart(run amadeus.RunInfo) {
	_, span := t.tracer.Start(context.Background(), "amadeus.run",
		trace.WithAttributes(
			attribute.String("amadeus.run_id", run.ID),
			attribute.Int("amadeus.partitions", run.Partitions),
		))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[run.ID] = span
	t.tasks[run.ID] = make(map[int]trace.Span)
}

// TaskTransition implements amadeus.Observer.
func (t *Tracing) TaskTransition(run amadeus.RunInfo, partition int, state amadeus.TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	runSpan, ok := t.runs[run.ID]
	if !ok {
		return
	}
	switch state {
	case amadeus.TaskRunning:
		ctx := trace.ContextWithSpan(context.Background(), runSpan)
		_, span := t.tracer.Start(ctx, "amadeus.task",
			trace.WithAttributes(attribute.Int("amadeus.partition", partition)))
		t.tasks[run.ID][partition] = span
	case amadeus.TaskDone, amadeus.TaskFailed, amadeus.TaskCancelled:
		span, ok := t.tasks[run.ID][partition]
		if !ok {
			return
		}
		delete(t.tasks[run.ID], partition)
		span.SetAttributes(attribute.String("amadeus.task_state", state.String()))
		if state == amadeus.TaskFailed {
			span.SetStatus(codes.Error, "task failed")
		}
		span.End()
	}
}

// RunEnd implements amadeus.Observer.
func (t *Tracing) RunEnd(run amadeus.RunInfo, _ time.Duration, err error) {
	t.mu.Lock()
	span, ok := t.runs[run.ID]
	if ok {
		delete(t.runs, run.ID)
		// End any task spans orphaned by a short-circuit return.
		for _, ts := range t.tasks[run.ID] {
			ts.End()
		}
		delete(t.tasks, run.ID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
