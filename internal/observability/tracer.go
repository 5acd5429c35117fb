package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry trace.Tracer with the start/end-with-error
// shape internal/retrieve and internal/autofix call around their pipeline
// stages. Grounded on manifold's internal/agent.OTELTracer.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer constructs a Tracer using the global TracerProvider under the
// given instrumentation name.
func NewTracer(instrumentationName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

// Start begins a span named name with attrs attached, returning the
// span-bearing context and an end function callers defer, passing the
// stage's error (if any) so it's recorded on the span before it closes.
func (t *Tracer) Start(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	if t == nil || t.tracer == nil {
		return ctx, func(error) {}
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, fmt.Sprint(v)))
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(kvs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
