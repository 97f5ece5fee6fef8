package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta contains metadata about a gateway operation for telemetry purposes.
type OpMeta struct {
	ID          string // Fully qualified operation ID (name@destination or just name)
	Name        string // Operation name (required), e.g. "authz.decide"
	Kind        string // Operation variant such as a transport kind (may be empty)
	Destination string // Logical destination such as an upstream name (optional)
	Policy      string // Governing policy name (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: <name>.<kind> or <name>
func (m OpMeta) SpanName() string {
	if m.Kind != "" {
		return m.Name + "." + m.Kind
	}
	return m.Name
}

// OpID returns the fully qualified operation identifier.
// If ID field is set, returns it. Otherwise constructs from name and destination.
func (m OpMeta) OpID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Destination != "" {
		return m.Name + "@" + m.Destination
	}
	return m.Name
}

// Validate checks that required metadata is present.
func (m OpMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingOpName
	}
	return nil
}

// attrs renders the metadata as span attributes. op.error starts false
// and flips in EndSpan when the operation fails.
func (m OpMeta) attrs() []attribute.KeyValue {
	out := []attribute.KeyValue{
		attribute.String("op.id", m.OpID()),
		attribute.String("op.name", m.Name),
		attribute.Bool("op.error", false),
	}
	for _, opt := range []struct{ key, value string }{
		{"op.kind", m.Kind},
		{"op.destination", m.Destination},
		{"op.policy", m.Policy},
	} {
		if opt.value != "" {
			out = append(out, attribute.String(opt.key, opt.value))
		}
	}
	return out
}

// Tracer wraps OpenTelemetry tracing with operation-aware spans.
// Implementations are safe for concurrent use, and EndSpan never
// panics: a span for a failed operation still ends cleanly.
type Tracer interface {
	// StartSpan starts a new span for a gateway operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type otelTracer struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &otelTracer{tracer: t}
}

func (t *otelTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attrs()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *otelTracer) EndSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("op.error", true))
	span.RecordError(err)
	span.End()
}

// TracerFromObserver creates a Tracer spanning through the Observer's
// OpenTelemetry tracer.
func TracerFromObserver(obs Observer) (Tracer, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return newTracer(obs.Tracer()), nil
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return newNoopTracer()
}

type noopTracer struct {
	tracer trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) { span.End() }
