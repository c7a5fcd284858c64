package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "inkwell"

// OTelTracer sends spans to the globally registered OpenTelemetry provider,
// or to an injected tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{tracer: otel.Tracer(instrumentationName)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens a client span; every span this server opens waits on the backend.
func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(keyValues(attrs)...),
	)
	return ctx, otelSpan{span}
}

type otelSpan struct {
	trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.Span.RecordError(err)
		s.Span.SetStatus(codes.Error, err.Error())
	}
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.Span.SetAttributes(keyValues(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.Span.AddEvent(name, trace.WithAttributes(keyValues(attrs)...))
}

// keyValue converts a to its OpenTelemetry form. Values of types the helpers
// in this package never produce are reported as not ok.
func (a Attribute) keyValue() (attribute.KeyValue, bool) {
	key := attribute.Key(a.Key)
	switch v := a.Value.(type) {
	case string:
		return key.String(v), true
	case bool:
		return key.Bool(v), true
	case int64:
		return key.Int64(v), true
	case int:
		return key.Int(v), true
	case float64:
		return key.Float64(v), true
	}
	return attribute.KeyValue{}, false
}

func keyValues(attrs []Attribute) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, a := range attrs {
		if kv, ok := a.keyValue(); ok {
			out = append(out, kv)
		}
	}
	return out
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = otelSpan{}
)
