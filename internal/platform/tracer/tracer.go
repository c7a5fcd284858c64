// Package tracer puts every backend request, and the analytics fan-out
// that issues two of them, under a span. Breaker transitions and collections
// read as empty show up as span events.
//
// Implementations:
//   - NoopTracer: default when none is configured
//   - OTelTracer: OpenTelemetry adapter, used by the server
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanBackendCall,
//	    tracer.String(tracer.AttrEndpoint, "content.list"),
//	)
//	defer span.End(err)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

const (
	SpanBackendCall    = "backend.call"
	SpanAnalyticsFetch = "analytics.fetch"
)

const (
	EventBreakerOpened       = "backend.breaker.opened"
	EventBreakerClosed       = "backend.breaker.closed"
	EventMalformedCollection = "analytics.collection.malformed"
)

const (
	AttrEndpoint   = "backend.endpoint"
	AttrMethod     = "http.method"
	AttrStatusCode = "http.status_code"
	AttrAuthorized = "backend.authorized"
	AttrOutcome    = "backend.outcome"
	AttrBreaker    = "backend.breaker"
	AttrCollection = "analytics.collection"
	AttrUsers      = "analytics.users"
	AttrContent    = "analytics.content"
)
