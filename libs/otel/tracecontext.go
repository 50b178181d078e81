package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context in its stored form, so a row written
// now can continue the trace when it is shipped later.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

func (tc TraceContext) Empty() bool { return tc.Traceparent == "" && tc.Tracestate == "" }

// Attach returns ctx carrying tc as its remote parent. An empty tc leaves ctx
// untouched.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.Empty() {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	if tc.Traceparent != "" {
		carrier["traceparent"] = tc.Traceparent
	}
	if tc.Tracestate != "" {
		carrier["tracestate"] = tc.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
