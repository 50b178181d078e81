package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "salon.appointments.changed.v1", Key: []byte("appt-1")})
	if meta.EventID != "appt-1" || meta.EventType != "salon.appointments.changed.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	meta = ExtractEventMeta(kafka.Message{Headers: []kafka.Header{
		{Key: "event_id", Value: []byte("evt-1")},
		{Key: "event_type", Value: []byte("salon.appointment.booked.v1")},
	}})
	if meta.EventID != "evt-1" || meta.EventType != "salon.appointment.booked.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestEventMetaHeadersRoundTrip(t *testing.T) {
	meta := EventMeta{
		EventID:       "evt-9",
		EventType:     "salon.appointment.cancelled.v1",
		AggregateType: "appointment",
		AggregateID:   "appt-9",
	}
	headers := meta.Headers()
	if len(headers) != 4 {
		t.Fatalf("expected 4 headers, got %v", headers)
	}
	if got := ExtractEventMeta(kafka.Message{Topic: "other", Key: []byte("k"), Headers: headers}); got != meta {
		t.Fatalf("unexpected meta: %+v", got)
	}
	if got := (EventMeta{EventID: "evt-1"}).Headers(); len(got) != 1 {
		t.Fatalf("empty fields should be skipped, got %v", got)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(" , ")(context.Background()); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092,kafka-1:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("evt-1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %v", headers)
	}
	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if extracted.TraceID() != traceID {
		t.Fatalf("trace id lost: %s", extracted.TraceID())
	}
}
