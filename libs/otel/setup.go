package otelx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/Trio-Ads/saloneo/libs/config"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	Environment  string
	OTLPEndpoint string // host:port of the collector's gRPC receiver
	SampleRatio  float64
}

// ConfigFromEnv reads OTEL_ENABLED, OTEL_EXPORTER_OTLP_ENDPOINT,
// OTEL_SAMPLING_RATIO, SERVICE_VERSION and DEPLOY_ENV.
func ConfigFromEnv(serviceName string) (Config, error) {
	cfg := Config{
		Enabled:      config.Bool("OTEL_ENABLED", false),
		ServiceName:  serviceName,
		Version:      config.String("SERVICE_VERSION", "dev"),
		Environment:  config.String("DEPLOY_ENV", "local"),
		OTLPEndpoint: strings.TrimPrefix(config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"), "http://"),
		SampleRatio:  1,
	}
	if raw := config.String("OTEL_SAMPLING_RATIO", ""); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return Config{}, fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1 (got %q)", raw)
		}
		cfg.SampleRatio = f
	}
	return cfg, nil
}

// Setup installs the W3C propagators and, when enabled, a batching OTLP
// tracer provider. The returned func flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		// Schema URL mismatch with the SDK default; keep our attributes only.
		res = resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
