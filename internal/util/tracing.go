package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer trace.Tracer

// TracerConfig configures the jaeger exporter
type TracerConfig struct {
	Endpoint    string
	Environment string
	// SampleRatio is the fraction of root traces kept; child spans follow
	// their parent's decision
	SampleRatio float64
}

// InitTracer installs a batching jaeger tracer provider as the global one
func InitTracer(cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(ServiceName)

	GetLogger().Info("Tracer initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sample_ratio", ratio))
	return tp, nil
}

// GetTracer returns the service tracer, or the global no-op one before
// InitTracer runs
func GetTracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(ServiceName)
	}
	return tracer
}

// StartSpan starts a span carrying the given attributes
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// FailSpan records err on span and marks it failed. It returns err so it
// can wrap a return statement.
func FailSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
