// Package telemetry wires OpenTelemetry tracing and Prometheus metrics for the access layer.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// TracingConfig selects the OTLP collector and sampling for request and dispatch spans
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	SamplingRatio  float64
	ServiceName    string
	ServiceVersion string
	Insecure       bool
}

// Tracing owns the SDK provider installed as the global tracer provider.
// When tracing is disabled the global no-op provider stays in place and
// StartSpan callers pay nothing.
type Tracing struct {
	sdk *sdktrace.TracerProvider
	log *zap.Logger
}

// StartTracing installs an OTLP gRPC tracer provider and W3C propagators.
// The exporter dials lazily, so a missing collector does not fail startup.
func StartTracing(ctx context.Context, cfg TracingConfig, log *zap.Logger) (*Tracing, error) {
	t := &Tracing{log: log}
	if !cfg.Enabled {
		log.Info("Tracing disabled")
		return t, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: service resource: %w", err)
	}

	t.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(t.sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("Tracing enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.String("service", cfg.ServiceName))
	return t, nil
}

// Sampler honors the caller's sampling decision and samples new root traces
// at ratio. Ratios at or beyond the bounds sample all or nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

// Enabled reports whether spans are exported
func (t *Tracing) Enabled() bool {
	return t.sdk != nil
}

// Shutdown flushes pending spans and stops the exporter; ctx bounds the flush
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.sdk == nil {
		return nil
	}
	if err := t.sdk.Shutdown(ctx); err != nil {
		t.log.Error("Tracing shutdown failed", zap.Error(err))
		return fmt.Errorf("telemetry: shutdown tracing: %w", err)
	}
	return nil
}
