// Package telemetry wires OpenTelemetry tracing and metrics into the
// gateway, and implements core.MetricsRegistry so that core's
// ProductionLogger (and any other ambient component) can emit metrics
// without a circular import back into this package (spec's ambient
// stack; grounded on the teacher's pkg/telemetry/otel.go auto-configured
// OTEL setup).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// meterExportInterval mirrors the teacher's 30s periodic reader interval
// (telemetry/otel.go's NewOTelProvider).
const meterExportInterval = 30 * time.Second

// Provider holds the process-wide tracing/metrics handles, set as the
// global OTEL providers so that any package can call
// otel.Tracer(...)/otel.Meter(...) without threading a reference
// through every call site (spec §9's "treat as explicit long-lived
// values owned by the entry point" applies to the Provider value itself;
// the OTEL globals it sets are the one sanctioned exception, matching
// how the OTEL SDK itself is meant to be used).
type Provider struct {
	TraceProvider *sdktrace.TracerProvider
	MeterProvider *sdkmetric.MeterProvider
	Tracer        trace.Tracer
	Meter         metric.Meter
}

// Setup configures tracing and metrics for serviceName. If endpoint is
// empty, spans and metrics are exported to stdout (development mode);
// otherwise OTLP/gRPC exporters are used, mirroring the teacher's
// auto-detection of OTEL_EXPORTER_OTLP_ENDPOINT.
func Setup(ctx context.Context, serviceName, endpoint string) (*Provider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("gateway.namespace", os.Getenv("GATEWAY_NAMESPACE")),
	))
	if err != nil {
		return nil, fmt.Errorf("building OTEL resource: %w", err)
	}

	tp, err := setupTraceProvider(ctx, res, endpoint)
	if err != nil {
		return nil, err
	}

	mp, err := setupMeterProvider(ctx, res, endpoint)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Provider{
		TraceProvider: tp,
		MeterProvider: mp,
		Tracer:        tp.Tracer("github.com/aigateway/gateway"),
		Meter:         mp.Meter("github.com/aigateway/gateway"),
	}, nil
}

func setupTraceProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdktrace.TracerProvider, error) {
	if endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		), nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// setupMeterProvider mirrors setupTraceProvider's endpoint-empty-vs-set
// branching, but for metrics: a stdout exporter in development, an
// OTLP/gRPC exporter otherwise, both wrapped in a periodic reader the
// same way the teacher's telemetry/otel.go wires
// sdkmetric.NewPeriodicReader around its metric exporter.
func setupMeterProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdkmetric.MeterProvider, error) {
	if endpoint == "" {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(meterExportInterval))),
			sdkmetric.WithResource(res),
		), nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(meterExportInterval))),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown flushes and closes the trace and meter providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TraceProvider != nil {
		if err := p.TraceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down trace provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
