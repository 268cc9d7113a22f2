// Package telemetry wires OpenTelemetry tracing and metrics and builds the
// service logger.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Providers holds the SDK providers installed as the OpenTelemetry globals.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	reader         *sdkmetric.ManualReader
}

// Option configures Setup.
type Option func(*setupConfig)

type setupConfig struct {
	logExporters []sdklog.Exporter
}

// WithLogExporter adds an exporter for records logged through the
// OpenTelemetry log bridge, next to the OTLP one.
func WithLogExporter(e sdklog.Exporter) Option {
	return func(c *setupConfig) { c.logExporters = append(c.logExporters, e) }
}

// Setup creates the tracer, meter and logger providers and installs them
// globally. Spans and log records are exported over OTLP/HTTP when
// otlpEndpoint is set; otherwise spans are still created so logs carry trace
// IDs. Metrics are read on demand through Counters.
func Setup(ctx context.Context, serviceName, otlpEndpoint string, opts ...Option) (*Providers, error) {
	var cfg setupConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if otlpEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(otlpEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	logExporters := cfg.logExporters
	if otlpEndpoint != "" {
		exporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(otlpEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}
		logExporters = append(logExporters, exporter)
	}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, e := range logExporters {
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(e)))
	}
	loggerProvider := sdklog.NewLoggerProvider(logOpts...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	global.SetLoggerProvider(loggerProvider)

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		LoggerProvider: loggerProvider,
		reader:         reader,
	}, nil
}

// Counters returns the current value of every int64 counter, summed over
// attribute sets and keyed by instrument name.
func (p *Providers) Counters(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out, nil
}

// Shutdown flushes and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
		p.LoggerProvider.Shutdown(ctx),
	)
}
