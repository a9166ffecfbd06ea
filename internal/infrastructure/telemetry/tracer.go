// Package telemetry provides OpenTelemetry tracing for HTTP, services and the database.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// Provider owns the process-wide tracer provider. With tracing disabled
// sdk stays nil and every method falls through to the global no-op.
type Provider struct {
	sdk *sdktrace.TracerProvider
	log *zap.Logger

	mu           sync.RWMutex
	tracers      trace.TracerProvider
	spanProfiles bool
}

// NewTracerProvider exports spans to the OTLP collector and installs the
// provider globally. A disabled config yields a Provider that traces nothing.
func NewTracerProvider(ctx context.Context, cfg Config, log *zap.Logger) (*Provider, error) {
	if !cfg.Enabled {
		log.Info("Tracing disabled")
		return &Provider{log: log}, nil
	}

	exporter, err := otlpExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p, err := install(ctx, cfg, log, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}
	log.Info("Tracing enabled",
		zap.String("service", cfg.ServiceName),
		zap.String("collector", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return p, nil
}

// NewTracerProviderWithProcessor installs a provider that hands spans to
// processor instead of a collector.
func NewTracerProviderWithProcessor(cfg Config, processor sdktrace.SpanProcessor, log *zap.Logger) (*Provider, error) {
	return install(context.Background(), cfg, log, sdktrace.WithSpanProcessor(processor))
}

func otlpExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return exp, nil
}

func install(ctx context.Context, cfg Config, log *zap.Logger, export sdktrace.TracerProviderOption) (*Provider, error) {
	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sdk := sdktrace.NewTracerProvider(export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return &Provider{sdk: sdk, log: log, tracers: sdk}, nil
}

func serviceResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName), semconv.ServiceVersion(version)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}
	return res, nil
}

// samplerFor samples nothing at or below zero. Otherwise it follows the
// parent's decision and samples root spans by ratio.
func samplerFor(ratio float64) sdktrace.Sampler {
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	root := sdktrace.AlwaysSample()
	if ratio < 1 {
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns a named tracer, the global no-op when disabled.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.sdk == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracers.Tracer(name, opts...)
}

func (p *Provider) IsEnabled() bool { return p.sdk != nil }

// EnableSpanProfiles labels CPU samples with the active span ID so the
// profiler can link a slow backup span to its flame graph. No-op when
// tracing is disabled.
func (p *Provider) EnableSpanProfiles() {
	if p.sdk == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spanProfiles {
		return
	}
	p.tracers = otelpyroscope.NewTracerProvider(p.sdk)
	otel.SetTracerProvider(p.tracers)
	p.spanProfiles = true
	p.log.Info("Span profiles enabled")
}

func (p *Provider) SpanProfilesEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spanProfiles
}

// ForceFlush exports buffered spans without stopping the provider.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider; ctx bounds the wait.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	p.log.Info("Tracing stopped")
	return nil
}
