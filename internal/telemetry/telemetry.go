// Package telemetry configures OpenTelemetry tracing for the studio server.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config is read from LUMINA_OTEL_* environment variables.
type Config struct {
	Endpoint    string  `env:"LUMINA_OTEL_ENDPOINT"`
	Enabled     bool    `env:"LUMINA_OTEL_ENABLED" envDefault:"true"`
	ServiceName string  `env:"LUMINA_OTEL_SERVICE_NAME" envDefault:"lumina"`
	SampleRatio float64 `env:"LUMINA_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether spans will be exported.
func (c Config) Active() bool {
	return c.Enabled && strings.TrimSpace(c.Endpoint) != ""
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse telemetry env: %w", err)
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return Config{}, fmt.Errorf("LUMINA_OTEL_SAMPLE_RATIO must be within [0, 1], got %v", cfg.SampleRatio)
	}
	return cfg, nil
}

// Setup returns the tracer provider to hand to instrumented components and
// a shutdown func that flushes pending spans. Without an endpoint, or with
// tracing disabled, the provider is a no-op and nothing is registered
// globally.
func Setup(ctx context.Context, cfg Config) (trace.TracerProvider, func(context.Context) error, error) {
	nop := func(context.Context) error { return nil }
	if !cfg.Active() {
		return noop.NewTracerProvider(), nop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, nop, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nop, fmt.Errorf("building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, tp.Shutdown, nil
}
