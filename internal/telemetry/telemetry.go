// Package telemetry wires OpenTelemetry into forumwatch. It is off unless
// FORUMWATCH_OTEL_ENABLED=true.
//
//	FORUMWATCH_OTEL_ENABLED=true      install real providers
//	FORUMWATCH_OTEL_STDOUT=true       dump spans and metrics to stderr
//	OTEL_EXPORTER_OTLP_ENDPOINT=...   push metrics over OTLP/HTTP
//
// Dumps go to stderr so that --json output and the TUI own stdout.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/kball/forumwatch"

// Settings selects which exporters Init installs.
type Settings struct {
	Enabled bool
	// Dump receives pretty-printed spans and periodic metric dumps; nil
	// disables both.
	Dump         io.Writer
	OTLPEndpoint string
	// MetricInterval is the export period for both metric readers.
	MetricInterval time.Duration
}

// SettingsFromEnv reads Settings from the FORUMWATCH_OTEL_* and standard
// OTEL_EXPORTER_OTLP_* variables.
func SettingsFromEnv() Settings {
	s := Settings{
		Enabled:        Enabled(),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		MetricInterval: 30 * time.Second,
	}
	if s.OTLPEndpoint == "" {
		s.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if os.Getenv("FORUMWATCH_OTEL_STDOUT") == "true" {
		s.Dump = os.Stderr
	}
	return s
}

var shutdownFns []func(context.Context) error

// Enabled reports whether FORUMWATCH_OTEL_ENABLED=true.
func Enabled() bool {
	return os.Getenv("FORUMWATCH_OTEL_ENABLED") == "true"
}

// Init installs providers according to the environment.
func Init(ctx context.Context, serviceName, version string) error {
	return InitWith(ctx, SettingsFromEnv(), serviceName, version)
}

// InitWith installs providers for s. Disabled settings install no-op
// providers.
func InitWith(ctx context.Context, s Settings, serviceName, version string) error {
	if !s.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if s.Dump != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(s.Dump), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("telemetry: span exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithSyncer(exp))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	interval := s.MetricInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.Dump != nil {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(s.Dump))
		if err != nil {
			return fmt.Errorf("telemetry: metric dump exporter: %w", err)
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}
	if s.OTLPEndpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(s.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}
	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

// Tracer returns a tracer for name, defaulting to the module scope.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, defaulting to the module scope.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics. Errors are joined.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdownFns {
		errs = append(errs, fn(ctx))
	}
	shutdownFns = nil
	return errors.Join(errs...)
}
