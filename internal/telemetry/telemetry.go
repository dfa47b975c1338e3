// Package telemetry provides OpenTelemetry metrics for tbd.
//
// Telemetry is disabled by default (zero runtime overhead when off).
//
// # Configuration
//
//	TBD_OTEL_ENABLED=true   enable telemetry (default: off)
//	TBD_OTEL_STDOUT=true    write metrics to stdout (dev mode)
//	OTEL_SERVICE_NAME=tbd   override service name
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/tbd-tracker/tbd"

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (TBD_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("TBD_OTEL_ENABLED") == "true"
}

// Init configures the OTel meter provider. When TBD_OTEL_ENABLED is not
// "true" this installs a no-op provider and returns immediately (zero
// overhead path).
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	mp, err := buildMetricProvider(res)
	if err != nil {
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

func buildMetricProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	// Default to stdout when enabled but no exporter is configured; tbd is a
	// short-lived CLI, so a collectorless dev exporter covers the common case.
	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}
	opts = append(opts, sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
	))

	return sdkmetric.NewMeterProvider(opts...), nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes all metrics and shuts down OTel providers. Should be
// deferred in PersistentPostRun with a short-lived context.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}
	shutdownFns = nil
}
