// Package telemetry sets up OpenTelemetry metrics for reportbot.
//
// Metrics are off by default and cost nothing in that state. With
// telemetry.enabled set, a meter provider is installed; telemetry.stdout adds a
// periodic stdout exporter that is handy during development.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const instrumentationScope = "github.com/tgienger/reportbot"

// Config controls metric export
type Config struct {
	Enabled  bool
	Stdout   bool
	Interval time.Duration
}

// Shutdown flushes pending metrics and stops the provider
type Shutdown func(context.Context) error

// Init installs the global meter provider. The returned Shutdown is never nil.
func Init(ctx context.Context, cfg Config, serviceName, version string) (Shutdown, error) {
	if !cfg.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: resource")
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, errors.Wrap(err, "telemetry: stdout exporter")
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval)),
		))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}
