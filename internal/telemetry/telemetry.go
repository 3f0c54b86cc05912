// Package telemetry wires OpenTelemetry tracing for the waitlist service.
package telemetry

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup installs a global OTLP trace provider when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. Spans carry the service name, its build version and the
// deployment environment, plus anything in OTEL_RESOURCE_ATTRIBUTES. The
// returned func flushes and stops the provider; without an endpoint it is a
// no-op and spans go to the default noop provider.
func Setup(serviceName, environment string, log logrus.FieldLogger) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		log.WithError(err).Warn("otel exporter unavailable, tracing disabled")
		return func(context.Context) error { return nil }
	}

	res, err := newResource(context.Background(), serviceName, environment)
	if err != nil {
		log.WithError(err).Warn("otel resource incomplete")
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	log.WithFields(logrus.Fields{
		"endpoint":    endpoint,
		"environment": environment,
	}).Info("tracing enabled")

	return provider.Shutdown
}

// newResource always returns a usable resource; a partial one comes back
// together with the detector error.
func newResource(ctx context.Context, serviceName, environment string) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(buildVersion()),
		),
	}
	if environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if res == nil {
		res = resource.Default()
	}
	return res, err
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}
