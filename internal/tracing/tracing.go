// Package tracing wires OpenTelemetry export for the dispatch and webhook
// paths.
package tracing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls tracing initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	Enabled        bool
	UseStdout      bool
}

// Manager owns the tracer provider lifecycle.
type Manager struct {
	config   Config
	logger   *logrus.Logger
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewManager creates a tracing manager. Tracing stays a no-op until
// Initialize succeeds.
func NewManager(cfg Config, logger *logrus.Logger) *Manager {
	return &Manager{
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("smartflow-gateway"),
	}
}

// Initialize sets up the exporter and registers the global provider.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Debug("Tracing disabled")
		return nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	if m.config.UseStdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		opts := []otlptracehttp.Option{}
		if m.config.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(m.config.OTLPEndpoint))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(m.config.ServiceName),
		semconv.ServiceVersion(m.config.ServiceVersion),
		semconv.DeploymentEnvironment(m.config.Environment),
	))
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	sampleRate := m.config.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	otel.SetTracerProvider(m.provider)
	m.tracer = m.provider.Tracer("smartflow-gateway")

	m.logger.WithFields(logrus.Fields{
		"service":  m.config.ServiceName,
		"exporter": map[bool]string{true: "stdout", false: "otlp-http"}[m.config.UseStdout],
	}).Info("Tracing initialized")
	return nil
}

// Shutdown flushes and stops the provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// StartSpan starts a span on this service's tracer.
func (m *Manager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
