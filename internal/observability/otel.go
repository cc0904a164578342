package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// OtelConfig is filled by envconfig under the OTEL prefix. Headers uses the
// envconfig map form: "api-key:abc,team:data".
type OtelConfig struct {
	Enabled     bool              `envconfig:"ENABLED" default:"false"`
	ServiceName string            `envconfig:"SERVICE_NAME" default:"dataimport"`
	Environment string            `envconfig:"ENVIRONMENT" default:"development"`
	Version     string            `envconfig:"SERVICE_VERSION"`
	Endpoint    string            `envconfig:"EXPORTER_OTLP_ENDPOINT"`
	Headers     map[string]string `envconfig:"EXPORTER_OTLP_HEADERS"`
	Insecure    bool              `envconfig:"EXPORTER_OTLP_INSECURE" default:"false"`
	SampleRatio float64           `envconfig:"SAMPLER_RATIO" default:"0.1"`
}

// InitOTel installs the global tracer provider. With tracing disabled it
// installs nothing and the returned shutdown is a no-op.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dataimport"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		log.Warn("OTel resource incomplete", "error", err)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
	}
	if exp, err := exporter(ctx, cfg); err != nil {
		log.Warn("OTel exporter unavailable, spans are dropped", "error", err)
	} else {
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info("OTel tracing enabled", "service", cfg.ServiceName, "endpoint", cfg.Endpoint, "ratio", cfg.SampleRatio)
	return tp.Shutdown
}

// exporter ships to OTLP/HTTP when an endpoint is set and to stdout otherwise.
func exporter(ctx context.Context, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

func clampRatio(f float64) float64 {
	return min(max(f, 0), 1)
}
