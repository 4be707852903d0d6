package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/revlens/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Options configures the tracer provider.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Protocol       string
	SamplingRatio  float64
}

// NewTracerProvider configures the OTLP exporter and tracer provider.
// An empty endpoint yields a provider without an exporter.
func NewTracerProvider(ctx context.Context, opts Options) (*trace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", opts.ServiceName),
			attribute.String("service.version", opts.ServiceVersion),
			attribute.String("deployment.environment", opts.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	providerOpts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(Sampler(opts.SamplingRatio)),
		trace.WithSpanProcessor(&correlationSpanProcessor{}),
	}

	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		exporter, err := newExporter(ctx, opts.Protocol, endpoint)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, trace.WithBatcher(exporter))
	}

	return trace.NewTracerProvider(providerOpts...), nil
}

// Sampler returns a parent-based ratio sampler. Ratios outside (0,1) clamp to never or always.
func Sampler(ratio float64) trace.Sampler {
	switch {
	case ratio <= 0:
		return trace.ParentBased(trace.NeverSample())
	case ratio >= 1:
		return trace.ParentBased(trace.AlwaysSample())
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	}
}

func newExporter(ctx context.Context, protocol, endpoint string) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	case "http", "http/protobuf":
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

type correlationSpanProcessor struct{}

func (p *correlationSpanProcessor) OnStart(ctx context.Context, s trace.ReadWriteSpan) {
	_, cid := correlation.EnsureCorrelationID(ctx)
	s.SetAttributes(attribute.String("correlation_id", cid))
}

func (p *correlationSpanProcessor) OnEnd(trace.ReadOnlySpan) {}

func (p *correlationSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *correlationSpanProcessor) ForceFlush(context.Context) error { return nil }
