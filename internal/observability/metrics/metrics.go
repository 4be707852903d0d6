package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the snapshot pipeline instruments.
type Metrics struct {
	captures        metric.Int64Counter
	captureDuration metric.Float64Histogram
	sourceRecords   metric.Int64Counter
	rejectedRecords metric.Int64Counter
	dataIssues      metric.Int64Counter
	webhookEvents   metric.Int64Counter
	historyCache    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "revlens"
	}
	meter := provider.Meter(name)

	var m Metrics
	var err error
	if m.captures, err = meter.Int64Counter("revlens_snapshot_captures_total"); err != nil {
		return nil, err
	}
	if m.captureDuration, err = meter.Float64Histogram("revlens_snapshot_capture_duration_seconds"); err != nil {
		return nil, err
	}
	if m.sourceRecords, err = meter.Int64Counter("revlens_source_records_total"); err != nil {
		return nil, err
	}
	if m.rejectedRecords, err = meter.Int64Counter("revlens_source_records_rejected_total"); err != nil {
		return nil, err
	}
	if m.dataIssues, err = meter.Int64Counter("revlens_data_quality_issues_total"); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = meter.Int64Counter("revlens_webhook_events_total"); err != nil {
		return nil, err
	}
	if m.historyCache, err = meter.Int64Counter("revlens_history_cache_lookups_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordCapture counts a finished capture and its latency by trigger and outcome.
func (m *Metrics) RecordCapture(ctx context.Context, trigger, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("trigger", strings.TrimSpace(trigger)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.captures.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.captureDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSourceRecords counts accepted and rejected upstream records for a resource.
func (m *Metrics) RecordSourceRecords(ctx context.Context, resource string, accepted, rejected int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("resource", strings.TrimSpace(resource)))...)
	if accepted > 0 {
		m.sourceRecords.Add(ctx, int64(accepted), attrs)
	}
	if rejected > 0 {
		m.rejectedRecords.Add(ctx, int64(rejected), attrs)
	}
}

// RecordDataIssue counts data quality problems found during computation.
func (m *Metrics) RecordDataIssue(ctx context.Context, reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.dataIssues.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordHistoryCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.historyCache.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Tenant identifiers are never accepted as labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"trigger":    {},
	"outcome":    {},
	"resource":   {},
	"reason":     {},
	"event_type": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
