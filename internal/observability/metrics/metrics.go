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

// Metrics exposes application-level instruments for the merge pipeline.
type Metrics struct {
	mergeRuns     metric.Int64Counter
	mergeRows     metric.Int64Counter
	mailSends     metric.Int64Counter
	subscribers   metric.Int64UpDownCounter
	rowDurationMs metric.Int64Histogram
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lettermill"
	}
	meter := provider.Meter(name)

	mergeRuns, err := meter.Int64Counter("lettermill_merge_runs_total")
	if err != nil {
		return nil, err
	}
	mergeRows, err := meter.Int64Counter("lettermill_merge_rows_total")
	if err != nil {
		return nil, err
	}
	mailSends, err := meter.Int64Counter("lettermill_mail_sends_total")
	if err != nil {
		return nil, err
	}
	subscribers, err := meter.Int64UpDownCounter("lettermill_progress_subscribers")
	if err != nil {
		return nil, err
	}
	rowDurationMs, err := meter.Int64Histogram("lettermill_merge_row_duration_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		mergeRuns:     mergeRuns,
		mergeRows:     mergeRows,
		mailSends:     mailSends,
		subscribers:   subscribers,
		rowDurationMs: rowDurationMs,
	}, nil
}

// RecordMergeRun counts one started merge run of the given kind (batch, test).
func (m *Metrics) RecordMergeRun(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.mergeRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", strings.TrimSpace(kind))))
}

// RecordMergeRow counts one processed row with its outcome (sent, failed, skipped).
func (m *Metrics) RecordMergeRow(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.mergeRows.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", strings.TrimSpace(outcome))))
}

// RecordMailSend counts one provider send attempt.
func (m *Metrics) RecordMailSend(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	m.mailSends.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.Bool("ok", ok),
	))
}

// RecordRowDuration records how long one row took end to end.
func (m *Metrics) RecordRowDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.rowDurationMs.Record(ctx, d.Milliseconds())
}

// SubscriberConnected tracks one progress subscriber attaching.
func (m *Metrics) SubscriberConnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, 1)
}

// SubscriberDisconnected tracks one progress subscriber detaching.
func (m *Metrics) SubscriberDisconnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, -1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
