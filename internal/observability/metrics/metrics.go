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

// Metrics exposes application-level instruments.
type Metrics struct {
	settingWrites    metric.Int64Counter
	settingConflicts metric.Int64Counter
	priceCalcs       metric.Int64Counter
	priceCalcErrors  metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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
		name = "tabung"
	}
	meter := provider.Meter(name)

	settingWrites, err := meter.Int64Counter("tabung_setting_writes_total")
	if err != nil {
		return nil, err
	}
	settingConflicts, err := meter.Int64Counter("tabung_setting_write_conflicts_total")
	if err != nil {
		return nil, err
	}
	priceCalcs, err := meter.Int64Counter("tabung_price_calculations_total")
	if err != nil {
		return nil, err
	}
	priceCalcErrors, err := meter.Int64Counter("tabung_price_calculation_errors_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("tabung_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		settingWrites:    settingWrites,
		settingConflicts: settingConflicts,
		priceCalcs:       priceCalcs,
		priceCalcErrors:  priceCalcErrors,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

func (m *Metrics) RecordSettingWrite(ctx context.Context, action string) {
	if m == nil || m.settingWrites == nil {
		return
	}
	m.settingWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *Metrics) RecordSettingConflict(ctx context.Context, key string) {
	if m == nil || m.settingConflicts == nil {
		return
	}
	m.settingConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("setting_key", key)))
}

func (m *Metrics) RecordPriceCalculation(ctx context.Context, operationType string) {
	if m == nil || m.priceCalcs == nil {
		return
	}
	m.priceCalcs.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
}

func (m *Metrics) RecordPriceCalculationError(ctx context.Context, operationType, reason string) {
	if m == nil || m.priceCalcErrors == nil {
		return
	}
	m.priceCalcErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil || m.rateLimitDenied == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
