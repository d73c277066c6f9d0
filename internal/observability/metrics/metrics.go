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

// Metrics exposes invite lifecycle instruments.
type Metrics struct {
	invitesCreated     metric.Int64Counter
	inviteTransitions  metric.Int64Counter
	tokenVerifications metric.Int64Counter
	emailFailures      metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tandem"
	}
	meter := provider.Meter(name)

	invitesCreated, err := meter.Int64Counter("tandem_invites_created_total")
	if err != nil {
		return nil, err
	}
	inviteTransitions, err := meter.Int64Counter("tandem_invite_transitions_total")
	if err != nil {
		return nil, err
	}
	tokenVerifications, err := meter.Int64Counter("tandem_token_verifications_total")
	if err != nil {
		return nil, err
	}
	emailFailures, err := meter.Int64Counter("tandem_email_dispatch_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invitesCreated:     invitesCreated,
		inviteTransitions:  inviteTransitions,
		tokenVerifications: tokenVerifications,
		emailFailures:      emailFailures,
	}, nil
}

// RecordInviteCreated increments created invite counts.
func (m *Metrics) RecordInviteCreated(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.invitesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInviteTransition increments status transition counts.
func (m *Metrics) RecordInviteTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.inviteTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenVerification increments token verification outcomes per token kind.
func (m *Metrics) RecordTokenVerification(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("token_kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.tokenVerifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailFailure increments failed email dispatches.
func (m *Metrics) RecordEmailFailure(ctx context.Context, template string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("template", strings.TrimSpace(template)))
	m.emailFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"role":        {},
	"from_status": {},
	"to_status":   {},
	"token_kind":  {},
	"outcome":     {},
	"template":    {},
	"route":       {},
	"method":      {},
	"status_code": {},
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
