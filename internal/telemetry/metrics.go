// Package telemetry exposes the bot's operational metrics through OpenTelemetry
// with a Prometheus exporter.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "cloudtune-ops/monitoring-bot"

// Metrics records watchdog, alert and deploy activity.
// Safe for concurrent use.
type Metrics struct {
	cycles         metric.Int64Counter
	alerts         metric.Int64Counter
	failedSends    metric.Int64Counter
	deploys        metric.Int64Counter
	deployDuration metric.Float64Histogram
	meter          metric.Meter
}

// New creates Metrics backed by the given meter provider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	cycles, err := meter.Int64Counter(
		"watchdog.cycles",
		metric.WithDescription("Completed watchdog cycles by observed backend state"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	alerts, err := meter.Int64Counter(
		"watchdog.alerts",
		metric.WithDescription("Alerts broadcast by kind"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	failedSends, err := meter.Int64Counter(
		"alerts.delivery_failures",
		metric.WithDescription("Alert deliveries that failed for a single recipient"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	deploys, err := meter.Int64Counter(
		"deploy.runs",
		metric.WithDescription("Deploy script runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	deployDuration, err := meter.Float64Histogram(
		"deploy.duration_seconds",
		metric.WithDescription("Deploy script duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cycles:         cycles,
		alerts:         alerts,
		failedSends:    failedSends,
		deploys:        deploys,
		deployDuration: deployDuration,
		meter:          meter,
	}, nil
}

// NewNoop returns Metrics that record nothing.
func NewNoop() *Metrics {
	m, _ := New(noop.NewMeterProvider())
	return m
}

// NewPrometheus wires an OpenTelemetry meter provider to a dedicated Prometheus
// registry and returns the provider together with its scrape handler.
func NewPrometheus() (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func (m *Metrics) CycleCompleted(ctx context.Context, state string) {
	m.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("backend.state", state)))
}

func (m *Metrics) AlertSent(ctx context.Context, kind string) {
	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("alert.kind", kind)))
}

func (m *Metrics) DeliveryFailed(ctx context.Context, channel string) {
	m.failedSends.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (m *Metrics) DeployFinished(ctx context.Context, status string, d time.Duration) {
	opt := metric.WithAttributes(attribute.String("deploy.status", status))
	m.deploys.Add(ctx, 1, opt)
	m.deployDuration.Record(ctx, d.Seconds(), opt)
}

// ObserveBackendUp registers a gauge reporting 1 while the backend is up,
// 0 while down and -1 before the first check.
func (m *Metrics) ObserveBackendUp(state func() int64) error {
	_, err := m.meter.Int64ObservableGauge(
		"backend.up",
		metric.WithDescription("Last observed backend health: 1 up, 0 down, -1 unknown"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(state())
			return nil
		}),
	)
	return err
}
