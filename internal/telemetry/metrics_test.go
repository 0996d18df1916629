package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetrics_CountersAndGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(mp)
	require.NoError(t, err)
	require.NoError(t, m.ObserveBackendUp(func() int64 { return 1 }))

	ctx := context.Background()
	m.CycleCompleted(ctx, "up")
	m.CycleCompleted(ctx, "up")
	m.AlertSent(ctx, "backend_down")
	m.DeliveryFailed(ctx, "telegram")
	m.DeployFinished(ctx, "succeeded", 3*time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	cycles := findMetric(rm, "watchdog.cycles")
	require.NotNil(t, cycles)
	sum, ok := cycles.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	up := findMetric(rm, "backend.up")
	require.NotNil(t, up)
	gauge, ok := up.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	assert.NotNil(t, findMetric(rm, "deploy.duration_seconds"))
}

func TestNewPrometheus_ServesMetrics(t *testing.T) {
	mp, handler, err := NewPrometheus()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	require.NoError(t, err)
	m.AlertSent(context.Background(), "monitoring_started")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "watchdog_alerts")
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	require.NotNil(t, m)
	m.CycleCompleted(context.Background(), "down")
	assert.NoError(t, m.ObserveBackendUp(func() int64 { return 0 }))
}
