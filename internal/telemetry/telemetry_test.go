package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/nadzzz/dialect-tts/internal/config"
)

func TestSetupExportsMetricsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "dialect-tts", Exporter: "none"}, "test", reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	meter := otel.Meter("telemetry_test")
	counter, err := meter.Int64Counter("test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	hist, err := meter.Float64Histogram("test.latency", metric.WithUnit("s"))
	require.NoError(t, err)
	hist.Record(context.Background(), 0.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	events, ok := byName["test_events_total"]
	require.True(t, ok, "otel counter not exported with an underscored name")
	require.NotEmpty(t, events.GetMetric())
	assert.Equal(t, 3.0, events.GetMetric()[0].GetCounter().GetValue())

	latency, ok := byName["test_latency_seconds"]
	require.True(t, ok, "otel histogram not exported with an underscored name")
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())

	for name := range byName {
		assert.NotContains(t, name, ".", "metric %q keeps dotted otel naming", name)
	}
}

func TestSetupTracing(t *testing.T) {
	for _, exporter := range []string{"", "none", "stdout"} {
		t.Run(exporter, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "dialect-tts", Exporter: exporter}, "test", nil)
			require.NoError(t, err)

			_, span := otel.Tracer("telemetry_test").Start(context.Background(), "setup-check")
			assert.True(t, span.SpanContext().IsValid())
			span.End()

			require.NoError(t, shutdown(context.Background()))
		})
	}
}
