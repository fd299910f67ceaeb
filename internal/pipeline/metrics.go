package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Metrics struct {
	Requests       *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
}

var metrics = &Metrics{
	Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "synthesis",
		Name:      "requests_total",
	}, []string{"style", "outcome"}),
	RequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "synthesis",
		Name:      "request_seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"style"}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.Requests)
	reg.MustRegister(metrics.RequestSeconds)
}

// Audio volume is recorded through OpenTelemetry; the global meter provider
// forwards these once telemetry.Setup has run.
var promptSeconds, outputSeconds = newInstruments(otel.Meter("github.com/nadzzz/dialect-tts/internal/pipeline"))

// newInstruments creates the audio volume instruments on m. Creation errors
// go to the OpenTelemetry error handler; a missing instrument is replaced by
// a no-op one.
func newInstruments(m metric.Meter) (metric.Float64Histogram, metric.Float64Counter) {
	prompt, err := m.Float64Histogram("synthesis.prompt.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Length of decoded voice prompts."),
		metric.WithExplicitBucketBoundaries(1, 3, 5, 10, 20, 30, 60))
	if err != nil {
		otel.Handle(fmt.Errorf("creating synthesis.prompt.duration: %w", err))
	}
	if prompt == nil {
		prompt = noop.Float64Histogram{}
	}

	output, err := m.Float64Counter("synthesis.output.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Seconds of audio returned to clients."))
	if err != nil {
		otel.Handle(fmt.Errorf("creating synthesis.output.duration: %w", err))
	}
	if output == nil {
		output = noop.Float64Counter{}
	}
	return prompt, output
}
