package tts

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	InferenceSeconds prometheus.Histogram
	InferenceErrors  prometheus.Counter
	Segments         prometheus.Counter
	InFlight         prometheus.Gauge
}

var metrics = &Metrics{
	InferenceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "inference",
		Name:      "duration_seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}),
	InferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "inference",
		Name:      "errors_total",
	}),
	Segments: prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "inference",
		Name:      "segments_total",
	}),
	InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "inference",
		Name:      "in_flight",
	}),
}

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(metrics.InferenceSeconds)
	reg.MustRegister(metrics.InferenceErrors)
	reg.MustRegister(metrics.Segments)
	reg.MustRegister(metrics.InFlight)
}
