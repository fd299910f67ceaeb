package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// failingMeter refuses to create any instrument.
type failingMeter struct{ noop.Meter }

func (failingMeter) Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return nil, errors.New("histogram unavailable")
}

func (failingMeter) Float64Counter(string, ...metric.Float64CounterOption) (metric.Float64Counter, error) {
	return nil, errors.New("counter unavailable")
}

func TestNewInstrumentsReportsErrors(t *testing.T) {
	var (
		mu      sync.Mutex
		handled []error
	)
	prev := otel.GetErrorHandler()
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		mu.Lock()
		handled = append(handled, err)
		mu.Unlock()
	}))
	t.Cleanup(func() { otel.SetErrorHandler(prev) })

	prompt, output := newInstruments(failingMeter{})
	require.NotNil(t, prompt)
	require.NotNil(t, output)
	assert.NotPanics(t, func() {
		prompt.Record(context.Background(), 1)
		output.Add(context.Background(), 1)
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 2)
	assert.ErrorContains(t, handled[0], "synthesis.prompt.duration: histogram unavailable")
	assert.ErrorContains(t, handled[1], "synthesis.output.duration: counter unavailable")
}

func TestPackageInstrumentsExist(t *testing.T) {
	assert.NotNil(t, promptSeconds)
	assert.NotNil(t, outputSeconds)
}
