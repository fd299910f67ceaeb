package tts

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nadzzz/dialect-tts/internal/message"
)

// Gateway owns the process-wide model. It is safe for concurrent use: at
// most maxConcurrency inferences run at once, each on its own goroutine.
type Gateway struct {
	model Model
	sem   *semaphore.Weighted
}

// NewGateway wraps a loaded model. maxConcurrency below 1 is treated as 1,
// which serializes every call into the model.
func NewGateway(model Model, maxConcurrency int) *Gateway {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Gateway{
		model: model,
		sem:   semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// SampleRate returns the model's output sample rate.
func (g *Gateway) SampleRate() int { return g.model.SampleRate() }

type inferenceResult struct {
	segments []Segment
	err      error
}

// Synthesize runs one inference and drains every segment it produces.
// Any model failure, including one after some segments were produced, is
// returned as a message.KindInference error and no segments are returned.
//
// The inference runs on a separate goroutine which holds the gate until the
// model finishes. If ctx ends first, Synthesize returns ctx's error and the
// inference completes in the background.
func (g *Gateway) Synthesize(ctx context.Context, req Request) ([]Segment, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, message.Errorf(message.KindInternal, "waiting for model: %w", err)
	}

	done := make(chan inferenceResult, 1)
	go func() {
		defer g.sem.Release(1)
		metrics.InFlight.Inc()
		defer metrics.InFlight.Dec()

		start := time.Now()
		segments, err := g.drain(ctx, req)
		metrics.InferenceSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.InferenceErrors.Inc()
		} else {
			metrics.Segments.Add(float64(len(segments)))
		}
		done <- inferenceResult{segments: segments, err: err}
	}()

	select {
	case res := <-done:
		return res.segments, res.err
	case <-ctx.Done():
		return nil, message.Errorf(message.KindInternal, "waiting for inference: %w", ctx.Err())
	}
}

func (g *Gateway) drain(ctx context.Context, req Request) (segments []Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("model panicked", "panic", r, "stack", string(debug.Stack()))
			segments, err = nil, message.Errorf(message.KindInference, "model panicked: %v", r)
		}
	}()

	rate := g.model.SampleRate()
	for seg, err := range g.model.InferenceInstruct(ctx, req) {
		if err != nil {
			return nil, message.Wrap(message.KindInference, err)
		}
		if seg.SampleRate == 0 {
			seg.SampleRate = rate
		}
		if seg.Channels == 0 {
			seg.Channels = 1
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Close releases the model.
func (g *Gateway) Close() error {
	if err := g.model.Close(); err != nil {
		return fmt.Errorf("closing model: %w", err)
	}
	return nil
}
