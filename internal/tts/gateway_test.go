package tts

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/dialect-tts/internal/audio"
	"github.com/nadzzz/dialect-tts/internal/message"
)

// funcModel adapts a plain function to Model.
type funcModel struct {
	rate int
	fn   func(ctx context.Context, req Request, yield func(Segment, error) bool)
}

func (m *funcModel) SampleRate() int { return m.rate }

func (m *funcModel) InferenceInstruct(ctx context.Context, req Request) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) { m.fn(ctx, req, yield) }
}

func (m *funcModel) Close() error { return nil }

func TestGatewayDrainsInOrder(t *testing.T) {
	model := &funcModel{rate: 22050, fn: func(_ context.Context, _ Request, yield func(Segment, error) bool) {
		for i := 1; i <= 3; i++ {
			if !yield(Segment{Samples: make([]float32, i)}, nil) {
				return
			}
		}
	}}

	segments, err := NewGateway(model, 1).Synthesize(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	require.Len(t, segments, 3)
	for i, seg := range segments {
		assert.Len(t, seg.Samples, i+1)
		assert.Equal(t, 22050, seg.SampleRate, "missing rate is filled from the model")
		assert.Equal(t, 1, seg.Channels)
	}
}

func TestGatewayDiscardsPartialOutputOnError(t *testing.T) {
	model := &funcModel{rate: 22050, fn: func(_ context.Context, _ Request, yield func(Segment, error) bool) {
		if !yield(audio.Silence(time.Second, 22050), nil) {
			return
		}
		yield(Segment{}, errors.New("CUDA out of memory"))
	}}

	segments, err := NewGateway(model, 1).Synthesize(context.Background(), Request{Text: "x"})
	require.Error(t, err)
	assert.Nil(t, segments)
	assert.Equal(t, message.KindInference, message.KindOf(err))
	assert.Equal(t, "CUDA out of memory", err.Error())
}

func TestGatewayRecoversModelPanic(t *testing.T) {
	model := &funcModel{rate: 22050, fn: func(context.Context, Request, func(Segment, error) bool) {
		panic("tensor shape mismatch")
	}}

	_, err := NewGateway(model, 1).Synthesize(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, message.KindInference, message.KindOf(err))
	assert.Contains(t, err.Error(), "tensor shape mismatch")
}

func TestGatewaySerializesCalls(t *testing.T) {
	var current, peak atomic.Int32
	model := &funcModel{rate: 16000, fn: func(_ context.Context, _ Request, yield func(Segment, error) bool) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		yield(Segment{}, nil)
	}}

	gw := NewGateway(model, 1)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Synthesize(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestGatewayCallerCancellationKeepsGateUntilModelFinishes(t *testing.T) {
	release := make(chan struct{})
	model := &funcModel{rate: 16000, fn: func(_ context.Context, _ Request, yield func(Segment, error) bool) {
		<-release
		yield(Segment{}, nil)
	}}
	gw := NewGateway(model, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := gw.Synthesize(ctx, Request{})
		errc <- err
	}()

	// Let the first call take the gate, then abandon it.
	require.Eventually(t, func() bool {
		if gw.sem.TryAcquire(1) {
			gw.sem.Release(1)
			return false
		}
		return true
	}, time.Second, time.Millisecond)
	cancel()
	err := <-errc
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned inference still holds the gate.
	assert.False(t, gw.sem.TryAcquire(1))
	close(release)
	require.Eventually(t, func() bool {
		if gw.sem.TryAcquire(1) {
			gw.sem.Release(1)
			return true
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestMockModelIsDeterministic(t *testing.T) {
	gw := NewGateway(NewMockModel(22050), 1)
	req := Request{Text: "你好。今天天气很好！", Speed: 1}

	first, err := gw.Synthesize(context.Background(), req)
	require.NoError(t, err)
	second, err := gw.Synthesize(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 200*time.Millisecond, first[0].Duration())
	assert.Equal(t, 600*time.Millisecond, first[1].Duration())

	fast, err := gw.Synthesize(context.Background(), Request{Text: "你好", Speed: 2})
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, fast[0].Duration())
}
