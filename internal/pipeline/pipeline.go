// Package pipeline implements the synthesis request lifecycle.
//
// A request moves through Received → Decoding → Inferring → Encoding →
// Responding. Any stage may fail; the failure carries a message.Kind and no
// partial result is ever returned. The transport decides how kinds map onto
// the wire.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nadzzz/dialect-tts/internal/audio"
	"github.com/nadzzz/dialect-tts/internal/message"
	"github.com/nadzzz/dialect-tts/internal/slg"
	"github.com/nadzzz/dialect-tts/internal/tts"
)

var tracer = otel.Tracer("github.com/nadzzz/dialect-tts/internal/pipeline")

// Synthesizer is the inference side of the pipeline. *tts.Gateway implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) ([]tts.Segment, error)
}

// Codec is the audio side of the pipeline. *audio.Codec implements it.
type Codec interface {
	Decode(b64 string) (audio.Waveform, error)
	Encode(w audio.Waveform) (string, error)
}

// Pipeline handles synthesis requests.
type Pipeline struct {
	synth  Synthesizer
	codec  Codec
	styles map[string]string
}

// New creates a pipeline. styles maps style ids to model instructions.
func New(synth Synthesizer, codec Codec, styles map[string]string) *Pipeline {
	s := make(map[string]string, len(styles))
	for id, instruction := range styles {
		s[id] = instruction
	}
	return &Pipeline{synth: synth, codec: codec, styles: s}
}

// Styles returns the configured style ids.
func (p *Pipeline) Styles() []string {
	ids := make([]string, 0, len(p.styles))
	for id := range p.styles {
		ids = append(ids, id)
	}
	return ids
}

// Handle processes a single request through the full pipeline. It is passed
// as the transport.Handler to the HTTP transport.
//
// Handle is not cancellable: ctx's values (logger, trace) are kept but its
// cancellation is dropped, so a client that disconnects mid-inference does
// not abort the model call.
func (p *Pipeline) Handle(ctx context.Context, req *message.SynthesisRequest) (resp *message.SynthesisResponse, err error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	logger := slg.From(ctx).With("style", req.Style)
	styleLabel := req.Style
	if _, ok := p.styles[styleLabel]; !ok {
		styleLabel = "unknown"
	}

	ctx, span := tracer.Start(ctx, "synthesize", trace.WithAttributes(attribute.String("style", req.Style)))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(message.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("synthesis failed", "error_kind", outcome, "error", err, "duration", time.Since(start))
		} else {
			logger.Info("synthesis complete", "segments", len(resp.Audio), "duration", time.Since(start))
		}
		metrics.Requests.WithLabelValues(styleLabel, outcome).Inc()
		metrics.RequestSeconds.WithLabelValues(styleLabel).Observe(time.Since(start).Seconds())
		span.End()
	}()

	// Received: shape and style.
	if err := req.Validate(); err != nil {
		return nil, err
	}
	instruction, ok := p.styles[req.Style]
	if !ok {
		return nil, message.Errorf(message.KindNotFound, "unknown style %q", req.Style)
	}
	logger.Debug("request received", "text_length", len(*req.Text), "speed", *req.Speed)

	// Decoding
	prompt, err := p.decode(ctx, *req.PromptAudio)
	if err != nil {
		return nil, err
	}
	styleAttr := metric.WithAttributes(attribute.String("style", styleLabel))
	promptSeconds.Record(ctx, prompt.Duration().Seconds(), styleAttr)
	logger.Debug("prompt decoded", "sample_rate", prompt.SampleRate, "channels", prompt.Channels, "duration", prompt.Duration())

	// Inferring
	segments, err := p.infer(ctx, tts.Request{
		Text:        *req.Text,
		Instruction: instruction,
		Prompt:      prompt,
		Speed:       *req.Speed,
	})
	if err != nil {
		return nil, err
	}
	var produced time.Duration
	for _, seg := range segments {
		produced += seg.Duration()
	}
	logger.Debug("inference complete", "segments", len(segments), "audio_duration", produced)

	// Encoding
	encoded, err := p.encode(ctx, segments)
	if err != nil {
		return nil, err
	}

	// Responding
	outputSeconds.Add(ctx, produced.Seconds(), styleAttr)
	return &message.SynthesisResponse{Audio: encoded}, nil
}

func (p *Pipeline) decode(ctx context.Context, b64 string) (audio.Waveform, error) {
	_, span := tracer.Start(ctx, "decode")
	defer span.End()

	w, err := p.codec.Decode(b64)
	if err != nil {
		return audio.Waveform{}, message.Wrap(message.KindDecode, err)
	}
	span.SetAttributes(attribute.Int("sample_rate", w.SampleRate), attribute.Int("frames", w.Frames()))
	return w, nil
}

func (p *Pipeline) infer(ctx context.Context, req tts.Request) ([]tts.Segment, error) {
	ctx, span := tracer.Start(ctx, "infer")
	defer span.End()

	segments, err := p.synth.Synthesize(ctx, req)
	if err != nil {
		var tagged *message.Error
		if errors.As(err, &tagged) {
			return nil, err
		}
		return nil, message.Wrap(message.KindInference, err)
	}
	span.SetAttributes(attribute.Int("segments", len(segments)))
	return segments, nil
}

func (p *Pipeline) encode(ctx context.Context, segments []tts.Segment) ([]string, error) {
	_, span := tracer.Start(ctx, "encode")
	defer span.End()

	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		b64, err := p.codec.Encode(seg)
		if err != nil {
			return nil, message.Wrap(message.KindInternal, fmt.Errorf("encoding segment %d: %w", i, err))
		}
		out = append(out, b64)
	}
	return out, nil
}
