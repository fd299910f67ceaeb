// Package tts defines the interface to the external speech-synthesis model
// and the Gateway that owns the single loaded instance.
//
// The model itself (voice cloning, acoustic modelling, vocoding) is a black
// box reached through one of the backends under this package: a resident
// worker process, a TCP model server or a gRPC model server.
package tts

import (
	"context"
	"iter"

	"github.com/nadzzz/dialect-tts/internal/audio"
)

// Segment is one unit of synthesized audio at the model's output rate.
type Segment = audio.Waveform

// Request is a single instruct-style synthesis call.
type Request struct {
	// Text is the text to speak.
	Text string

	// Instruction is the natural-language style directive (e.g., "用四川话讲").
	Instruction string

	// Prompt is the reference voice sample to clone.
	Prompt audio.Waveform

	// Speed is a playback-rate multiplier, passed to the model unchanged.
	Speed float64
}

// LoadOptions controls how the pretrained model is loaded.
type LoadOptions struct {
	// ModelDir is the local path of the pretrained model.
	ModelDir string

	// LoadJIT, LoadTRT and FP16 toggle acceleration features. All default
	// to false for portability.
	LoadJIT bool
	LoadTRT bool
	FP16    bool
}

// Model is a loaded synthesis model.
type Model interface {
	// SampleRate is the fixed output sample rate of every segment.
	SampleRate() int

	// InferenceInstruct runs synthesis in non-streaming mode. The returned
	// sequence is lazy, finite and may be ranged over only once. A non-nil
	// error ends the sequence.
	InferenceInstruct(ctx context.Context, req Request) iter.Seq2[Segment, error]

	// Close releases the model.
	Close() error
}
