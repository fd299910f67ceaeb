// Package grpcmodel implements tts.Model against a gRPC model server.
//
// The service has no generated stubs: messages are plain Go structs carried
// with a JSON codec, and calls are issued with Invoke/NewStream against the
// method names below.
//
//	service dialecttts.model.v1.Model {
//	  rpc Load(LoadRequest) returns (LoadResponse);
//	  rpc Synthesize(SynthesizeRequest) returns (stream Segment);
//	}
package grpcmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/dialect-tts/internal/tts"
)

const (
	ServiceName      = "dialecttts.model.v1.Model"
	LoadMethod       = "/" + ServiceName + "/Load"
	SynthesizeMethod = "/" + ServiceName + "/Synthesize"
)

// LoadRequest asks the server to load the pretrained model.
type LoadRequest struct {
	ModelDir string `json:"model_dir"`
	LoadJIT  bool   `json:"load_jit"`
	LoadTRT  bool   `json:"load_trt"`
	FP16     bool   `json:"fp16"`
}

// LoadResponse reports the loaded model's output sample rate.
type LoadResponse struct {
	SampleRate int `json:"sample_rate"`
}

// Audio is a waveform on the wire.
type Audio struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

// SynthesizeRequest is one instruct-style synthesis call.
type SynthesizeRequest struct {
	Text        string  `json:"text"`
	Instruction string  `json:"instruction"`
	Speed       float64 `json:"speed"`
	Prompt      Audio   `json:"prompt"`
}

// Segment is one streamed output segment.
type Segment = Audio

// Codec marshals messages as JSON. Servers must register or force the same codec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

var synthesizeStream = &grpc.StreamDesc{
	StreamName:    "Synthesize",
	ServerStreams: true,
}

// Model is a tts.Model backed by a gRPC connection.
type Model struct {
	conn       *grpc.ClientConn
	sampleRate int
}

var _ tts.Model = (*Model)(nil)

// Load dials target, calls Load and returns the ready model. Extra dial
// options are appended to the defaults (insecure transport, JSON codec).
func Load(ctx context.Context, target string, opts tts.LoadOptions, dialOpts ...grpc.DialOption) (*Model, error) {
	if target == "" {
		return nil, fmt.Errorf("no model endpoint configured")
	}

	dialOpts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	}, dialOpts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}

	var resp LoadResponse
	err = conn.Invoke(ctx, LoadMethod, &LoadRequest{
		ModelDir: opts.ModelDir,
		LoadJIT:  opts.LoadJIT,
		LoadTRT:  opts.LoadTRT,
		FP16:     opts.FP16,
	}, &resp)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("loading model on %s: %w", target, statusError(err))
	}
	if resp.SampleRate <= 0 {
		_ = conn.Close()
		return nil, fmt.Errorf("model reported invalid sample rate %d", resp.SampleRate)
	}

	slog.Info("model loaded", "backend", "grpc", "target", target, "sample_rate", resp.SampleRate)
	return &Model{conn: conn, sampleRate: resp.SampleRate}, nil
}

// SampleRate returns the model's output sample rate.
func (m *Model) SampleRate() int { return m.sampleRate }

// InferenceInstruct opens a server stream and yields each received segment.
func (m *Model) InferenceInstruct(ctx context.Context, req tts.Request) iter.Seq2[tts.Segment, error] {
	return func(yield func(tts.Segment, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := m.conn.NewStream(ctx, synthesizeStream, SynthesizeMethod)
		if err != nil {
			yield(tts.Segment{}, statusError(err))
			return
		}

		msg := &SynthesizeRequest{
			Text:        req.Text,
			Instruction: req.Instruction,
			Speed:       req.Speed,
			Prompt: Audio{
				Samples:    req.Prompt.Samples,
				SampleRate: req.Prompt.SampleRate,
				Channels:   req.Prompt.Channels,
			},
		}
		if err := stream.SendMsg(msg); err != nil {
			yield(tts.Segment{}, statusError(err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			yield(tts.Segment{}, statusError(err))
			return
		}

		for {
			var seg Segment
			err := stream.RecvMsg(&seg)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(tts.Segment{}, statusError(err))
				return
			}
			out := tts.Segment{Samples: seg.Samples, SampleRate: seg.SampleRate, Channels: seg.Channels}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Close closes the connection.
func (m *Model) Close() error { return m.conn.Close() }

// statusError reduces a gRPC status to its message, so model failures keep
// the text the server reported.
func statusError(err error) error {
	if s, ok := status.FromError(err); ok && s.Message() != "" {
		return errors.New(s.Message())
	}
	return err
}
