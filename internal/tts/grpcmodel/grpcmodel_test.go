package grpcmodel

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/dialect-tts/internal/audio"
	"github.com/nadzzz/dialect-tts/internal/message"
	"github.com/nadzzz/dialect-tts/internal/tts"
)

type fakeServer struct {
	loaded LoadRequest
}

var fakeDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Load",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			var req LoadRequest
			if err := dec(&req); err != nil {
				return nil, err
			}
			if req.ModelDir == "missing" {
				return nil, status.Error(codes.NotFound, "model not found")
			}
			srv.(*fakeServer).loaded = req
			return &LoadResponse{SampleRate: 22050}, nil
		},
	}},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Synthesize",
		ServerStreams: true,
		Handler: func(_ any, stream grpc.ServerStream) error {
			var req SynthesizeRequest
			if err := stream.RecvMsg(&req); err != nil {
				return err
			}
			// Echo the prompt, then one sample per rune of text.
			if err := stream.SendMsg(&Segment{Samples: req.Prompt.Samples, SampleRate: 22050, Channels: 1}); err != nil {
				return err
			}
			if req.Text == "fail-midway" {
				return status.Error(codes.Internal, "inference failed midway")
			}
			return stream.SendMsg(&Segment{Samples: make([]float32, len([]rune(req.Text))), SampleRate: 22050, Channels: 1})
		},
	}},
}

func startFake(t *testing.T) (*fakeServer, grpc.DialOption) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(Codec{}))
	fake := &fakeServer{}
	srv.RegisterService(&fakeDesc, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return fake, dialer
}

func TestLoadAndSynthesize(t *testing.T) {
	fake, dialer := startFake(t)

	m, err := Load(context.Background(), "passthrough:///bufnet", tts.LoadOptions{ModelDir: "pretrained_models/CosyVoice2-0.5B"}, dialer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, 22050, m.SampleRate())
	assert.Equal(t, LoadRequest{ModelDir: "pretrained_models/CosyVoice2-0.5B"}, fake.loaded)

	prompt := audio.Waveform{Samples: []float32{0.1, 0.2}, SampleRate: 16000, Channels: 1}
	segments, err := tts.NewGateway(m, 1).Synthesize(context.Background(), tts.Request{
		Text: "你好吗", Instruction: "用四川话讲", Prompt: prompt, Speed: 1,
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, prompt.Samples, segments[0].Samples)
	assert.Len(t, segments[1].Samples, 3)
	assert.Equal(t, 22050, segments[1].SampleRate)
}

func TestSynthesizeServerError(t *testing.T) {
	_, dialer := startFake(t)

	m, err := Load(context.Background(), "passthrough:///bufnet", tts.LoadOptions{}, dialer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	segments, err := tts.NewGateway(m, 1).Synthesize(context.Background(), tts.Request{Text: "fail-midway"})
	require.Error(t, err)
	assert.Nil(t, segments)
	assert.Equal(t, message.KindInference, message.KindOf(err))
	assert.Equal(t, "inference failed midway", err.Error())
}

func TestLoadFailure(t *testing.T) {
	_, dialer := startFake(t)

	_, err := Load(context.Background(), "passthrough:///bufnet", tts.LoadOptions{ModelDir: "missing"}, dialer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	_, err = Load(context.Background(), "", tts.LoadOptions{})
	require.Error(t, err)
}
