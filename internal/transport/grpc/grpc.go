// Package grpc implements the gRPC transport for dialect-tts.
//
// It serves one unary method carrying the same request and response as the
// HTTP API, with a JSON codec instead of generated protobuf stubs:
//
//	service dialecttts.v1.Synthesis {
//	  rpc Synthesize(SynthesizeRequest) returns (SynthesisResponse);
//	}
//
// Error kinds map onto status codes: validation is InvalidArgument, unknown
// styles NotFound, everything else Internal.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/dialect-tts/internal/message"
	"github.com/nadzzz/dialect-tts/internal/slg"
	"github.com/nadzzz/dialect-tts/internal/transport"
	"github.com/nadzzz/dialect-tts/internal/tts/grpcmodel"
)

const (
	ServiceName      = "dialecttts.v1.Synthesis"
	SynthesizeMethod = "/" + ServiceName + "/Synthesize"
)

// SynthesizeRequest is the gRPC request. Unlike HTTP, the style travels in
// the message rather than the path.
type SynthesizeRequest struct {
	Style       string   `json:"style"`
	Text        *string  `json:"text"`
	PromptAudio *string  `json:"prompt_audio"`
	Speed       *float64 `json:"speed"`
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port int

	mu     sync.Mutex
	server *grpc.Server
	closed bool
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	srv := NewServer(handler)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = lis.Close()
		return nil
	}
	t.server = srv
	t.mu.Unlock()

	slog.Info("grpc transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		_ = t.Close()
	}()

	// Serve reports ErrServerStopped when Close wins the race with it.
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// NewServer returns a gRPC server with the synthesis service registered.
func NewServer(handler transport.Handler) *grpc.Server {
	srv := grpc.NewServer(grpc.ForceServerCodec(grpcmodel.Codec{}))
	srv.RegisterService(&serviceDesc, &service{handler: handler})
	return srv
}

type service struct {
	handler transport.Handler
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Synthesize",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			var req SynthesizeRequest
			if err := dec(&req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
			}
			return srv.(*service).synthesize(ctx, &req)
		},
	}},
}

func (s *service) synthesize(ctx context.Context, req *SynthesizeRequest) (*message.SynthesisResponse, error) {
	id := requestID(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs("x-request-id", id))
	ctx = slg.With(ctx, slog.Default().With("request_id", id, "transport", "grpc"))

	resp, err := s.handler(ctx, &message.SynthesisRequest{
		Style:       req.Style,
		Text:        req.Text,
		PromptAudio: req.PromptAudio,
		Speed:       req.Speed,
	})
	if err != nil {
		return nil, status.Error(codeFor(message.KindOf(err)), err.Error())
	}
	return resp, nil
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" && len(ids[0]) <= 128 {
			return ids[0]
		}
	}
	return uuid.NewString()
}

func codeFor(kind message.Kind) codes.Code {
	switch kind {
	case message.KindValidation:
		return codes.InvalidArgument
	case message.KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// Close gracefully stops the gRPC server. Close before Listen makes a later
// Listen return immediately.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}
