package wyoming

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/dialect-tts/internal/tts"
)

// TCPModel reaches a model server that keeps the model resident. Every
// inference uses its own connection.
type TCPModel struct {
	endpoint    string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	sampleRate  int
}

var _ tts.Model = (*TCPModel)(nil)

// LoadTCP connects to the server at endpoint (host:port), asks it to load
// the model and records the output sample rate. ioTimeout bounds a whole
// inference when non-zero; otherwise only the caller's context deadline applies.
func LoadTCP(ctx context.Context, endpoint string, ioTimeout time.Duration, opts tts.LoadOptions) (*TCPModel, error) {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	if endpoint == "" {
		return nil, fmt.Errorf("no model endpoint configured")
	}

	m := &TCPModel{
		endpoint:    endpoint,
		dialTimeout: 10 * time.Second,
		ioTimeout:   ioTimeout,
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rate, err := load(bufio.NewReader(conn), conn, opts)
	if err != nil {
		return nil, fmt.Errorf("loading model on %s: %w", endpoint, err)
	}
	m.sampleRate = rate

	slog.Info("model loaded", "backend", "tcp", "endpoint", endpoint, "sample_rate", rate)
	return m, nil
}

func (m *TCPModel) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: m.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to model server: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if m.ioTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.ioTimeout))
	}
	return conn, nil
}

// SampleRate returns the model's output sample rate.
func (m *TCPModel) SampleRate() int { return m.sampleRate }

// InferenceInstruct runs one synthesis conversation on a fresh connection.
func (m *TCPModel) InferenceInstruct(ctx context.Context, req tts.Request) iter.Seq2[tts.Segment, error] {
	return func(yield func(tts.Segment, error) bool) {
		conn, err := m.dial(ctx)
		if err != nil {
			yield(tts.Segment{}, err)
			return
		}
		defer conn.Close()

		slog.Debug("tcp synthesize", "endpoint", m.endpoint, "text_length", len(req.Text))
		_ = run(bufio.NewReader(conn), conn, req, m.sampleRate, yield)
	}
}

// Close is a no-op; connections are per-request.
func (m *TCPModel) Close() error { return nil }
