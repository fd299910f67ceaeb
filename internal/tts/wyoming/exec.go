package wyoming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/nadzzz/dialect-tts/internal/tts"
)

// ExecModel runs the model inside a resident worker process and talks to it
// over the process's stdin and stdout. The worker handles one conversation
// at a time; calls are serialized on mu.
type ExecModel struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	exited chan struct{}

	mu         sync.Mutex
	broken     error
	sampleRate int
}

var _ tts.Model = (*ExecModel)(nil)

// LoadExec starts the worker given by command (a shell-style command line),
// asks it to load the model and waits for it to report ready. ctx bounds the
// start-up handshake only; the worker keeps running until Close.
func LoadExec(ctx context.Context, command string, opts tts.LoadOptions) (*ExecModel, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse model command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("model command is empty")
	}

	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("model stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("model stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("model stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting model worker: %w", err)
	}

	m := &ExecModel{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		exited: make(chan struct{}),
	}

	logger := slog.With("component", "model-worker", "pid", cmd.Process.Pid)
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Info(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("model worker stderr unreadable", "error", err)
			_, _ = io.Copy(io.Discard, stderr)
		}
	}()
	go func() {
		// Wait closes the pipes, so stderr must be drained first.
		<-stderrDone
		err := cmd.Wait()
		logger.Info("model worker exited", "error", err)
		close(m.exited)
	}()

	type loadResult struct {
		rate int
		err  error
	}
	done := make(chan loadResult, 1)
	go func() {
		rate, err := load(m.stdout, m.stdin, opts)
		done <- loadResult{rate: rate, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			m.kill()
			return nil, fmt.Errorf("loading model: %w", res.err)
		}
		m.sampleRate = res.rate
	case <-ctx.Done():
		m.kill()
		return nil, fmt.Errorf("loading model: %w", ctx.Err())
	}

	logger.Info("model loaded", "backend", "exec", "sample_rate", m.sampleRate, "model_dir", opts.ModelDir)
	return m, nil
}

// SampleRate returns the model's output sample rate.
func (m *ExecModel) SampleRate() int { return m.sampleRate }

// InferenceInstruct runs one synthesis conversation with the worker. The
// conversation is not interruptible: ctx is only checked before it starts.
// A transport failure leaves the worker unusable and every later call fails.
func (m *ExecModel) InferenceInstruct(ctx context.Context, req tts.Request) iter.Seq2[tts.Segment, error] {
	return func(yield func(tts.Segment, error) bool) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.broken != nil {
			yield(tts.Segment{}, fmt.Errorf("model worker unavailable: %w", m.broken))
			return
		}
		if err := ctx.Err(); err != nil {
			yield(tts.Segment{}, err)
			return
		}

		err := run(m.stdout, m.stdin, req, m.sampleRate, yield)
		var modelErr *ModelError
		if err != nil && !errors.As(err, &modelErr) {
			m.broken = err
			slog.Error("model worker stream broken", "error", err)
		}
	}
}

// Close stops the worker: stdin is closed so it can exit on its own, and it
// is killed if it has not done so within a few seconds.
func (m *ExecModel) Close() error {
	_ = m.stdin.Close()
	select {
	case <-m.exited:
		return nil
	case <-time.After(5 * time.Second):
		m.kill()
		return fmt.Errorf("model worker did not exit, killed")
	}
}

func (m *ExecModel) kill() {
	_ = m.stdin.Close()
	if m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	<-m.exited
}
