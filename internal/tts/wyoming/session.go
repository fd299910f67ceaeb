package wyoming

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/nadzzz/dialect-tts/internal/audio"
	"github.com/nadzzz/dialect-tts/internal/tts"
)

const sampleWidth = 2 // s16le

// ModelError is an error event reported by the model server. The stream is
// still in sync after one, unlike transport errors.
type ModelError struct {
	Text string
}

func (e *ModelError) Error() string { return e.Text }

func errorText(evt *event) string {
	if text, ok := evt.Data["text"].(string); ok && text != "" {
		return text
	}
	return "unknown error"
}

// load asks the server to load the model and returns its output sample rate.
func load(r *bufio.Reader, w io.Writer, opts tts.LoadOptions) (int, error) {
	err := writeEvent(w, event{
		Type: eventLoad,
		Data: map[string]any{
			"model_dir": opts.ModelDir,
			"load_jit":  opts.LoadJIT,
			"load_trt":  opts.LoadTRT,
			"fp16":      opts.FP16,
		},
	}, nil)
	if err != nil {
		return 0, err
	}

	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return 0, fmt.Errorf("reading load response: %w", err)
		}
		switch evt.Type {
		case eventInfo:
			rate := intField(evt.Data, "sample_rate", 0)
			if rate <= 0 {
				return 0, fmt.Errorf("model reported invalid sample rate %v", evt.Data["sample_rate"])
			}
			return rate, nil
		case eventError:
			return 0, &ModelError{Text: errorText(evt)}
		default:
			slog.Debug("wyoming unexpected event during load", "type", evt.Type)
		}
	}
}

// synthesize runs one conversation, passing every segment to emit. Once
// emit returns false or a chunk is unreadable, the remaining events are
// still consumed so the stream stays in sync. The returned error is either a
// *ModelError or a transport/protocol failure.
func synthesize(r *bufio.Reader, w io.Writer, req tts.Request, defaultRate int, emit func(tts.Segment) bool) error {
	channels := req.Prompt.Channels
	if channels <= 0 {
		channels = 1
	}
	err := writeEvent(w, event{
		Type: eventSynthesize,
		Data: map[string]any{
			"text":        req.Text,
			"instruction": req.Instruction,
			"speed":       req.Speed,
			"rate":        req.Prompt.SampleRate,
			"width":       sampleWidth,
			"channels":    channels,
		},
	}, audio.PCM16(req.Prompt.Samples))
	if err != nil {
		return err
	}

	var (
		rate     = defaultRate
		chans    = 1
		width    = sampleWidth
		skip     bool
		badChunk error
		segments int
	)

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return fmt.Errorf("reading model event: %w", err)
		}

		switch evt.Type {
		case eventAudioStart:
			rate = intField(evt.Data, "rate", rate)
			chans = intField(evt.Data, "channels", chans)
			width = intField(evt.Data, "width", width)
			slog.Debug("wyoming audio-start", "rate", rate, "channels", chans, "width", width)

		case eventAudioChunk:
			if skip {
				continue
			}
			if cw := intField(evt.Data, "width", width); cw != sampleWidth {
				skip, badChunk = true, &ModelError{Text: fmt.Sprintf("unsupported sample width %d", cw)}
				continue
			}
			samples, err := audio.FromPCM16(payload)
			if err != nil {
				skip, badChunk = true, &ModelError{Text: err.Error()}
				continue
			}
			segments++
			seg := tts.Segment{
				Samples:    samples,
				SampleRate: intField(evt.Data, "rate", rate),
				Channels:   intField(evt.Data, "channels", chans),
			}
			if !emit(seg) {
				skip = true
			}

		case eventAudioStop:
			slog.Debug("wyoming audio-stop", "segments", segments)
			return badChunk

		case eventError:
			return &ModelError{Text: errorText(evt)}

		default:
			slog.Debug("wyoming unknown event", "type", evt.Type)
		}
	}
}

// run adapts synthesize to the yield contract of tts.Model.
func run(r *bufio.Reader, w io.Writer, req tts.Request, defaultRate int, yield func(tts.Segment, error) bool) error {
	stopped := false
	err := synthesize(r, w, req, defaultRate, func(seg tts.Segment) bool {
		if !yield(seg, nil) {
			stopped = true
		}
		return !stopped
	})
	if err != nil && !stopped {
		yield(tts.Segment{}, err)
	}
	return err
}
