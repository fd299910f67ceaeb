package tts

import (
	"context"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nadzzz/dialect-tts/internal/audio"
)

// perRune is how much silence the mock model emits per character at speed 1.
const perRune = 100 * time.Millisecond

type mockModel struct {
	sampleRate int
}

// NewMockModel returns a deterministic model that emits one silent segment
// per sentence of the input text. It is meant for development and tests.
func NewMockModel(sampleRate int) Model {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &mockModel{sampleRate: sampleRate}
}

func (m *mockModel) SampleRate() int { return m.sampleRate }

func (m *mockModel) InferenceInstruct(ctx context.Context, req Request) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		speed := req.Speed
		if speed <= 0 {
			speed = 1
		}
		for _, sentence := range splitSentences(req.Text) {
			if err := ctx.Err(); err != nil {
				yield(Segment{}, err)
				return
			}
			d := time.Duration(float64(utf8.RuneCountInString(sentence)) * float64(perRune) / speed)
			if !yield(audio.Silence(d, m.sampleRate), nil) {
				return
			}
		}
	}
}

func (m *mockModel) Close() error { return nil }

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '。', '！', '？', '.', '!', '?', '\n':
			return true
		}
		return false
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
