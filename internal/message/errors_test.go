package message

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "untagged", err: base, want: KindInternal},
		{name: "tagged", err: Wrap(KindDecode, base), want: KindDecode},
		{name: "wrapped tagged", err: fmt.Errorf("stage: %w", Wrap(KindInference, base)), want: KindInference},
		{name: "outermost wins", err: Wrap(KindInternal, Wrap(KindDecode, base)), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsMessageAndCause(t *testing.T) {
	base := errors.New("model exploded")
	err := Wrap(KindInference, base)

	require.Error(t, err)
	assert.Equal(t, "model exploded", err.Error())
	assert.ErrorIs(t, err, base)
	assert.NoError(t, Wrap(KindInference, nil))
}

func TestSynthesisRequestValidate(t *testing.T) {
	text, prompt, speed := "你好", "AAAA", 1.0

	err := (&SynthesisRequest{Text: &text, PromptAudio: &prompt, Speed: &speed}).Validate()
	require.NoError(t, err)

	err = (&SynthesisRequest{Text: &text, Speed: &speed}).Validate()
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "prompt_audio")

	err = (&SynthesisRequest{Text: &text, PromptAudio: &prompt}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed")
}
