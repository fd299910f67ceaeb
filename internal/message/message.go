// Package message defines the core data types flowing through the dialect-tts pipeline.
package message

// SynthesisRequest is the body of POST /synthesize/{style}.
type SynthesisRequest struct {
	// Style is the style id taken from the URL path (e.g., "sichuanese").
	// It is not part of the JSON body.
	Style string `json:"-"`

	// Text is the text to synthesize.
	Text *string `json:"text" example:"你好"`

	// PromptAudio is the reference voice sample as a base64-encoded WAV file.
	PromptAudio *string `json:"prompt_audio" example:"UklGRiQAAABXQVZFZm10IBAAAAABAAEAgD4AAAB9AAACABAAZGF0YQAAAAA="`

	// Speed is a playback-rate multiplier handed to the model unchanged.
	Speed *float64 `json:"speed" example:"1.0"`
}

// Validate checks that every required field is present. Field contents are
// checked further down the pipeline (audio decoding, the model itself).
func (r *SynthesisRequest) Validate() error {
	switch {
	case r.Text == nil:
		return Errorf(KindValidation, "field required: text")
	case r.PromptAudio == nil:
		return Errorf(KindValidation, "field required: prompt_audio")
	case r.Speed == nil:
		return Errorf(KindValidation, "field required: speed")
	}
	return nil
}

// SynthesisResponse is the success body. Audio holds one base64-encoded WAV
// file per segment, in the order the model emitted them.
type SynthesisResponse struct {
	Audio []string `json:"audio"`
}

// ErrorResponse is the failure body for every error kind.
type ErrorResponse struct {
	Detail string `json:"detail" example:"decoding prompt audio: illegal base64 data at input byte 3"`
}
