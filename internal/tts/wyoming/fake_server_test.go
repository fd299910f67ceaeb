package wyoming

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/nadzzz/dialect-tts/internal/audio"
)

const fakeRate = 22050

// serveFake plays the model side of the protocol until r is exhausted.
//
// load fails for model_dir "missing". synthesize answers with two chunks:
// the prompt echoed back, then one zero sample per rune of text. Text
// "fail-midway" yields one chunk followed by an error event.
func serveFake(r *bufio.Reader, w io.Writer) error {
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch evt.Type {
		case eventLoad:
			if evt.Data["model_dir"] == "missing" {
				err = writeEvent(w, event{Type: eventError, Data: map[string]any{"text": "model not found"}}, nil)
			} else {
				err = writeEvent(w, event{Type: eventInfo, Data: map[string]any{"sample_rate": fakeRate}}, nil)
			}

		case eventSynthesize:
			text, _ := evt.Data["text"].(string)
			chunk := map[string]any{"rate": fakeRate, "width": 2, "channels": 1}
			if err = writeEvent(w, event{Type: eventAudioStart, Data: chunk}, nil); err != nil {
				return err
			}
			if err = writeEvent(w, event{Type: eventAudioChunk, Data: chunk}, payload); err != nil {
				return err
			}
			if text == "fail-midway" {
				err = writeEvent(w, event{Type: eventError, Data: map[string]any{"text": "inference failed midway"}}, nil)
				break
			}
			zeros := audio.PCM16(make([]float32, utf8.RuneCountInString(text)))
			if err = writeEvent(w, event{Type: eventAudioChunk, Data: chunk}, zeros); err != nil {
				return err
			}
			err = writeEvent(w, event{Type: eventAudioStop}, nil)

		default:
			err = writeEvent(w, event{Type: eventError, Data: map[string]any{"text": "unknown event " + evt.Type}}, nil)
		}
		if err != nil {
			return err
		}
	}
}
