// Package audio converts between the base64 WAV payloads carried by the HTTP
// API and the in-memory waveforms exchanged with the synthesis model.
//
// Samples are always float32 in [-1, 1], interleaved when there is more than
// one channel. Output files are 16-bit PCM WAV.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Waveform is a decoded audio signal.
type Waveform struct {
	// Samples holds interleaved samples in [-1, 1].
	Samples []float32

	// SampleRate is in Hz (e.g., 16000, 22050).
	SampleRate int

	// Channels is the number of interleaved channels (typically 1).
	Channels int
}

// Frames returns the number of samples per channel.
func (w Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.SampleRate)
}

// Silence returns a mono waveform of zeros lasting d at the given rate.
func Silence(d time.Duration, sampleRate int) Waveform {
	n := int(d * time.Duration(sampleRate) / time.Second)
	return Waveform{Samples: make([]float32, n), SampleRate: sampleRate, Channels: 1}
}

// PCM16 encodes samples as signed 16-bit little-endian PCM.
func PCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

// FromPCM16 decodes signed 16-bit little-endian PCM into samples.
func FromPCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned: %d bytes", len(pcm))
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out, nil
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}
