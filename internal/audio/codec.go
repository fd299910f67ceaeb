package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/nadzzz/dialect-tts/internal/message"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// Layout of a WAVE_FORMAT_EXTENSIBLE fmt chunk.
	extensibleFmtSize = 40
	subFormatOffset   = 24

	outputBitDepth = 16
)

// Codec decodes prompt payloads and encodes synthesized segments.
type Codec struct {
	// TempDir is where prompt files are materialized. Empty means os.TempDir().
	TempDir string
}

// NewCodec creates a codec that writes temporary prompt files under tempDir.
func NewCodec(tempDir string) *Codec {
	return &Codec{TempDir: tempDir}
}

// Decode turns a base64-encoded WAV file into a mono waveform. PCM (8 to 32
// bit) and 32-bit IEEE float files are accepted; multi-channel audio is
// averaged down to one channel. The payload is written to a temporary file
// for the WAV reader and the file is removed before Decode returns. Every
// failure is tagged message.KindDecode.
func (c *Codec) Decode(b64 string) (Waveform, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Waveform{}, message.Errorf(message.KindDecode, "decoding prompt audio: %w", err)
	}

	f, err := os.CreateTemp(c.TempDir, "prompt-*.wav")
	if err != nil {
		return Waveform{}, message.Errorf(message.KindDecode, "creating prompt file: %w", err)
	}
	defer func() {
		_ = f.Close()
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing prompt file", "path", f.Name(), "error", err)
		}
	}()

	if _, err := f.Write(raw); err != nil {
		return Waveform{}, message.Errorf(message.KindDecode, "writing prompt file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Waveform{}, message.Errorf(message.KindDecode, "rewinding prompt file: %w", err)
	}

	w, err := readWAV(f)
	if err != nil {
		return Waveform{}, message.Wrap(message.KindDecode, err)
	}
	return w, nil
}

func readWAV(r io.ReadSeeker) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return Waveform{}, fmt.Errorf("prompt audio is not a valid wav file: %w", err)
		}
		return Waveform{}, fmt.Errorf("prompt audio is not a valid wav file")
	}
	switch d.WavAudioFormat {
	case wavFormatPCM, wavFormatFloat, wavFormatExtensible:
	default:
		return Waveform{}, fmt.Errorf("unsupported wav audio format %d (want PCM or IEEE float)", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("reading wav samples: %w", err)
	}

	format := d.WavAudioFormat
	if format == wavFormatExtensible {
		if format, err = extensibleSubFormat(r); err != nil {
			return Waveform{}, fmt.Errorf("reading wav sub format: %w", err)
		}
	}

	var samples []float32
	switch format {
	case wavFormatPCM:
		samples, err = intSamples(buf.Data, int(d.BitDepth))
	case wavFormatFloat:
		samples, err = floatSamples(buf.Data, int(d.BitDepth))
	default:
		err = fmt.Errorf("unsupported wav sub format %d (want PCM or IEEE float)", format)
	}
	if err != nil {
		return Waveform{}, err
	}

	return downmix(samples, int(d.NumChans), int(d.SampleRate)), nil
}

func intSamples(data []int, bitDepth int) ([]float32, error) {
	var scale float32
	offset := 0
	switch bitDepth {
	case 8:
		// 8-bit WAV samples are unsigned.
		scale, offset = 1<<7, 1<<7
	case 16:
		scale = 1 << 15
	case 24:
		scale = 1 << 23
	case 32:
		scale = 1 << 31
	default:
		return nil, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}

	samples := make([]float32, len(data))
	for i, v := range data {
		samples[i] = float32(v-offset) / scale
	}
	return samples, nil
}

// floatSamples reinterprets 32-bit words read by the PCM decoder as IEEE floats.
func floatSamples(data []int, bitDepth int) ([]float32, error) {
	if bitDepth != 32 {
		return nil, fmt.Errorf("unsupported float wav bit depth %d", bitDepth)
	}
	samples := make([]float32, len(data))
	for i, v := range data {
		samples[i] = math.Float32frombits(uint32(v))
	}
	return samples, nil
}

// downmix averages interleaved frames into a single channel. A trailing
// partial frame is dropped.
func downmix(samples []float32, channels, sampleRate int) Waveform {
	if channels <= 1 {
		return Waveform{Samples: samples, SampleRate: sampleRate, Channels: 1}
	}
	mono := make([]float32, len(samples)/channels)
	for i := range mono {
		var sum float32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += s
		}
		mono[i] = sum / float32(channels)
	}
	return Waveform{Samples: mono, SampleRate: sampleRate, Channels: 1}
}

// extensibleSubFormat returns the format code held in the first two bytes of
// the SubFormat GUID of a WAVE_FORMAT_EXTENSIBLE fmt chunk.
func extensibleSubFormat(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("finding fmt chunk: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < extensibleFmtSize {
			return 0, fmt.Errorf("extensible fmt chunk is %d bytes, want %d", ch.Size, extensibleFmtSize)
		}
		head := make([]byte, subFormatOffset+2)
		if _, err := io.ReadFull(ch, head); err != nil {
			return 0, fmt.Errorf("reading fmt chunk: %w", err)
		}
		return binary.LittleEndian.Uint16(head[subFormatOffset:]), nil
	}
}

// Encode renders w as a 16-bit PCM WAV file in memory and returns it base64
// encoded. Failures are tagged message.KindInternal.
func (c *Codec) Encode(w Waveform) (string, error) {
	data, err := EncodeWAV(w)
	if err != nil {
		return "", message.Wrap(message.KindInternal, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeWAV renders w as a 16-bit PCM WAV file.
func EncodeWAV(w Waveform) ([]byte, error) {
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("encoding wav: invalid sample rate %d", w.SampleRate)
	}
	if w.Channels <= 0 {
		return nil, fmt.Errorf("encoding wav: invalid channel count %d", w.Channels)
	}
	if len(w.Samples)%w.Channels != 0 {
		return nil, fmt.Errorf("encoding wav: %d samples do not divide into %d channels", len(w.Samples), w.Channels)
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(toInt16(s))
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, w.SampleRate, outputBitDepth, w.Channels, wavFormatPCM)
	// Write is called even for an empty waveform so the header is emitted.
	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav encoder: %w", err)
	}
	return out.Bytes(), nil
}
