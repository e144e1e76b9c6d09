package core

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSampleRate is used whenever a provider reports no usable rate.
const DefaultSampleRate = 22050

// MaxSampleRate is the highest rate accepted from a provider or written to a WAV header.
const MaxSampleRate = 768000

type AudioEncodingFormat int

const (
	PCM     AudioEncodingFormat = iota // 16-bit signed little-endian pulse-code modulation.
	ULAW                               // μ-law encoding format.
	ALAW                               // A-law encoding format.
	FLOAT32                            // 32-bit IEEE float.
)

// String returns the configuration name of the format.
func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm16"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	case FLOAT32:
		return "float32"
	default:
		return fmt.Sprintf("AudioEncodingFormat(%d)", int(f))
	}
}

// ParseAudioEncoding maps AUDIO_ENCODING values onto formats.
func ParseAudioEncoding(s string) (AudioEncodingFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pcm", "pcm16", "pcm_16", "linear16":
		return PCM, nil
	case "ulaw", "mulaw", "mu-law":
		return ULAW, nil
	case "alaw", "a-law":
		return ALAW, nil
	case "float", "float32", "ieee_float":
		return FLOAT32, nil
	default:
		return PCM, fmt.Errorf("unknown audio encoding %q", s)
	}
}

// Waveform is the canonical in-memory audio shape: mono float samples in
// [-1, 1] and a positive sample rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}
