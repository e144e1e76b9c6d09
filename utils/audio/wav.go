package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"chatspeak/core"
)

// WAV format tags
const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatALaw       = 0x0006
	wavFormatMULaw      = 0x0007
	wavFormatExtensible = 0xFFFE
)

// ContentTypeWAV is the MIME type of EncodeWAV output.
const ContentTypeWAV = "audio/wav"

// EncodeWAV serializes a mono waveform into a RIFF/WAVE byte stream.
// Failures wrap core.ErrEncoding.
func EncodeWAV(w core.Waveform, format core.AudioEncodingFormat) ([]byte, error) {
	if len(w.Samples) == 0 {
		return nil, core.EncodingErrorf(nil, "waveform has no samples")
	}
	if w.SampleRate <= 0 {
		return nil, core.EncodingErrorf(nil, "sample rate must be positive, got %d", w.SampleRate)
	}
	if w.SampleRate > core.MaxSampleRate {
		return nil, core.EncodingErrorf(nil, "sample rate %d exceeds %d", w.SampleRate, core.MaxSampleRate)
	}
	for i, s := range w.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, core.EncodingErrorf(nil, "sample %d is not a finite number", i)
		}
	}

	var (
		data          []byte
		formatTag     uint16
		bitsPerSample int
		err           error
	)
	switch format {
	case core.PCM:
		data = Int16ToPCMBytes(Float32ToPCM16(w.Samples))
		formatTag, bitsPerSample = wavFormatPCM, 16
	case core.FLOAT32:
		data = make([]byte, len(w.Samples)*4)
		for i, s := range w.Samples {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
		}
		formatTag, bitsPerSample = wavFormatIEEEFloat, 32
	case core.ULAW:
		data, err = PCMBytesToULaw(Int16ToPCMBytes(Float32ToPCM16(w.Samples)))
		formatTag, bitsPerSample = wavFormatMULaw, 8
	case core.ALAW:
		data, err = PCMBytesToALaw(Int16ToPCMBytes(Float32ToPCM16(w.Samples)))
		formatTag, bitsPerSample = wavFormatALaw, 8
	default:
		return nil, core.EncodingErrorf(nil, "unsupported encoding %s", format)
	}
	if err != nil {
		return nil, core.EncodingErrorf(err, "%s conversion failed", format)
	}

	out, err := writeWAV(data, len(w.Samples), 1, w.SampleRate, bitsPerSample, formatTag)
	if err != nil {
		return nil, core.EncodingErrorf(err, "write wav")
	}
	return out, nil
}

// writeWAV wraps encoded sample data in a RIFF header. Non-PCM formats get an
// 18-byte fmt chunk and a fact chunk as the format requires.
func writeWAV(data []byte, frames, numChannels, sampleRate, bitsPerSample int, formatTag uint16) ([]byte, error) {
	const maxRIFF = math.MaxUint32 - 64
	if uint64(len(data)) > maxRIFF {
		return nil, errors.New("audio data too large for a RIFF container")
	}

	buf := getWavHeaderBuffer()
	defer putWavHeaderBuffer(buf)

	extended := formatTag != wavFormatPCM
	fmtSize := 16
	if extended {
		fmtSize = 18
	}

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(data)
	padded := dataSize%2 != 0

	riffSize := 4 + (8 + fmtSize) + (8 + dataSize)
	if extended {
		riffSize += 8 + 4
	}
	if padded {
		riffSize++
	}

	// Write RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	// Write fmt sub-chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(fmtSize))
	binary.Write(buf, binary.LittleEndian, formatTag)
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	if extended {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // cbSize

		buf.WriteString("fact")
		binary.Write(buf, binary.LittleEndian, uint32(4))
		binary.Write(buf, binary.LittleEndian, uint32(frames))
	}

	// Write data sub-chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	total := buf.Len() + dataSize
	if padded {
		total++
	}
	result := make([]byte, total)
	copy(result, buf.Bytes())
	copy(result[buf.Len():], data)

	return result, nil
}

type wavFormat struct {
	tag           uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// DecodeWAV parses a RIFF/WAVE stream into a mono waveform. Multi-channel
// audio is averaged down to one channel.
func DecodeWAV(wav []byte) (core.Waveform, error) {
	if len(wav) < 12 || !bytes.HasPrefix(wav, []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		return core.Waveform{}, errors.New("invalid WAV: missing RIFF/WAVE header")
	}

	var (
		format  *wavFormat
		payload []byte
	)
	i := 12
	for i+8 <= len(wav) {
		chunkID := string(wav[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[i+4 : i+8]))
		start := i + 8
		next := start + chunkSize
		if next > len(wav) || next < start {
			if chunkID == "data" {
				return core.Waveform{}, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			break
		}

		switch chunkID {
		case "fmt ":
			f, err := parseFmtChunk(wav[start:next])
			if err != nil {
				return core.Waveform{}, err
			}
			format = f
		case "data":
			payload = wav[start:next]
		}

		// Account for padding to even boundary
		if chunkSize%2 != 0 {
			next++
		}
		i = next
	}

	if format == nil {
		return core.Waveform{}, errors.New("invalid WAV: fmt chunk not found")
	}
	if payload == nil {
		return core.Waveform{}, errors.New("invalid WAV: data chunk not found")
	}

	samples, err := decodeSamples(payload, format)
	if err != nil {
		return core.Waveform{}, err
	}
	return core.Waveform{Samples: samples, SampleRate: format.sampleRate}, nil
}

func parseFmtChunk(b []byte) (*wavFormat, error) {
	if len(b) < 16 {
		return nil, errors.New("invalid WAV: fmt chunk too short")
	}
	f := &wavFormat{
		tag:           binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	if f.tag == wavFormatExtensible {
		if len(b) < 26 {
			return nil, errors.New("invalid WAV: extensible fmt chunk too short")
		}
		// The sub-format GUID starts with the plain format tag.
		f.tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if f.channels <= 0 {
		return nil, errors.New("invalid WAV: zero channels")
	}
	if f.sampleRate <= 0 {
		return nil, errors.New("invalid WAV: zero sample rate")
	}
	return f, nil
}

func decodeSamples(data []byte, f *wavFormat) ([]float32, error) {
	var interleaved []float32
	switch {
	case f.tag == wavFormatPCM && f.bitsPerSample == 8:
		interleaved = make([]float32, len(data))
		for i, b := range data {
			interleaved[i] = (float32(b) - 128) / 128
		}
	case f.tag == wavFormatPCM && f.bitsPerSample == 16:
		pcm, err := PCMBytesToInt16(data[:len(data)-len(data)%2])
		if err != nil {
			return nil, err
		}
		interleaved = PCM16ToFloat32(pcm)
	case f.tag == wavFormatPCM && f.bitsPerSample == 24:
		n := len(data) / 3
		interleaved = make([]float32, n)
		for i := 0; i < n; i++ {
			v := int32(data[i*3]) | int32(data[i*3+1])<<8 | int32(int8(data[i*3+2]))<<16
			interleaved[i] = float32(v) / (1 << 23)
		}
	case f.tag == wavFormatPCM && f.bitsPerSample == 32:
		n := len(data) / 4
		interleaved = make([]float32, n)
		for i := 0; i < n; i++ {
			interleaved[i] = float32(int32(binary.LittleEndian.Uint32(data[i*4:]))) / (1 << 31)
		}
	case f.tag == wavFormatIEEEFloat && f.bitsPerSample == 32:
		n := len(data) / 4
		interleaved = make([]float32, n)
		for i := 0; i < n; i++ {
			interleaved[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case f.tag == wavFormatIEEEFloat && f.bitsPerSample == 64:
		n := len(data) / 8
		interleaved = make([]float32, n)
		for i := 0; i < n; i++ {
			interleaved[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:])))
		}
	case f.tag == wavFormatMULaw:
		pcm, err := PCMBytesToInt16(ULawBytesToPCM(data))
		if err != nil {
			return nil, err
		}
		interleaved = PCM16ToFloat32(pcm)
	case f.tag == wavFormatALaw:
		pcm, err := PCMBytesToInt16(ALawBytesToPCM(data))
		if err != nil {
			return nil, err
		}
		interleaved = PCM16ToFloat32(pcm)
	default:
		return nil, fmt.Errorf("unsupported WAV format tag 0x%04x with %d bits per sample", f.tag, f.bitsPerSample)
	}

	if f.channels == 1 {
		return interleaved, nil
	}
	frames := len(interleaved) / f.channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < f.channels; c++ {
			sum += interleaved[i*f.channels+c]
		}
		mono[i] = sum / float32(f.channels)
	}
	return mono, nil
}
