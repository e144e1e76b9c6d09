package tts

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"chatspeak/core"
)

// Normalize turns a provider result into the canonical waveform.
//
// A rate is taken from SamplesWithRate only when it is an integer no greater
// than core.MaxSampleRate; otherwise hintRate applies. A rate that still is not
// in (0, core.MaxSampleRate] becomes core.DefaultSampleRate. Missing or empty
// samples wrap core.ErrSynthesis.
func Normalize(result core.SynthesisResult, hintRate int) (core.Waveform, error) {
	var (
		raw  any
		rate = hintRate
	)
	switch r := result.(type) {
	case nil:
		return core.Waveform{}, core.SynthesisErrorf(nil, "provider returned no result")
	case core.SamplesOnly:
		raw = r.Samples
	case *core.SamplesOnly:
		if r == nil {
			return core.Waveform{}, core.SynthesisErrorf(nil, "provider returned no result")
		}
		raw = r.Samples
	case core.SamplesWithRate:
		raw = r.Samples
		if v, ok := integerRate(r.Rate); ok && v <= core.MaxSampleRate {
			rate = v
		}
	case *core.SamplesWithRate:
		if r == nil {
			return core.Waveform{}, core.SynthesisErrorf(nil, "provider returned no result")
		}
		raw = r.Samples
		if v, ok := integerRate(r.Rate); ok && v <= core.MaxSampleRate {
			rate = v
		}
	default:
		return core.Waveform{}, core.SynthesisErrorf(nil, "unsupported result type %T", result)
	}

	if rate <= 0 || rate > core.MaxSampleRate {
		rate = core.DefaultSampleRate
	}

	samples, err := toFloat32(raw)
	if err != nil {
		return core.Waveform{}, core.SynthesisErrorf(err, "provider returned unusable samples")
	}
	if len(samples) == 0 {
		return core.Waveform{}, core.SynthesisErrorf(nil, "provider returned no samples")
	}
	return core.Waveform{Samples: samples, SampleRate: rate}, nil
}

// integerRate accepts Go integer kinds and JSON numbers without a fractional
// part or exponent. Floats, strings and booleans are rejected even when they
// hold a whole number.
func integerRate(v any) (int, bool) {
	switch r := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		n, err := r.Int64()
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case bool:
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// toFloat32 coerces the sample slices providers produce. 16- and 32-bit
// integer PCM is scaled to [-1, 1]; every other numeric type is converted
// value for value.
func toFloat32(raw any) ([]float32, error) {
	switch s := raw.(type) {
	case nil:
		return nil, nil
	case []float32:
		out := make([]float32, len(s))
		copy(out, s)
		return out, nil
	case []float64:
		out := make([]float32, len(s))
		for i, v := range s {
			out[i] = float32(v)
		}
		return out, nil
	case []int16:
		out := make([]float32, len(s))
		for i, v := range s {
			out[i] = float32(v) / 32768
		}
		return out, nil
	case []int32:
		out := make([]float32, len(s))
		for i, v := range s {
			out[i] = float32(float64(v) / (1 << 31))
		}
		return out, nil
	case []int:
		out := make([]float32, len(s))
		for i, v := range s {
			out[i] = float32(v)
		}
		return out, nil
	case []int64:
		out := make([]float32, len(s))
		for i, v := range s {
			out[i] = float32(v)
		}
		return out, nil
	case []any:
		out := make([]float32, len(s))
		for i, v := range s {
			f, err := scalarToFloat32(v)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample container %T", raw)
	}
}

func scalarToFloat32(v any) (float32, error) {
	switch n := v.(type) {
	case float32:
		return n, nil
	case float64:
		return float32(n), nil
	case int:
		return float32(n), nil
	case int64:
		return float32(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return float32(f), nil
	default:
		return 0, fmt.Errorf("non-numeric value %v (%T)", v, v)
	}
}
