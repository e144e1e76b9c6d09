package tts

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatspeak/core"
)

// SpeechService is a text-to-speech provider.
type SpeechService interface {
	Synthesize(ctx context.Context, text string) (core.SynthesisResult, error)
}

// SampleRateReporter is implemented by providers that know their output rate.
type SampleRateReporter interface {
	OutputSampleRate() int
}

// Synthesizer adapts a SpeechService to the canonical waveform.
type Synthesizer struct {
	service  SpeechService
	config   TTSConfig
	hintRate int
	logger   *core.Logger
}

// NewSynthesizer wraps service. The output rate is read from the provider once,
// here; providers that do not report one get config.DefaultRate.
func NewSynthesizer(service SpeechService, config TTSConfig, logger *core.Logger) *Synthesizer {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.DefaultRate <= 0 {
		config.DefaultRate = core.DefaultSampleRate
	}

	hint := config.DefaultRate
	if reporter, ok := service.(SampleRateReporter); ok {
		if rate := reporter.OutputSampleRate(); rate > 0 && rate <= core.MaxSampleRate {
			hint = rate
		}
	}

	logger = logger.With(map[string]interface{}{"component": "synthesizer"})
	logger.Info("speech synthesizer ready", "output_sample_rate", hint)

	return &Synthesizer{
		service:  service,
		config:   config,
		hintRate: hint,
		logger:   logger,
	}
}

// HintRate returns the rate used when a provider result carries none.
func (s *Synthesizer) HintRate() int {
	return s.hintRate
}

// Synthesize converts text into a waveform. Provider failures, timeouts and
// empty results wrap core.ErrSynthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (core.Waveform, error) {
	if strings.TrimSpace(text) == "" {
		return core.Waveform{}, core.SynthesisErrorf(nil, "no text to synthesize")
	}

	callCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := s.service.Synthesize(callCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return core.Waveform{}, core.SynthesisErrorf(err, "synthesis timed out after %s", s.config.Timeout)
		}
		return core.Waveform{}, core.SynthesisErrorf(err, "synthesis failed")
	}

	waveform, err := Normalize(result, s.hintRate)
	if err != nil {
		s.logger.Warn("speech provider returned no usable waveform", "error", err, "result_type", resultType(result))
		return core.Waveform{}, err
	}

	s.logger.Debug("synthesized audio",
		"samples", len(waveform.Samples),
		"sample_rate", waveform.SampleRate,
		"duration_ms", waveform.Duration().Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return waveform, nil
}

func resultType(r core.SynthesisResult) string {
	switch r.(type) {
	case nil:
		return "nil"
	case core.SamplesOnly, *core.SamplesOnly:
		return "samples_only"
	case core.SamplesWithRate, *core.SamplesWithRate:
		return "samples_with_rate"
	default:
		return "unknown"
	}
}
