package chat

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"chatspeak/core"
	"chatspeak/handlers/llm"
	"chatspeak/handlers/session"
	"chatspeak/handlers/tts"
	"chatspeak/utils/audio"
	"chatspeak/utils/text"
)

// Pipeline stages, as reported in StageError.Stage.
const (
	StageValidate  = "validate"
	StageSession   = "session"
	StageDialogue  = "dialogue"
	StageSynthesis = "synthesis"
	StageEncoding  = "encoding"
)

// Request is one chat-and-speak call.
type Request struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	// RequestID correlates log lines; it is not part of the wire body.
	RequestID string `json:"-"`
}

// Result is the spoken reply of one turn.
type Result struct {
	Audio       []byte
	ContentType string
	Reply       string
	CleanText   string
	SampleRate  int
	Samples     int
	Duration    time.Duration
}

// Orchestrator runs validate, session lookup, dialogue turn, sanitize,
// synthesize and encode for each request.
type Orchestrator struct {
	registry *session.Registry
	turns    *llm.TurnExecutor
	synth    *tts.Synthesizer
	config   ChatConfig
	logger   *core.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(registry *session.Registry, turns *llm.TurnExecutor, synth *tts.Synthesizer, config ChatConfig, logger *core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Orchestrator{
		registry: registry,
		turns:    turns,
		synth:    synth,
		config:   config,
		logger:   logger.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Validate checks a request before any provider is touched. The prompt is
// checked first.
func Validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return core.NewValidationError("No prompt provided")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return core.NewValidationError("No session_id provided")
	}
	return nil
}

// Handle runs one turn end to end. Every error is a *core.StageError whose
// cause wraps one of the core sentinel errors.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	logger := o.logger.With(map[string]interface{}{
		"request_id": req.RequestID,
		"session_id": req.SessionID,
	})

	if err := Validate(req); err != nil {
		logger.Debug("request rejected", "error", err)
		return nil, &core.StageError{Stage: StageValidate, Err: err}
	}
	logger.Info("request received", "prompt", req.Prompt)

	s, err := o.registry.GetOrCreate(req.SessionID)
	if err != nil {
		return nil, o.fail(logger, StageSession, err)
	}

	reply, err := o.turns.SendTurn(ctx, s, req.Prompt)
	if err != nil {
		return nil, o.fail(logger, StageDialogue, err)
	}

	clean := text.Sanitize(reply)
	logger.Debug("reply sanitized", "reply", reply, "clean_text", clean)

	waveform, err := o.synth.Synthesize(ctx, clean)
	if err != nil {
		return nil, o.fail(logger, StageSynthesis, err)
	}

	wav, err := audio.EncodeWAV(waveform, o.config.Encoding)
	if err != nil {
		return nil, o.fail(logger, StageEncoding, err)
	}

	result := &Result{
		Audio:       wav,
		ContentType: audio.ContentTypeWAV,
		Reply:       reply,
		CleanText:   clean,
		SampleRate:  waveform.SampleRate,
		Samples:     len(waveform.Samples),
		Duration:    waveform.Duration(),
	}
	logger.Info("request completed",
		"bytes", len(wav),
		"sample_rate", result.SampleRate,
		"audio_ms", result.Duration.Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func (o *Orchestrator) fail(logger *core.Logger, stage string, err error) error {
	level := logger.Error
	if errors.Is(err, context.Canceled) {
		level = logger.Warn
	}
	level("request failed",
		"stage", stage,
		"error", err,
		"stack", string(debug.Stack()),
	)
	return &core.StageError{Stage: stage, Err: err}
}

// StatusCode maps a Handle error onto an HTTP status: 400 for rejected
// requests, 500 for everything else.
func StatusCode(err error) int {
	if errors.Is(err, core.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
