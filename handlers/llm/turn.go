package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatspeak/core"
	"chatspeak/handlers/session"
)

// TurnExecutor sends prompts into session conversations.
type TurnExecutor struct {
	config TurnConfig
	logger *core.Logger
}

// NewTurnExecutor creates a TurnExecutor.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewTurnExecutor(config TurnConfig, logger *core.Logger) *TurnExecutor {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TurnExecutor{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "turn_executor"}),
	}
}

// SendTurn forwards prompt to the session's conversation and returns the
// trimmed reply. Turns on one session run one at a time; failures, timeouts
// and empty replies wrap core.ErrProvider.
func (e *TurnExecutor) SendTurn(ctx context.Context, s *session.Session, prompt string) (string, error) {
	if s == nil || s.Conversation == nil {
		return "", core.ProviderErrorf(nil, "no conversation bound to session")
	}

	release, err := s.AcquireTurn(ctx)
	if err != nil {
		return "", core.ProviderErrorf(err, "waiting for previous turn in session %q", s.ID)
	}
	defer release()

	callCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	logger := s.Logger
	if logger == nil {
		logger = e.logger
	}

	started := time.Now()
	reply, err := s.Conversation.SendMessage(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", core.ProviderErrorf(err, "turn timed out after %s", e.config.Timeout)
		}
		return "", core.ProviderErrorf(err, "turn failed")
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", core.ProviderErrorf(nil, "reply contained no text")
	}

	turn := s.RecordTurn()
	logger.Info("turn completed",
		"turn", turn,
		"prompt", prompt,
		"reply", reply,
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return reply, nil
}
