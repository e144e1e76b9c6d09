package tts

import (
	"time"

	"chatspeak/core"
)

type TTSConfig struct {
	Timeout     time.Duration `json:"timeout"`      // Upper bound for one synthesis call; zero disables the bound.
	DefaultRate int           `json:"default_rate"` // Rate used when the provider does not report one.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		Timeout:     120 * time.Second,
		DefaultRate: core.DefaultSampleRate,
	}
}
