package llm

import "time"

type TurnConfig struct {
	Timeout time.Duration `json:"timeout"` // Upper bound for one provider call; zero disables the bound.
}

// DefaultConfig returns a TurnConfig with sensible defaults.
func DefaultConfig() TurnConfig {
	return TurnConfig{
		Timeout: 60 * time.Second,
	}
}
