package chat

import "chatspeak/core"

// ChatConfig controls how replies are rendered to audio.
type ChatConfig struct {
	// Encoding is the WAV sample format of the response body.
	Encoding core.AudioEncodingFormat
}

func DefaultConfig() ChatConfig {
	return ChatConfig{
		Encoding: core.PCM,
	}
}
