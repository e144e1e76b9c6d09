package config

import (
	"testing"
	"time"

	"chatspeak/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, "frontend", cfg.StaticDir)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "coqui", cfg.TTSProvider)
	assert.Empty(t, cfg.TTSModel)
	assert.Equal(t, "cpu", cfg.TTSDevice)
	assert.Equal(t, core.PCM, cfg.Encoding())
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 120*time.Second, cfg.SynthesisTimeout)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("AUDIO_ENCODING", "ulaw")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("TTS_PROVIDER", "openai")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, core.ULAW, cfg.Encoding())
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "openai", cfg.TTSProvider)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port not a number", key: "PORT", value: "abc"},
		{name: "port out of range", key: "PORT", value: "70000"},
		{name: "unknown encoding", key: "AUDIO_ENCODING", value: "mp3"},
		{name: "bad duration", key: "SYNTHESIS_TIMEOUT", value: "soon"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml"},
		{name: "zero body limit", key: "MAX_BODY_BYTES", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestConfig_APIKeys(t *testing.T) {
	cfg := Config{LLMProvider: "gemini", GoogleAPIKey: "g", OpenAIAPIKey: "o"}
	assert.Equal(t, "g", cfg.ChatAPIKey())

	cfg.LLMProvider = "openai"
	assert.Equal(t, "o", cfg.ChatAPIKey())

	cfg.LLMProvider = "groq"
	assert.Empty(t, cfg.ChatAPIKey())

	cfg.LLMAPIKey = "explicit"
	assert.Equal(t, "explicit", cfg.ChatAPIKey())

	cfg.TTSProvider = "openai"
	assert.Equal(t, "o", cfg.SpeechAPIKey())
	cfg.TTSAPIKey = "t"
	assert.Equal(t, "t", cfg.SpeechAPIKey())
}
