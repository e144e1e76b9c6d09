package factories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chatspeak/config"
	coqui "chatspeak/services/coqui/tts"
	deepgramtts "chatspeak/services/deepgram/tts"
	openaillm "chatspeak/services/openai/llm"
	openaitts "chatspeak/services/openai/tts"
	sidecar "chatspeak/services/sidecar/tts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChatProvider_Defaults(t *testing.T) {
	tests := []struct {
		provider  string
		model     string
		wantModel string
	}{
		{provider: "gemini", wantModel: "gemini-2.0-flash"},
		{provider: "Google", model: "models/gemini-2.0-flash", wantModel: "gemini-2.0-flash"},
		{provider: "groq", wantModel: "llama-3.3-70b-versatile"},
		{provider: "openai", model: "gpt-4.1", wantModel: "gpt-4.1"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := BuildChatProvider(LLMFactoryConfig{
				Provider: tt.provider,
				Config:   openaillm.Config{APIKey: "k", Model: tt.model},
			}, nil)
			require.NoError(t, err)
			chat, ok := p.(*openaillm.OpenAIChatProvider)
			require.True(t, ok)
			assert.Equal(t, tt.wantModel, chat.Model())
		})
	}
}

func TestBuildChatProvider_Errors(t *testing.T) {
	_, err := BuildChatProvider(LLMFactoryConfig{}, nil)
	assert.Error(t, err)

	_, err = BuildChatProvider(LLMFactoryConfig{Provider: "nope", Config: openaillm.Config{APIKey: "k"}}, nil)
	assert.ErrorContains(t, err, "unknown provider")

	_, err = BuildChatProvider(LLMFactoryConfig{Provider: "gemini"}, nil)
	assert.ErrorContains(t, err, "API key")
}

func TestBuildSpeechService(t *testing.T) {
	ctx := context.Background()

	svc, err := BuildSpeechService(ctx, TTSFactoryConfig{CoquiConfig: &coqui.Config{}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &coqui.CoquiTTS{}, svc)

	svc, err = BuildSpeechService(ctx, TTSFactoryConfig{OpenAIConfig: &openaitts.Config{APIKey: "k"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &openaitts.OpenAISpeechService{}, svc)

	svc, err = BuildSpeechService(ctx, TTSFactoryConfig{SidecarConfig: &sidecar.Config{URL: "http://127.0.0.1:1/synth"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sidecar.SidecarTTS{}, svc)

	_, err = BuildSpeechService(ctx, TTSFactoryConfig{DeepgramConfig: &deepgramtts.DepgramTTSConfig{}}, nil)
	assert.Error(t, err)

	_, err = BuildSpeechService(ctx, TTSFactoryConfig{}, nil)
	assert.Error(t, err)
}

func TestBuildSpeechService_RejectsSeveralProviders(t *testing.T) {
	svc, err := BuildSpeechService(context.Background(), TTSFactoryConfig{
		CoquiConfig:  &coqui.Config{},
		OpenAIConfig: &openaitts.Config{APIKey: "k"},
	}, nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "2 provider configs")
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Config{
		LLMProvider:  "gemini",
		GoogleAPIKey: "g-key",
		SystemPrompt: "Be brief.",
		TTSProvider:  "coqui",
		TTSURL:       "http://tts:5002",
		TTSVoice:     "p225",
	}

	settings, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", settings.LLM.Provider)
	assert.Equal(t, "g-key", settings.LLM.Config.APIKey)
	assert.Equal(t, "Be brief.", settings.LLM.Config.SystemPrompt)
	require.NotNil(t, settings.TTS.CoquiConfig)
	assert.Equal(t, "http://tts:5002", settings.TTS.CoquiConfig.BaseURL)
	assert.Equal(t, "tts_models/en/ljspeech/vits", settings.TTS.CoquiConfig.Model)
	assert.Equal(t, "p225", settings.TTS.CoquiConfig.SpeakerID)

	cfg.TTSProvider = "sidecar"
	cfg.TTSDevice = "cuda"
	settings, err = SettingsFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, settings.TTS.SidecarConfig)
	assert.Equal(t, "cuda", settings.TTS.SidecarConfig.Device)
	assert.Equal(t, "tts_models/en/ljspeech/vits", settings.TTS.SidecarConfig.Model)

	cfg.TTSProvider = "festival"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"llm": {"provider": "groq", "config": {"api_key": "gk", "model": "llama"}},
		"tts": {"openai": {"api_key": "ok", "voice": "nova"}}
	}`), 0o644))

	settings, err := LoadSettings(config.Config{SettingsFile: path})
	require.NoError(t, err)
	assert.Equal(t, "groq", settings.LLM.Provider)
	assert.Equal(t, "llama", settings.LLM.Config.Model)
	require.NotNil(t, settings.TTS.OpenAIConfig)
	assert.Equal(t, "nova", settings.TTS.OpenAIConfig.Voice)

	_, err = LoadSettings(config.Config{SettingsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = SettingsConfigFromJSON([]byte(`{"tts": {}}`))
	assert.Error(t, err)
}
