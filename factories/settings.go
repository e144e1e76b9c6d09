package factories

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"chatspeak/config"
	coqui "chatspeak/services/coqui/tts"
	deepgramtts "chatspeak/services/deepgram/tts"
	elevenlabs "chatspeak/services/elevenlabs/tts"
	openaillm "chatspeak/services/openai/llm"
	openaitts "chatspeak/services/openai/tts"
	sidecar "chatspeak/services/sidecar/tts"
)

// SettingsConfig bundles the chat and speech provider selections.
type SettingsConfig struct {
	LLM LLMFactoryConfig `json:"llm"`
	TTS TTSFactoryConfig `json:"tts"`
}

// SettingsFromConfig derives provider settings from environment configuration.
func SettingsFromConfig(cfg config.Config) (SettingsConfig, error) {
	settings := SettingsConfig{
		LLM: LLMFactoryConfig{
			Provider: cfg.LLMProvider,
			Config: openaillm.Config{
				APIKey:       cfg.ChatAPIKey(),
				BaseURL:      cfg.LLMBaseURL,
				Model:        cfg.LLMModel,
				SystemPrompt: cfg.SystemPrompt,
			},
		},
	}

	tts, err := ttsFactoryConfigFor(cfg)
	if err != nil {
		return SettingsConfig{}, err
	}
	settings.TTS = tts
	return settings, nil
}

func ttsFactoryConfigFor(cfg config.Config) (TTSFactoryConfig, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TTSProvider)) {
	case "coqui", "":
		c := coqui.DefaultConfig()
		if cfg.TTSURL != "" {
			c.BaseURL = cfg.TTSURL
		}
		if cfg.TTSModel != "" {
			c.Model = cfg.TTSModel
		}
		if cfg.TTSSampleRate > 0 {
			c.SampleRate = cfg.TTSSampleRate
		}
		c.SpeakerID = cfg.TTSVoice
		return TTSFactoryConfig{CoquiConfig: &c}, nil
	case "sidecar":
		model := cfg.TTSModel
		if model == "" {
			model = coqui.DefaultConfig().Model
		}
		return TTSFactoryConfig{SidecarConfig: &sidecar.Config{
			URL:     cfg.TTSURL,
			InfoURL: cfg.TTSInfoURL,
			Model:   model,
			Device:  cfg.TTSDevice,
			Voice:   cfg.TTSVoice,
		}}, nil
	case "openai":
		return TTSFactoryConfig{OpenAIConfig: &openaitts.Config{
			APIKey:  cfg.SpeechAPIKey(),
			BaseURL: cfg.TTSURL,
			Model:   cfg.TTSModel,
			Voice:   cfg.TTSVoice,
		}}, nil
	case "deepgram":
		return TTSFactoryConfig{DeepgramConfig: &deepgramtts.DepgramTTSConfig{
			APIKey:     cfg.SpeechAPIKey(),
			BaseURL:    cfg.TTSURL,
			Model:      cfg.TTSModel,
			SampleRate: cfg.TTSSampleRate,
		}}, nil
	case "elevenlabs":
		return TTSFactoryConfig{ElevenLabsConfig: &elevenlabs.ElevenLabsTTSConfig{
			APIKey:     cfg.SpeechAPIKey(),
			BaseURL:    cfg.TTSURL,
			VoiceID:    cfg.TTSVoice,
			ModelID:    cfg.TTSModel,
			SampleRate: cfg.TTSSampleRate,
		}}, nil
	default:
		return TTSFactoryConfig{}, fmt.Errorf("settings: unknown TTS provider %q", cfg.TTSProvider)
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var cfg SettingsConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	if cfg.LLM.Provider == "" {
		return SettingsConfig{}, fmt.Errorf("settings: llm.provider is required")
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// LoadSettings uses SETTINGS_FILE when set and the environment otherwise.
func LoadSettings(cfg config.Config) (SettingsConfig, error) {
	if cfg.SettingsFile != "" {
		return SettingsConfigFromFile(cfg.SettingsFile)
	}
	return SettingsFromConfig(cfg)
}
