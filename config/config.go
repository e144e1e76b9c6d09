// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"chatspeak/core"
)

// Config is the complete process configuration.
type Config struct {
	Port         int    `env:"PORT" envDefault:"5000"`
	StaticDir    string `env:"STATIC_DIR" envDefault:"frontend"`
	GinMode      string `env:"GIN_MODE" envDefault:"release"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	SettingsFile string `env:"SETTINGS_FILE"`

	LLMProvider  string `env:"LLM_PROVIDER" envDefault:"gemini"`
	LLMModel     string `env:"LLM_MODEL"`
	LLMBaseURL   string `env:"LLM_BASE_URL"`
	LLMAPIKey    string `env:"LLM_API_KEY"`
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	SystemPrompt string `env:"SYSTEM_PROMPT"`

	TTSProvider   string `env:"TTS_PROVIDER" envDefault:"coqui"`
	TTSModel      string `env:"TTS_MODEL"`
	TTSURL        string `env:"TTS_URL"`
	TTSInfoURL    string `env:"TTS_INFO_URL"`
	TTSVoice      string `env:"TTS_VOICE"`
	TTSAPIKey     string `env:"TTS_API_KEY"`
	TTSSampleRate int    `env:"TTS_SAMPLE_RATE"`
	TTSDevice     string `env:"TTS_DEVICE" envDefault:"cpu"`

	AudioEncoding string `env:"AUDIO_ENCODING" envDefault:"pcm16"`

	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"60s"`
	SynthesisTimeout time.Duration `env:"SYNTHESIS_TIMEOUT" envDefault:"120s"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"console"`
	TranscriptDir string `env:"TRANSCRIPT_DIR"`
}

// Load reads .env and .env.local when present, then parses the environment.
// Variables already set in the environment win over both files.
func Load() (Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil {
			core.GetLogger().Debug("env file not loaded", "file", file, "error", err)
		}
	}
	return Parse()
}

// Parse reads the environment without touching any .env file.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: PORT %d out of range", c.Port))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("config: MAX_BODY_BYTES must be positive"))
	}
	if c.ProviderTimeout < 0 || c.SynthesisTimeout < 0 {
		errs = append(errs, errors.New("config: timeouts must not be negative"))
	}
	if _, err := core.ParseAudioEncoding(c.AudioEncoding); err != nil {
		errs = append(errs, fmt.Errorf("config: AUDIO_ENCODING: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("config: LOG_FORMAT %q must be console or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ChatAPIKey resolves the language-model key: LLM_API_KEY first, then the
// provider's conventional variable.
func (c Config) ChatAPIKey() string {
	if c.LLMAPIKey != "" {
		return c.LLMAPIKey
	}
	switch strings.ToLower(c.LLMProvider) {
	case "gemini", "google":
		return c.GoogleAPIKey
	case "openai":
		return c.OpenAIAPIKey
	}
	return ""
}

// SpeechAPIKey resolves the speech provider key, falling back to
// OPENAI_API_KEY for the openai provider.
func (c Config) SpeechAPIKey() string {
	if c.TTSAPIKey != "" {
		return c.TTSAPIKey
	}
	if strings.ToLower(c.TTSProvider) == "openai" {
		return c.OpenAIAPIKey
	}
	return ""
}

// Encoding returns the parsed AUDIO_ENCODING.
func (c Config) Encoding() core.AudioEncodingFormat {
	f, err := core.ParseAudioEncoding(c.AudioEncoding)
	if err != nil {
		return core.PCM
	}
	return f
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
