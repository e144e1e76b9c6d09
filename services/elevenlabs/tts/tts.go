package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatspeak/core"
	"chatspeak/utils/audio"

	"github.com/bytedance/sonic"
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	VoiceID    string `json:"voice_id"`
	ModelID    string `json:"model_id"`
	SampleRate int    `json:"sample_rate"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsTTS implements a speech service over the ElevenLabs REST API.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	client *http.Client
	logger *core.Logger
}

type (
	elSpeechRequest struct {
		Text          string          `json:"text"`
		ModelID       string          `json:"model_id"`
		VoiceSettings elVoiceSettings `json:"voice_settings"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elErrorMessage struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) (*ElevenLabsTTS, error) {
	if config.APIKey == "" {
		return nil, errors.New("ElevenLabs API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Default: Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}
	config.SampleRate = supportedRate(config.SampleRate)

	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: logger.With(map[string]interface{}{"component": "elevenlabs_tts"}),
	}, nil
}

// supportedRate snaps a requested rate to one ElevenLabs offers as raw PCM.
func supportedRate(rate int) int {
	switch rate {
	case 16000, 22050, 24000, 44100:
		return rate
	default:
		return 24000
	}
}

// OutputSampleRate reports the PCM rate requested from ElevenLabs.
func (e *ElevenLabsTTS) OutputSampleRate() int {
	return e.config.SampleRate
}

// Synthesize requests raw PCM for text.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (core.SynthesisResult, error) {
	body, err := sonic.Marshal(elSpeechRequest{
		Text:    text,
		ModelID: e.config.ModelID,
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?output_format=pcm_%d",
		strings.TrimSuffix(e.config.BaseURL, "/"), url.PathEscape(e.config.VoiceID), e.config.SampleRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr elErrorMessage
		if sonic.Unmarshal(data, &apiErr) == nil && apiErr.Detail.Message != "" {
			return nil, fmt.Errorf("ElevenLabs error (%d): %s", resp.StatusCode, apiErr.Detail.Message)
		}
		return nil, fmt.Errorf("ElevenLabs error (%d)", resp.StatusCode)
	}

	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	samples, err := audio.PCMBytesToInt16(data)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("ElevenLabs audio received", "bytes", len(data), "voice", e.config.VoiceID)
	return core.SamplesWithRate{Samples: samples, Rate: e.config.SampleRate}, nil
}
