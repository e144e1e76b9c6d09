package coqui

import (
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
)

// Config holds configuration for a Coqui TTS server (`tts-server`).
type Config struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	SpeakerID  string `json:"speaker_id,omitempty"`
	LanguageID string `json:"language_id,omitempty"`
	// SampleRate is the model's output rate, used only when a response
	// carries no usable rate of its own.
	SampleRate int `json:"sample_rate,omitempty"`
}

// DefaultConfig returns a Config for a local server running the LJSpeech VITS model.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:5002",
		Model:      "tts_models/en/ljspeech/vits",
		SampleRate: 22050,
	}
}

// CoquiTTS fetches WAV audio from a Coqui TTS server.
type CoquiTTS struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewCoquiTTS creates the client. Zero fields fall back to DefaultConfig.
func NewCoquiTTS(config Config, logger *core.Logger) *CoquiTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CoquiTTS{
		config: config,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger.With(map[string]interface{}{"component": "coqui_tts", "model": config.Model}),
	}
}

// OutputSampleRate reports the configured model rate.
func (c *CoquiTTS) OutputSampleRate() int {
	return c.config.SampleRate
}

// Synthesize requests /api/tts and decodes the returned WAV.
func (c *CoquiTTS) Synthesize(ctx context.Context, text string) (core.SynthesisResult, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker_id", c.config.SpeakerID)
	q.Set("language_id", c.config.LanguageID)
	q.Set("style_wav", "")

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/api/tts?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", audio.ContentTypeWAV)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Coqui request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Coqui response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("Coqui server returned %d: %s", resp.StatusCode, msg)
	}
	if len(data) == 0 {
		return nil, errors.New("Coqui server returned an empty body")
	}

	waveform, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Coqui audio: %w", err)
	}
	c.logger.Debug("Coqui audio received", "bytes", len(data), "sample_rate", waveform.SampleRate)
	return core.SamplesWithRate{Samples: waveform.Samples, Rate: waveform.SampleRate}, nil
}
