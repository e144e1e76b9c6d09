package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatspeak/core"
	"chatspeak/utils/audio"

	"github.com/sashabaranov/go-openai"
)

// pcmSampleRate is the fixed rate of OpenAI's raw "pcm" speech format.
const pcmSampleRate = 24000

// Config holds the configuration for the OpenAI speech service
type Config struct {
	APIKey  string  `json:"api_key"`
	BaseURL string  `json:"base_url,omitempty"`
	Model   string  `json:"model"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed,omitempty"`
}

// OpenAISpeechService synthesizes speech with the audio/speech endpoint.
type OpenAISpeechService struct {
	client *openai.Client
	config Config
	logger *core.Logger
}

// NewOpenAISpeechService creates the service, defaulting to tts-1 / alloy.
func NewOpenAISpeechService(config Config, logger *core.Logger) (*OpenAISpeechService, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = string(openai.TTSModel1)
	}
	if config.Voice == "" {
		config.Voice = string(openai.VoiceAlloy)
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}

	return &OpenAISpeechService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.With(map[string]interface{}{"component": "openai_tts"}),
	}, nil
}

// OutputSampleRate reports the rate of the pcm response format.
func (s *OpenAISpeechService) OutputSampleRate() int {
	return pcmSampleRate
}

// Synthesize returns 16-bit samples without a rate; the pcm format is always 24 kHz.
func (s *OpenAISpeechService) Synthesize(ctx context.Context, text string) (core.SynthesisResult, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.config.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          s.config.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	samples, err := audio.PCMBytesToInt16(data)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("speech received", "bytes", len(data), "voice", s.config.Voice)
	return core.SamplesOnly{Samples: samples}, nil
}
