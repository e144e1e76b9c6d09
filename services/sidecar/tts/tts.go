package sidecar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"chatspeak/core"

	"github.com/bytedance/sonic"
)

// jsonAPI keeps numbers as json.Number so integer rates stay distinguishable
// from float ones.
var jsonAPI = sonic.Config{UseNumber: true}.Froze()

// Config holds configuration for a local model-serving sidecar that returns
// raw samples as JSON.
type Config struct {
	URL     string `json:"url"`
	InfoURL string `json:"info_url,omitempty"`
	Model   string `json:"model"`
	Device  string `json:"device,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

// SidecarTTS posts text to the sidecar and hands back whatever shape it returns.
//
// Accepted response bodies:
//
//	[0.1, 0.2, ...]                         samples only
//	[[0.1, 0.2, ...], 22050]                samples and rate
//	{"wav": [...], "sample_rate": 22050}    samples and rate ("samples" and "rate" also accepted)
type SidecarTTS struct {
	config     Config
	client     *http.Client
	logger     *core.Logger
	outputRate atomic.Int64
}

type synthesizeRequest struct {
	Text   string `json:"text"`
	Model  string `json:"model,omitempty"`
	Device string `json:"device,omitempty"`
	Voice  string `json:"voice,omitempty"`
}

// NewSidecarTTS creates the client. URL is required.
func NewSidecarTTS(config Config, logger *core.Logger) (*SidecarTTS, error) {
	if config.URL == "" {
		return nil, errors.New("sidecar URL is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &SidecarTTS{
		config: config,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logger.With(map[string]interface{}{"component": "sidecar_tts", "model": config.Model}),
	}, nil
}

// Probe asks the sidecar for its output rate. It is a no-op when no InfoURL
// is configured; an unreachable or silent sidecar leaves the rate unknown.
func (s *SidecarTTS) Probe(ctx context.Context) error {
	if s.config.InfoURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.InfoURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar info returned %d", resp.StatusCode)
	}

	var info struct {
		OutputSampleRate int `json:"output_sample_rate"`
	}
	if err := sonic.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("failed to parse sidecar info: %w", err)
	}
	if info.OutputSampleRate > 0 {
		s.outputRate.Store(int64(info.OutputSampleRate))
		s.logger.Info("sidecar output rate probed", "sample_rate", info.OutputSampleRate)
	}
	return nil
}

// OutputSampleRate returns the probed rate, or 0 when unknown.
func (s *SidecarTTS) OutputSampleRate() int {
	return int(s.outputRate.Load())
}

// Synthesize posts text and decodes the response shape.
func (s *SidecarTTS) Synthesize(ctx context.Context, text string) (core.SynthesisResult, error) {
	payload, err := sonic.Marshal(synthesizeRequest{
		Text:   text,
		Model:  s.config.Model,
		Device: s.config.Device,
		Voice:  s.config.Voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidecar request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sidecar returned %d", resp.StatusCode)
	}

	return ParseResult(body)
}

// ParseResult maps a sidecar JSON body onto a synthesis result. Sample
// and rate values are passed through unchecked.
func ParseResult(body []byte) (core.SynthesisResult, error) {
	var v any
	if err := jsonAPI.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar response: %w", err)
	}

	switch r := v.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(r) == 2 {
			if samples, ok := r[0].([]any); ok {
				return core.SamplesWithRate{Samples: samples, Rate: r[1]}, nil
			}
		}
		return core.SamplesOnly{Samples: r}, nil
	case map[string]any:
		samples, ok := r["wav"]
		if !ok {
			samples = r["samples"]
		}
		if rate, ok := r["sample_rate"]; ok {
			return core.SamplesWithRate{Samples: samples, Rate: rate}, nil
		}
		if rate, ok := r["rate"]; ok {
			return core.SamplesWithRate{Samples: samples, Rate: rate}, nil
		}
		return core.SamplesOnly{Samples: samples}, nil
	default:
		return nil, fmt.Errorf("unexpected sidecar response type %T", v)
	}
}
